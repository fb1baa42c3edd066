// Package server assembles the HTTP API: REST routes, middleware chain, and
// the WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/marketdash/internal/server/handler"
	"github.com/alanyoungcy/marketdash/internal/server/middleware"
	"github.com/alanyoungcy/marketdash/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Market      *handler.MarketHandler
	Preferences *handler.PreferenceHandler
	Alerts      *handler.AlertHandler
}

// Server is the HTTP + WebSocket API server for the dashboard.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and status.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Market data: live state and the upstream proxy.
	mux.HandleFunc("GET /api/tickers", handlers.Market.ListTickers)
	mux.HandleFunc("GET /api/ticker/{symbol}", handlers.Market.GetTicker)
	mux.HandleFunc("GET /api/order-book/{symbol}", handlers.Market.GetOrderBook)
	mux.HandleFunc("GET /api/historical-data/{symbol}", handlers.Market.GetHistoricalData)

	// Preferences and favorites.
	mux.HandleFunc("GET /api/preferences", handlers.Preferences.GetPreferences)
	mux.HandleFunc("PUT /api/preferences", handlers.Preferences.UpdatePreferences)
	mux.HandleFunc("POST /api/favorites/{symbol}", handlers.Preferences.ToggleFavorite)

	// Price alerts.
	mux.HandleFunc("GET /api/alerts", handlers.Alerts.ListAlerts)
	mux.HandleFunc("POST /api/alerts", handlers.Alerts.CreateAlert)
	mux.HandleFunc("GET /api/alerts/history", handlers.Alerts.ListHistory)
	mux.HandleFunc("DELETE /api/alerts/{id}", handlers.Alerts.DeleteAlert)
	mux.HandleFunc("POST /api/alerts/{id}/toggle", handlers.Alerts.ToggleAlert)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

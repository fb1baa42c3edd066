// Package app provides the top-level application lifecycle for the market
// dashboard service. It wires the stores, feed manager, refresh loop,
// WebSocket hub, and HTTP server, and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketdash/internal/alert"
	"github.com/alanyoungcy/marketdash/internal/config"
	"github.com/alanyoungcy/marketdash/internal/feed"
	"github.com/alanyoungcy/marketdash/internal/market"
	"github.com/alanyoungcy/marketdash/internal/server"
	"github.com/alanyoungcy/marketdash/internal/server/handler"
	"github.com/alanyoungcy/marketdash/internal/server/ws"
	"github.com/alanyoungcy/marketdash/internal/service"
)

// shutdownTimeout bounds the graceful HTTP shutdown on exit.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts every component, and blocks until the
// context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("redis", a.cfg.RedisEnabled()),
		slog.Bool("postgres", a.cfg.PostgresEnabled()),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Core state, seeded from stored preferences.
	state := market.New(ctx, deps.PreferenceStore, a.logger,
		market.WithMaxCandles(a.cfg.History.MaxCandles),
	)
	alerts := alert.NewStore(ctx, deps.AlertRepository, deps.AlertHistory, deps.Notifier, a.logger)

	// Streaming feed with its fallback chain.
	ingest := feed.NewIngestor(state, alerts, a.logger)
	manager := feed.NewManager(feed.Config{
		URL:                  a.cfg.Feed.URL,
		HeartbeatInterval:    a.cfg.Feed.HeartbeatInterval.Duration,
		ReconnectBase:        a.cfg.Feed.ReconnectBase.Duration,
		ReconnectFactor:      a.cfg.Feed.ReconnectFactor,
		ReconnectCap:         a.cfg.Feed.ReconnectCap.Duration,
		MaxReconnectAttempts: a.cfg.Feed.MaxReconnectAttempts,
		FallbackGrace:        a.cfg.Feed.FallbackGrace.Duration,
		SyntheticTick:        a.cfg.Feed.SyntheticTick.Duration,
	}, state, ingest, &feed.WebSocketDialer{}, deps.Binance, a.logger)

	// Background refresh of candles and depth for the selected symbol.
	refresher := service.NewRefresher(service.RefresherConfig{
		Interval: a.cfg.History.RefreshInterval.Duration,
		Limit:    a.cfg.History.CandleLimit,
	}, state, deps.Binance, a.logger)

	// WebSocket hub, fed by state and alert events.
	hub := ws.NewHub(state, a.logger)
	hub.Attach(alerts)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(state),
		Status:      handler.NewStatusHandler(state),
		Market:      handler.NewMarketHandler(state, deps.Binance, a.cfg.History.MaxCandles, a.logger),
		Preferences: handler.NewPreferenceHandler(state, a.logger),
		Alerts:      handler.NewAlertHandler(alerts, deps.AlertHistory, a.logger),
	}, hub, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	manager.Start(ctx)

	err = g.Wait()
	manager.Disconnect()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("app: run: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

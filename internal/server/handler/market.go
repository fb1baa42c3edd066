package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
	"github.com/alanyoungcy/marketdash/internal/platform/binance"
)

// MarketDataClient is the upstream REST API the proxy endpoints call. The
// Binance client implements it.
type MarketDataClient interface {
	Ticker24h(ctx context.Context, symbol string) (domain.TickerSnapshot, error)
	Depth(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error)
	Klines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) ([]domain.Candle, error)
}

// MarketHandler serves live state reads and the upstream market-data proxy.
// Proxy endpoints degrade to locally generated data when the upstream is
// unreachable, so the dashboard always has something to render.
type MarketHandler struct {
	state    *market.State
	upstream MarketDataClient
	maxLimit int
	logger   *slog.Logger
}

// NewMarketHandler creates a MarketHandler. upstream may be nil, in which
// case every proxy request serves generated data.
func NewMarketHandler(state *market.State, upstream MarketDataClient, maxLimit int, logger *slog.Logger) *MarketHandler {
	if maxLimit <= 0 {
		maxLimit = 500
	}
	return &MarketHandler{
		state:    state,
		upstream: upstream,
		maxLimit: maxLimit,
		logger:   logHandler(logger, "market"),
	}
}

// ListTickers returns the in-memory snapshot for every tracked symbol.
// GET /api/tickers
func (h *MarketHandler) ListTickers(w http.ResponseWriter, r *http.Request) {
	tickers := h.state.Tickers()
	out := make([]domain.TickerSnapshot, 0, len(tickers))
	for _, symbol := range domain.Symbols {
		if snap, ok := tickers[symbol]; ok {
			out = append(out, snap)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTicker proxies the upstream 24h ticker for one symbol.
// GET /api/ticker/{symbol}
func (h *MarketHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	if h.upstream != nil {
		snap, err := h.upstream.Ticker24h(r.Context(), symbol)
		if err == nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
		h.logger.Warn("upstream ticker failed, serving generated data",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, binance.MockTicker(symbol))
}

// GetOrderBook proxies the upstream depth for one symbol.
// GET /api/order-book/{symbol}?limit=20
func (h *MarketHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	limit := queryInt(r, "limit", 20, 100)

	if h.upstream != nil {
		book, err := h.upstream.Depth(r.Context(), symbol, limit)
		if err == nil {
			writeJSON(w, http.StatusOK, book)
			return
		}
		h.logger.Warn("upstream depth failed, serving generated data",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, binance.MockOrderBook(symbol, limit))
}

// GetHistoricalData proxies upstream candles for one symbol and interval.
// GET /api/historical-data/{symbol}?interval=1h&limit=100
func (h *MarketHandler) GetHistoricalData(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	interval := domain.TimeInterval(r.URL.Query().Get("interval"))
	if interval == "" {
		interval = h.state.TimeInterval()
	}
	if !interval.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported interval")
		return
	}
	limit := queryInt(r, "limit", 100, h.maxLimit)

	if h.upstream != nil {
		candles, err := h.upstream.Klines(r.Context(), symbol, interval, limit)
		if err == nil {
			writeJSON(w, http.StatusOK, candles)
			return
		}
		h.logger.Warn("upstream klines failed, serving generated data",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, binance.MockKlines(symbol, interval, limit))
}

// Package service hosts the periodic background jobs that keep derived
// market data fresh: candle history and order book for the selected symbol.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
	"github.com/alanyoungcy/marketdash/internal/platform/binance"
)

// MarketData is the slice of the upstream API the refresh loop needs.
type MarketData interface {
	Depth(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error)
	Klines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) ([]domain.Candle, error)
}

// RefresherConfig holds the refresh loop parameters.
type RefresherConfig struct {
	Interval   time.Duration // refresh cadence
	Limit      int           // candles per fetch
	DepthLimit int           // order book levels per side
}

// Refresher periodically re-fetches candle history and order book depth for
// the currently selected symbol and interval, writing the results into the
// market state. When the upstream fails it falls back to generated data so
// the chart and book panels never go stale-empty.
type Refresher struct {
	cfg      RefresherConfig
	state    *market.State
	upstream MarketData
	logger   *slog.Logger
}

// NewRefresher creates a Refresher. upstream may be nil; everything is then
// generated locally.
func NewRefresher(cfg RefresherConfig, state *market.State, upstream MarketData, logger *slog.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = 20
	}
	return &Refresher{
		cfg:      cfg,
		state:    state,
		upstream: upstream,
		logger:   logger.With(slog.String("component", "refresher")),
	}
}

// Run refreshes once immediately and then on every tick until the context is
// cancelled. Selection changes are picked up on the next tick; they are not
// worth a dedicated wakeup at this cadence.
func (r *Refresher) Run(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	symbol := r.state.SelectedSymbol()
	interval := r.state.TimeInterval()

	r.state.UpdatePriceHistory(symbol, r.fetchCandles(ctx, symbol, interval))
	r.state.UpdateOrderBook(symbol, r.fetchDepth(ctx, symbol))
}

func (r *Refresher) fetchCandles(ctx context.Context, symbol string, interval domain.TimeInterval) []domain.Candle {
	if r.upstream != nil {
		candles, err := r.upstream.Klines(ctx, symbol, interval, r.cfg.Limit)
		if err == nil {
			return candles
		}
		r.logger.Warn("candle refresh failed, generating data",
			slog.String("symbol", symbol),
			slog.String("interval", string(interval)),
			slog.String("error", err.Error()),
		)
	}
	return binance.MockKlines(symbol, interval, r.cfg.Limit)
}

func (r *Refresher) fetchDepth(ctx context.Context, symbol string) domain.OrderBookSnapshot {
	if r.upstream != nil {
		book, err := r.upstream.Depth(ctx, symbol, r.cfg.DepthLimit)
		if err == nil {
			return book
		}
		r.logger.Warn("depth refresh failed, generating data",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	return binance.MockOrderBook(symbol, r.cfg.DepthLimit)
}

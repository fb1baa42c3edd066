package feed

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
)

// Synthetic is the last fallback tier: it seeds plausible static snapshots
// for symbols that could not be fetched and perturbs them on a fixed cadence
// with a bounded random walk, so the dashboard keeps moving while every real
// source is down.
type Synthetic struct {
	state   *market.State
	symbols []string
	tick    time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	seeded  map[string]struct{}
	stop    chan struct{}
	running bool
}

// NewSynthetic creates a generator over the given symbol set.
func NewSynthetic(state *market.State, symbols []string, tick time.Duration, logger *slog.Logger) *Synthetic {
	return &Synthetic{
		state:   state,
		symbols: symbols,
		tick:    tick,
		logger:  logger.With(slog.String("component", "synthetic_feed")),
		seeded:  make(map[string]struct{}),
	}
}

// Seed writes a plausible static snapshot for one symbol and marks it for
// periodic perturbation once Start runs.
func (g *Synthetic) Seed(symbol string) {
	ref := domain.ReferencePrice(symbol)
	g.state.UpdateTicker(symbol, domain.TickerUpdate{
		Price:         domain.Float(ref),
		Change:        domain.Float((rand.Float64() - 0.5) * ref * 0.05),
		ChangePercent: domain.Float((rand.Float64() - 0.5) * 5),
		Volume:        domain.Float(rand.Float64()*1_000_000 + 500_000),
		High:          domain.Float(ref * 1.02),
		Low:           domain.Float(ref * 0.98),
	})

	g.mu.Lock()
	g.seeded[symbol] = struct{}{}
	g.mu.Unlock()
}

// Start launches the perturbation loop. Starting an already-running
// generator is a no-op, so repeated fallback engagements are safe.
func (g *Synthetic) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running || len(g.seeded) == 0 {
		return
	}
	g.running = true
	g.stop = make(chan struct{})
	g.logger.Info("synthetic price generation started",
		slog.Int("symbols", len(g.seeded)),
	)
	go g.loop(g.stop)
}

// Stop halts the perturbation loop. Idempotent.
func (g *Synthetic) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	g.running = false
	close(g.stop)
	g.seeded = make(map[string]struct{})
}

func (g *Synthetic) loop(stop chan struct{}) {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.perturb()
		}
	}
}

// perturb applies one bounded random-walk step (±0.5%) to every seeded
// symbol, rederiving the change fields from the previous price.
func (g *Synthetic) perturb() {
	g.mu.Lock()
	symbols := make([]string, 0, len(g.seeded))
	for sym := range g.seeded {
		symbols = append(symbols, sym)
	}
	g.mu.Unlock()

	for _, symbol := range symbols {
		current, ok := g.state.Ticker(symbol)
		if !ok || current.Price == 0 {
			continue
		}
		price := current.Price * (1 + (rand.Float64()-0.5)*0.01)
		change := price - current.Price
		up := domain.TickerUpdate{
			Price:         domain.Float(price),
			Change:        domain.Float(change),
			ChangePercent: domain.Float(change / current.Price * 100),
		}
		if price > current.High {
			up.High = domain.Float(price)
		}
		if price < current.Low {
			up.Low = domain.Float(price)
		}
		g.state.UpdateTicker(symbol, up)
	}
}

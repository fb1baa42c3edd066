// Package market implements the canonical in-memory market state: tickers,
// order books, and candle history per symbol, plus the small slice of user
// preference state that survives across sessions.
package market

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

// UpdateKind tags the state change carried by an Update.
type UpdateKind string

const (
	UpdateTicker    UpdateKind = "ticker"
	UpdateOrderBook UpdateKind = "orderbook"
	UpdateHistory   UpdateKind = "history"
	UpdateStatus    UpdateKind = "status"
)

// Update describes one applied state change. Handlers receive a copy; the
// snapshot fields are only set for the matching kind.
type Update struct {
	Kind      UpdateKind
	Symbol    string
	Ticker    domain.TickerSnapshot
	OrderBook domain.OrderBookSnapshot
	Status    domain.ConnectionStatus
}

// UpdateHandler is invoked after every successful mutation, outside the
// store's lock.
type UpdateHandler func(Update)

// saveTimeout bounds the background preference write-through.
const saveTimeout = 5 * time.Second

// State is the process-wide market state store. All reads and writes go
// through its methods; every mutation is a single compute-new-from-old step
// under the lock, so readers always observe fully-formed snapshots.
type State struct {
	mu         sync.RWMutex
	tickers    map[string]domain.TickerSnapshot
	orderBooks map[string]domain.OrderBookSnapshot
	history    map[string][]domain.Candle
	selected   string
	interval   domain.TimeInterval
	favorites  map[string]struct{}
	status     domain.ConnectionStatus

	maxCandles int
	prefs      domain.PreferenceStore
	logger     *slog.Logger

	handlerMu sync.RWMutex
	handlers  []UpdateHandler
}

// Option configures a State.
type Option func(*State)

// WithMaxCandles bounds the rolling candle window kept per symbol.
func WithMaxCandles(n int) Option {
	return func(s *State) { s.maxCandles = n }
}

// New creates a State seeded from the preference store. Absence of a stored
// record (or a nil store) initializes the defaults; transient market data
// always starts empty per session.
func New(ctx context.Context, prefs domain.PreferenceStore, logger *slog.Logger, opts ...Option) *State {
	s := &State{
		tickers:    make(map[string]domain.TickerSnapshot),
		orderBooks: make(map[string]domain.OrderBookSnapshot),
		history:    make(map[string][]domain.Candle),
		favorites:  make(map[string]struct{}),
		status:     domain.StatusDisconnected,
		maxCandles: 500,
		prefs:      prefs,
		logger:     logger.With(slog.String("component", "market_state")),
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded := domain.DefaultPreferences()
	if prefs != nil {
		stored, err := prefs.Load(ctx)
		switch {
		case err == nil:
			loaded = stored
		case errors.Is(err, domain.ErrNotFound):
			// First session, defaults apply.
		default:
			s.logger.Warn("loading preferences failed, using defaults",
				slog.String("error", err.Error()),
			)
		}
	}
	s.selected = loaded.SelectedSymbol
	s.interval = loaded.TimeInterval
	for _, sym := range loaded.Favorites {
		s.favorites[sym] = struct{}{}
	}
	return s
}

// OnUpdate registers a handler invoked after every mutation.
func (s *State) OnUpdate(h UpdateHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *State) notify(u Update) {
	s.handlerMu.RLock()
	handlers := s.handlers
	s.handlerMu.RUnlock()
	for _, h := range handlers {
		h(u)
	}
}

// UpdateTicker merges a partial update into the symbol's snapshot, creating
// one if absent. Unspecified fields keep their previous values; LastUpdate is
// always stamped with the write time.
func (s *State) UpdateTicker(symbol string, up domain.TickerUpdate) domain.TickerSnapshot {
	s.mu.Lock()
	snap := s.tickers[symbol]
	snap.Symbol = symbol
	if up.Price != nil {
		snap.Price = *up.Price
	}
	if up.Change != nil {
		snap.Change = *up.Change
	}
	if up.ChangePercent != nil {
		snap.ChangePercent = *up.ChangePercent
	}
	if up.Volume != nil {
		snap.Volume = *up.Volume
	}
	if up.High != nil {
		snap.High = *up.High
	}
	if up.Low != nil {
		snap.Low = *up.Low
	}
	snap.LastUpdate = time.Now()
	s.tickers[symbol] = snap
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateTicker, Symbol: symbol, Ticker: snap})
	return snap
}

// UpdateOrderBook replaces the symbol's order book wholesale.
func (s *State) UpdateOrderBook(symbol string, snap domain.OrderBookSnapshot) {
	snap.Symbol = symbol
	if snap.LastUpdate.IsZero() {
		snap.LastUpdate = time.Now()
	}
	s.mu.Lock()
	s.orderBooks[symbol] = snap
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateOrderBook, Symbol: symbol, OrderBook: snap})
}

// UpdatePriceHistory replaces the symbol's candle sequence, trimming to the
// configured rolling window (most recent candles win).
func (s *State) UpdatePriceHistory(symbol string, candles []domain.Candle) {
	if s.maxCandles > 0 && len(candles) > s.maxCandles {
		candles = candles[len(candles)-s.maxCandles:]
	}
	s.mu.Lock()
	s.history[symbol] = candles
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateHistory, Symbol: symbol})
}

// Ticker returns the symbol's snapshot, reporting presence explicitly.
func (s *State) Ticker(symbol string) (domain.TickerSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.tickers[symbol]
	return snap, ok
}

// Tickers returns a copy of all current ticker snapshots.
func (s *State) Tickers() map[string]domain.TickerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.TickerSnapshot, len(s.tickers))
	for k, v := range s.tickers {
		out[k] = v
	}
	return out
}

// OrderBook returns the symbol's order book, reporting presence explicitly.
func (s *State) OrderBook(symbol string) (domain.OrderBookSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.orderBooks[symbol]
	return snap, ok
}

// PriceHistory returns a copy of the symbol's candles, reporting presence
// explicitly.
func (s *State) PriceHistory(symbol string) ([]domain.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candles, ok := s.history[symbol]
	if !ok {
		return nil, false
	}
	out := make([]domain.Candle, len(candles))
	copy(out, candles)
	return out, true
}

// SetSelectedSymbol records the symbol the UI is focused on.
func (s *State) SetSelectedSymbol(symbol string) {
	s.mu.Lock()
	s.selected = symbol
	s.mu.Unlock()
	s.savePreferences()
}

// SelectedSymbol returns the symbol the UI is focused on.
func (s *State) SelectedSymbol() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SetTimeInterval records the candle interval the UI is focused on.
func (s *State) SetTimeInterval(interval domain.TimeInterval) {
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
	s.savePreferences()
}

// TimeInterval returns the candle interval the UI is focused on.
func (s *State) TimeInterval() domain.TimeInterval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// ToggleFavorite flips the symbol's favorite membership and returns the new
// membership state. Calling it twice restores the original state.
func (s *State) ToggleFavorite(symbol string) bool {
	s.mu.Lock()
	_, fav := s.favorites[symbol]
	if fav {
		delete(s.favorites, symbol)
	} else {
		s.favorites[symbol] = struct{}{}
	}
	s.mu.Unlock()
	s.savePreferences()
	return !fav
}

// IsFavorite reports the symbol's favorite membership.
func (s *State) IsFavorite(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favorites[symbol]
	return ok
}

// Favorites returns the favorite symbols as an ordered list following
// domain.Symbols order, so serialization is deterministic.
func (s *State) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favoritesLocked()
}

func (s *State) favoritesLocked() []string {
	out := make([]string, 0, len(s.favorites))
	for _, sym := range domain.Symbols {
		if _, ok := s.favorites[sym]; ok {
			out = append(out, sym)
		}
	}
	// Favorites outside the tracked set still round-trip.
	for sym := range s.favorites {
		if !contains(out, sym) {
			out = append(out, sym)
		}
	}
	return out
}

// SetConnectionStatus records the feed health. The feed manager is the sole
// caller.
func (s *State) SetConnectionStatus(status domain.ConnectionStatus) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()
	if changed {
		s.notify(Update{Kind: UpdateStatus, Status: status})
	}
}

// ConnectionStatus returns the current feed health.
func (s *State) ConnectionStatus() domain.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Preferences returns the current durable preference state, with favorites
// serialized to an ordered list.
func (s *State) Preferences() domain.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Preferences{
		SelectedSymbol: s.selected,
		TimeInterval:   s.interval,
		Favorites:      s.favoritesLocked(),
	}
}

// ApplyPreferences replaces the durable preference state wholesale.
func (s *State) ApplyPreferences(prefs domain.Preferences) {
	s.mu.Lock()
	s.selected = prefs.SelectedSymbol
	s.interval = prefs.TimeInterval
	s.favorites = make(map[string]struct{}, len(prefs.Favorites))
	for _, sym := range prefs.Favorites {
		s.favorites[sym] = struct{}{}
	}
	s.mu.Unlock()
	s.savePreferences()
}

// savePreferences writes the preference record through to the store, best
// effort. Market data is deliberately excluded.
func (s *State) savePreferences() {
	if s.prefs == nil {
		return
	}
	prefs := s.Preferences()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.prefs.Save(ctx, prefs); err != nil {
			s.logger.Warn("saving preferences failed",
				slog.String("error", err.Error()),
			)
		}
	}()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

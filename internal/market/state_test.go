package market

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

const floatDelta = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatDelta
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakePrefStore is an in-memory PreferenceStore that signals saves on a
// channel so tests can wait for the asynchronous write-through.
type fakePrefStore struct {
	stored *domain.Preferences
	saved  chan domain.Preferences
}

func newFakePrefStore(initial *domain.Preferences) *fakePrefStore {
	return &fakePrefStore{
		stored: initial,
		saved:  make(chan domain.Preferences, 16),
	}
}

func (f *fakePrefStore) Load(ctx context.Context) (domain.Preferences, error) {
	if f.stored == nil {
		return domain.Preferences{}, domain.ErrNotFound
	}
	return *f.stored, nil
}

func (f *fakePrefStore) Save(ctx context.Context, prefs domain.Preferences) error {
	f.saved <- prefs
	return nil
}

func waitForSave(t *testing.T, f *fakePrefStore) domain.Preferences {
	t.Helper()
	select {
	case p := <-f.saved:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for preference save")
		return domain.Preferences{}
	}
}

func TestUpdateTickerMergesPartialFields(t *testing.T) {
	s := New(context.Background(), nil, discardLogger())

	s.UpdateTicker("BTCUSDT", domain.TickerUpdate{
		Price:  domain.Float(45000),
		Volume: domain.Float(123456),
		High:   domain.Float(46000),
		Low:    domain.Float(44000),
	})

	// Partial update: only price and change fields specified.
	snap := s.UpdateTicker("BTCUSDT", domain.TickerUpdate{
		Price:         domain.Float(45900),
		Change:        domain.Float(900),
		ChangePercent: domain.Float(2),
	})

	if snap.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q, want BTCUSDT", snap.Symbol)
	}
	if !floatEquals(snap.Price, 45900) {
		t.Errorf("price = %v, want 45900", snap.Price)
	}
	if !floatEquals(snap.Volume, 123456) {
		t.Errorf("volume = %v, want 123456 (unspecified field must be retained)", snap.Volume)
	}
	if !floatEquals(snap.High, 46000) || !floatEquals(snap.Low, 44000) {
		t.Errorf("high/low = %v/%v, want 46000/44000", snap.High, snap.Low)
	}
	if snap.LastUpdate.IsZero() {
		t.Error("lastUpdate must be stamped on every write")
	}
}

func TestTickerUnknownSymbol(t *testing.T) {
	s := New(context.Background(), nil, discardLogger())
	if _, ok := s.Ticker("XRPUSDT"); ok {
		t.Error("Ticker should report absence for an unknown symbol")
	}
	if _, ok := s.OrderBook("XRPUSDT"); ok {
		t.Error("OrderBook should report absence for an unknown symbol")
	}
	if _, ok := s.PriceHistory("XRPUSDT"); ok {
		t.Error("PriceHistory should report absence for an unknown symbol")
	}
}

func TestToggleFavoriteInvolution(t *testing.T) {
	s := New(context.Background(), nil, discardLogger())

	for _, symbol := range []string{"BTCUSDT", "XRPUSDT"} {
		before := s.IsFavorite(symbol)
		s.ToggleFavorite(symbol)
		if s.IsFavorite(symbol) == before {
			t.Errorf("%s: first toggle did not flip membership", symbol)
		}
		s.ToggleFavorite(symbol)
		if s.IsFavorite(symbol) != before {
			t.Errorf("%s: double toggle must restore original membership", symbol)
		}
	}
}

func TestDefaultsWithoutStoredRecord(t *testing.T) {
	s := New(context.Background(), newFakePrefStore(nil), discardLogger())

	if got := s.SelectedSymbol(); got != "BTCUSDT" {
		t.Errorf("selected symbol = %q, want BTCUSDT", got)
	}
	if got := s.TimeInterval(); got != domain.Interval1h {
		t.Errorf("interval = %q, want 1h", got)
	}
	if !s.IsFavorite("BTCUSDT") || !s.IsFavorite("ETHUSDT") {
		t.Error("default favorites must contain BTCUSDT and ETHUSDT")
	}
	if s.IsFavorite("ADAUSDT") {
		t.Error("ADAUSDT should not be a default favorite")
	}
}

func TestPreferencesLoadedFromStore(t *testing.T) {
	stored := domain.Preferences{
		SelectedSymbol: "SOLUSDT",
		TimeInterval:   domain.Interval15m,
		Favorites:      []string{"SOLUSDT", "DOTUSDT"},
	}
	s := New(context.Background(), newFakePrefStore(&stored), discardLogger())

	if got := s.SelectedSymbol(); got != "SOLUSDT" {
		t.Errorf("selected symbol = %q, want SOLUSDT", got)
	}
	if !s.IsFavorite("DOTUSDT") {
		t.Error("favorites list must be reconstituted into set membership")
	}
	if s.IsFavorite("BTCUSDT") {
		t.Error("defaults must not leak when a stored record exists")
	}
}

func TestPreferenceWriteThrough(t *testing.T) {
	store := newFakePrefStore(nil)
	s := New(context.Background(), store, discardLogger())

	s.SetSelectedSymbol("ETHUSDT")
	saved := waitForSave(t, store)
	if saved.SelectedSymbol != "ETHUSDT" {
		t.Errorf("saved selected symbol = %q, want ETHUSDT", saved.SelectedSymbol)
	}

	s.ToggleFavorite("SOLUSDT")
	saved = waitForSave(t, store)
	if !contains(saved.Favorites, "SOLUSDT") {
		t.Errorf("saved favorites %v must include SOLUSDT", saved.Favorites)
	}
	// Favorites are serialized as an ordered list.
	if !contains(saved.Favorites, "BTCUSDT") || !contains(saved.Favorites, "ETHUSDT") {
		t.Errorf("saved favorites %v must retain defaults", saved.Favorites)
	}
}

func TestPriceHistoryRollingWindow(t *testing.T) {
	s := New(context.Background(), nil, discardLogger(), WithMaxCandles(3))

	candles := make([]domain.Candle, 5)
	for i := range candles {
		candles[i] = domain.Candle{Close: float64(i)}
	}
	s.UpdatePriceHistory("BTCUSDT", candles)

	got, ok := s.PriceHistory("BTCUSDT")
	if !ok {
		t.Fatal("history missing after update")
	}
	if len(got) != 3 {
		t.Fatalf("window length = %d, want 3", len(got))
	}
	if !floatEquals(got[0].Close, 2) || !floatEquals(got[2].Close, 4) {
		t.Errorf("window must keep the most recent candles, got closes %v..%v", got[0].Close, got[2].Close)
	}
}

func TestStatusNotifiesOnChangeOnly(t *testing.T) {
	s := New(context.Background(), nil, discardLogger())

	var updates []Update
	done := make(chan struct{}, 8)
	s.OnUpdate(func(u Update) {
		updates = append(updates, u)
		done <- struct{}{}
	})

	s.SetConnectionStatus(domain.StatusConnecting)
	<-done
	s.SetConnectionStatus(domain.StatusConnecting) // no-op, no event
	s.SetConnectionStatus(domain.StatusConnected)
	<-done

	if len(updates) != 2 {
		t.Fatalf("got %d status events, want 2", len(updates))
	}
	if updates[0].Status != domain.StatusConnecting || updates[1].Status != domain.StatusConnected {
		t.Errorf("unexpected event sequence: %+v", updates)
	}
}

func TestOrderBookReplacedWholesale(t *testing.T) {
	s := New(context.Background(), nil, discardLogger())

	first := domain.BuildOrderBook("BTCUSDT",
		[]domain.PriceLevel{{Price: 44990, Quantity: 1}, {Price: 44980, Quantity: 2}},
		[]domain.PriceLevel{{Price: 45010, Quantity: 1}},
		time.Now(),
	)
	s.UpdateOrderBook("BTCUSDT", first)

	second := domain.BuildOrderBook("BTCUSDT",
		[]domain.PriceLevel{{Price: 45100, Quantity: 3}},
		[]domain.PriceLevel{{Price: 45120, Quantity: 4}},
		time.Now(),
	)
	s.UpdateOrderBook("BTCUSDT", second)

	got, ok := s.OrderBook("BTCUSDT")
	if !ok {
		t.Fatal("order book missing after update")
	}
	if len(got.Bids) != 1 || !floatEquals(got.Bids[0].Price, 45100) {
		t.Errorf("order book must be fully replaced, got bids %+v", got.Bids)
	}
	if !floatEquals(got.Spread, 20) {
		t.Errorf("spread = %v, want 20", got.Spread)
	}
}

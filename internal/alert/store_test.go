package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeRepo is an in-memory AlertRepository that signals saves so tests can
// wait for the asynchronous persistence write.
type fakeRepo struct {
	mu     sync.Mutex
	stored []domain.PriceAlert
	saved  chan []domain.PriceAlert
}

func newFakeRepo(initial []domain.PriceAlert) *fakeRepo {
	return &fakeRepo{
		stored: initial,
		saved:  make(chan []domain.PriceAlert, 16),
	}
}

func (f *fakeRepo) LoadAll(ctx context.Context) ([]domain.PriceAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PriceAlert, len(f.stored))
	copy(out, f.stored)
	return out, nil
}

func (f *fakeRepo) SaveAll(ctx context.Context, alerts []domain.PriceAlert) error {
	f.mu.Lock()
	f.stored = alerts
	f.mu.Unlock()
	f.saved <- alerts
	return nil
}

// fakeHistory records inserted trigger records.
type fakeHistory struct {
	mu   sync.Mutex
	recs []domain.TriggeredAlert
	err  error
}

func (f *fakeHistory) Insert(ctx context.Context, rec domain.TriggeredAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeHistory) ListRecent(ctx context.Context, limit int) ([]domain.TriggeredAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TriggeredAlert, len(f.recs))
	copy(out, f.recs)
	return out, nil
}

func (f *fakeHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func waitForSave(t *testing.T, f *fakeRepo) []domain.PriceAlert {
	t.Helper()
	select {
	case alerts := <-f.saved:
		return alerts
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert save")
		return nil
	}
}

func TestAddAssignsIdentityAndDefaults(t *testing.T) {
	s := NewStore(context.Background(), nil, nil, nil, discardLogger())

	a, err := s.Add(context.Background(), "BTCUSDT", 46000, domain.AlertAbove)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.ID == "" {
		t.Error("alert must get a generated id")
	}
	if !a.IsActive {
		t.Error("new alerts must start active")
	}
	if a.Triggered() {
		t.Error("new alerts must start untriggered")
	}
	if a.CreatedAt.IsZero() {
		t.Error("createdAt must be stamped")
	}

	b, _ := s.Add(context.Background(), "BTCUSDT", 40000, domain.AlertBelow)
	if b.ID == a.ID {
		t.Error("ids must be unique")
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	s := NewStore(context.Background(), nil, nil, nil, discardLogger())

	cases := []struct {
		name   string
		symbol string
		target float64
		cond   domain.AlertCondition
	}{
		{"empty symbol", "", 100, domain.AlertAbove},
		{"zero target", "BTCUSDT", 0, domain.AlertAbove},
		{"negative target", "BTCUSDT", -5, domain.AlertBelow},
		{"unknown condition", "BTCUSDT", 100, "sideways"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Add(context.Background(), tc.symbol, tc.target, tc.cond); !errors.Is(err, domain.ErrInvalidAlert) {
				t.Errorf("Add = %v, want ErrInvalidAlert", err)
			}
		})
	}
}

func TestCheckTriggersOnceAndStaysInert(t *testing.T) {
	history := &fakeHistory{}
	s := NewStore(context.Background(), nil, history, nil, discardLogger())

	a, _ := s.Add(context.Background(), "BTCUSDT", 46000, domain.AlertAbove)

	s.Check(context.Background(), "BTCUSDT", 46000) // >= target fires
	got := s.ForSymbol("BTCUSDT")[0]
	if !got.Triggered() {
		t.Fatal("alert should have triggered at target price")
	}
	firstTrigger := *got.TriggeredAt

	// A later matching price must not change triggeredAt.
	s.Check(context.Background(), "BTCUSDT", 47000)
	got = s.ForSymbol("BTCUSDT")[0]
	if !got.TriggeredAt.Equal(firstTrigger) {
		t.Error("triggeredAt must be stamped exactly once")
	}

	// Reactivating via toggle does not re-arm a fired alert.
	s.Toggle(context.Background(), a.ID)
	s.Toggle(context.Background(), a.ID)
	s.Check(context.Background(), "BTCUSDT", 48000)
	if len(history.recs) != 1 {
		t.Errorf("history records = %d, want 1 (no re-fire)", len(history.recs))
	}
}

func TestCheckConditionDirections(t *testing.T) {
	cases := []struct {
		name    string
		cond    domain.AlertCondition
		target  float64
		price   float64
		trigger bool
	}{
		{"above met at target", domain.AlertAbove, 46000, 46000, true},
		{"above met past target", domain.AlertAbove, 46000, 46001, true},
		{"above not met", domain.AlertAbove, 46000, 45999, false},
		{"below met at target", domain.AlertBelow, 44000, 44000, true},
		{"below met past target", domain.AlertBelow, 44000, 43000, true},
		{"below not met", domain.AlertBelow, 44000, 44001, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(context.Background(), nil, nil, nil, discardLogger())
			s.Add(context.Background(), "ETHUSDT", tc.target, tc.cond)
			s.Check(context.Background(), "ETHUSDT", tc.price)
			if got := s.ForSymbol("ETHUSDT")[0].Triggered(); got != tc.trigger {
				t.Errorf("triggered = %v, want %v", got, tc.trigger)
			}
		})
	}
}

func TestCheckIgnoresOtherSymbolsAndInactive(t *testing.T) {
	s := NewStore(context.Background(), nil, nil, nil, discardLogger())

	a, _ := s.Add(context.Background(), "BTCUSDT", 46000, domain.AlertAbove)
	s.Add(context.Background(), "ETHUSDT", 2000, domain.AlertAbove)

	s.Toggle(context.Background(), a.ID) // deactivate
	s.Check(context.Background(), "BTCUSDT", 50000)
	if s.ForSymbol("BTCUSDT")[0].Triggered() {
		t.Error("inactive alerts must not fire")
	}
	if s.ForSymbol("ETHUSDT")[0].Triggered() {
		t.Error("alerts for other symbols must not fire")
	}
}

func TestRemoveAndToggleByID(t *testing.T) {
	s := NewStore(context.Background(), nil, nil, nil, discardLogger())

	a, _ := s.Add(context.Background(), "BTCUSDT", 46000, domain.AlertAbove)
	b, _ := s.Add(context.Background(), "BTCUSDT", 44000, domain.AlertBelow)

	toggled, err := s.Toggle(context.Background(), a.ID)
	if err != nil || toggled.IsActive {
		t.Errorf("Toggle = (%+v, %v), want inactive alert", toggled, err)
	}

	if err := s.Remove(context.Background(), a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	left := s.ForSymbol("BTCUSDT")
	if len(left) != 1 || left[0].ID != b.ID {
		t.Errorf("remaining alerts = %+v, want only %s", left, b.ID)
	}

	if err := s.Remove(context.Background(), a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
	if _, err := s.Toggle(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Toggle unknown id = %v, want ErrNotFound", err)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	s := NewStore(context.Background(), nil, nil, nil, discardLogger())

	first, _ := s.Add(context.Background(), "SOLUSDT", 100, domain.AlertAbove)
	second, _ := s.Add(context.Background(), "SOLUSDT", 90, domain.AlertBelow)
	third, _ := s.Add(context.Background(), "SOLUSDT", 110, domain.AlertAbove)

	got := s.ForSymbol("SOLUSDT")
	want := []string{first.ID, second.ID, third.ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	repo := newFakeRepo(nil)
	s := NewStore(context.Background(), repo, nil, nil, discardLogger())

	a, _ := s.Add(context.Background(), "BTCUSDT", 46000, domain.AlertAbove)
	waitForSave(t, repo)

	// A new store instance sees the persisted collection.
	s2 := NewStore(context.Background(), repo, nil, nil, discardLogger())
	got := s2.ForSymbol("BTCUSDT")
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("reloaded alerts = %+v, want [%s]", got, a.ID)
	}
}

func TestTriggeredHandlerInvoked(t *testing.T) {
	s := NewStore(context.Background(), nil, nil, nil, discardLogger())

	var fired []domain.TriggeredAlert
	s.OnTriggered(func(rec domain.TriggeredAlert) {
		fired = append(fired, rec)
	})

	s.Add(context.Background(), "BTCUSDT", 46000, domain.AlertAbove)
	s.Check(context.Background(), "BTCUSDT", 46500)

	if len(fired) != 1 {
		t.Fatalf("handler invocations = %d, want 1", len(fired))
	}
	if fired[0].Symbol != "BTCUSDT" || fired[0].Price != 46500 {
		t.Errorf("unexpected record %+v", fired[0])
	}
}

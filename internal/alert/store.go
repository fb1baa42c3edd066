// Package alert implements the user price-alert store: creation, toggling,
// evaluation against incoming prices, persistence, and best-effort
// notification dispatch on trigger.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/notify"
)

// EventAlertTriggered is the notifier event type for fired alerts.
const EventAlertTriggered = "alert_triggered"

// saveTimeout bounds the background persistence write.
const saveTimeout = 5 * time.Second

// TriggeredHandler is invoked after an alert fires, outside the store's lock.
type TriggeredHandler func(domain.TriggeredAlert)

// Store holds the alert collection in insertion order. Evaluation, mutation,
// and reads are goroutine safe; persistence and notifications are best effort
// and never fail the caller.
type Store struct {
	mu     sync.Mutex
	alerts []domain.PriceAlert

	repo     domain.AlertRepository
	history  domain.AlertHistoryStore
	notifier *notify.Notifier
	logger   *slog.Logger

	handlerMu sync.RWMutex
	handlers  []TriggeredHandler
}

// NewStore creates a Store seeded from the repository (nil repo or a missing
// record starts empty). history and notifier are optional.
func NewStore(ctx context.Context, repo domain.AlertRepository, history domain.AlertHistoryStore, notifier *notify.Notifier, logger *slog.Logger) *Store {
	s := &Store{
		repo:     repo,
		history:  history,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "alert_store")),
	}
	if repo != nil {
		stored, err := repo.LoadAll(ctx)
		if err != nil {
			s.logger.Warn("loading alerts failed, starting empty",
				slog.String("error", err.Error()),
			)
		} else {
			s.alerts = stored
		}
	}
	return s
}

// OnTriggered registers a handler invoked after every fired alert. The
// parameter is the bare function type so callers can satisfy observer
// interfaces without importing this package's named type.
func (s *Store) OnTriggered(h func(domain.TriggeredAlert)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Add creates a new active, untriggered alert and appends it to the
// collection.
func (s *Store) Add(ctx context.Context, symbol string, targetPrice float64, condition domain.AlertCondition) (domain.PriceAlert, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || targetPrice <= 0 || !condition.Valid() {
		return domain.PriceAlert{}, fmt.Errorf("alert: add %q target=%g cond=%q: %w",
			symbol, targetPrice, condition, domain.ErrInvalidAlert)
	}

	a := domain.PriceAlert{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		TargetPrice: targetPrice,
		Condition:   condition,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()

	s.persist()
	return a, nil
}

// Remove deletes the alert with the given id.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("alert: remove %q: %w", id, domain.ErrNotFound)
	}
	s.alerts = append(s.alerts[:idx], s.alerts[idx+1:]...)
	s.mu.Unlock()

	s.persist()
	return nil
}

// Toggle flips the alert's IsActive flag. TriggeredAt is never touched, so a
// reactivated alert that already fired stays inert.
func (s *Store) Toggle(ctx context.Context, id string) (domain.PriceAlert, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.PriceAlert{}, fmt.Errorf("alert: toggle %q: %w", id, domain.ErrNotFound)
	}
	s.alerts[idx].IsActive = !s.alerts[idx].IsActive
	a := s.alerts[idx]
	s.mu.Unlock()

	s.persist()
	return a, nil
}

// Check evaluates every active, untriggered alert for the symbol against the
// current price. Matching alerts get TriggeredAt stamped permanently, a
// notification is dispatched, and a history record is written; all three are
// best effort with respect to the caller.
func (s *Store) Check(ctx context.Context, symbol string, currentPrice float64) {
	now := time.Now()

	var fired []domain.TriggeredAlert
	s.mu.Lock()
	for i := range s.alerts {
		a := &s.alerts[i]
		if !a.IsActive || a.Triggered() || a.Symbol != symbol {
			continue
		}
		match := (a.Condition == domain.AlertAbove && currentPrice >= a.TargetPrice) ||
			(a.Condition == domain.AlertBelow && currentPrice <= a.TargetPrice)
		if !match {
			continue
		}
		ts := now
		a.TriggeredAt = &ts
		fired = append(fired, domain.TriggeredAlert{
			AlertID:     a.ID,
			Symbol:      a.Symbol,
			TargetPrice: a.TargetPrice,
			Condition:   a.Condition,
			Price:       currentPrice,
			TriggeredAt: now,
		})
	}
	s.mu.Unlock()

	if len(fired) == 0 {
		return
	}
	s.persist()

	for _, rec := range fired {
		s.dispatch(ctx, rec)
	}
}

// ForSymbol returns the symbol's alerts in insertion order.
func (s *Store) ForSymbol(symbol string) []domain.PriceAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceAlert
	for _, a := range s.alerts {
		if a.Symbol == symbol {
			out = append(out, a)
		}
	}
	return out
}

// All returns every alert in insertion order.
func (s *Store) All() []domain.PriceAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PriceAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// dispatch fans a fired alert out to the notifier, the history store, and
// registered handlers. Failures are logged, never propagated: absence of a
// notification channel is a silent no-op.
func (s *Store) dispatch(ctx context.Context, rec domain.TriggeredAlert) {
	s.logger.Info("alert triggered",
		slog.String("alert_id", rec.AlertID),
		slog.String("symbol", rec.Symbol),
		slog.String("condition", string(rec.Condition)),
		slog.Float64("target", rec.TargetPrice),
		slog.Float64("price", rec.Price),
	)

	if s.notifier != nil {
		title := fmt.Sprintf("Price Alert: %s", rec.Symbol)
		body := fmt.Sprintf("Price is %s %g. Current: %g", rec.Condition, rec.TargetPrice, rec.Price)
		if err := s.notifier.Notify(ctx, EventAlertTriggered, title, body); err != nil {
			s.logger.Warn("alert notification failed",
				slog.String("alert_id", rec.AlertID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.history != nil {
		if err := s.history.Insert(ctx, rec); err != nil {
			s.logger.Warn("recording alert history failed",
				slog.String("alert_id", rec.AlertID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.handlerMu.RLock()
	handlers := s.handlers
	s.handlerMu.RUnlock()
	for _, h := range handlers {
		h(rec)
	}
}

// persist writes the whole collection through to the repository, best effort.
func (s *Store) persist() {
	if s.repo == nil {
		return
	}
	alerts := s.All()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.repo.SaveAll(ctx, alerts); err != nil {
			s.logger.Warn("saving alerts failed",
				slog.String("error", err.Error()),
			)
		}
	}()
}

// indexLocked returns the position of the alert with the given id, or -1.
// Caller must hold s.mu.
func (s *Store) indexLocked(id string) int {
	for i, a := range s.alerts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

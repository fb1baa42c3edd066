package domain

import (
	"context"
	"time"
)

// Preferences is the small durable slice of UI state that survives across
// sessions. Favorites is serialized as an ordered list on write and
// reconstituted into set semantics by the market store on load; that
// round-trip is part of the storage adapter contract.
type Preferences struct {
	SelectedSymbol string       `json:"selectedSymbol"`
	TimeInterval   TimeInterval `json:"timeInterval"`
	Favorites      []string     `json:"favorites"`
}

// DefaultPreferences returns the state used when no record has been stored.
func DefaultPreferences() Preferences {
	return Preferences{
		SelectedSymbol: "BTCUSDT",
		TimeInterval:   Interval1h,
		Favorites:      []string{"BTCUSDT", "ETHUSDT"},
	}
}

// PreferenceStore persists user preferences. Load returns ErrNotFound when
// nothing has been stored yet.
type PreferenceStore interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, prefs Preferences) error
}

// AlertRepository persists the user's alert collection. SaveAll replaces the
// stored collection wholesale, preserving order.
type AlertRepository interface {
	LoadAll(ctx context.Context) ([]PriceAlert, error)
	SaveAll(ctx context.Context, alerts []PriceAlert) error
}

// AlertHistoryStore records triggered alerts for later inspection.
type AlertHistoryStore interface {
	Insert(ctx context.Context, rec TriggeredAlert) error
	ListRecent(ctx context.Context, limit int) ([]TriggeredAlert, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

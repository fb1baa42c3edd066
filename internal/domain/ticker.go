// Package domain defines the core data types, store interfaces, and sentinel
// errors shared by all marketdash components.
package domain

import "time"

// Symbols is the fixed set of trading pairs the dashboard tracks.
var Symbols = []string{"BTCUSDT", "ETHUSDT", "ADAUSDT", "DOTUSDT", "SOLUSDT"}

// referencePrices anchor synthetic data generation when no live source is
// reachable. Ballpark figures only; they never reach users while a real feed
// is up.
var referencePrices = map[string]float64{
	"BTCUSDT": 45000,
	"ETHUSDT": 2400,
	"ADAUSDT": 0.45,
	"DOTUSDT": 7.2,
	"SOLUSDT": 98,
}

// ReferencePrice returns the anchor price for synthetic data. Unknown symbols
// get a flat default so generators never divide by zero.
func ReferencePrice(symbol string) float64 {
	if p, ok := referencePrices[symbol]; ok {
		return p
	}
	return 100
}

// TimeInterval is a candle bucket size accepted by the history endpoints.
type TimeInterval string

const (
	Interval1m  TimeInterval = "1m"
	Interval5m  TimeInterval = "5m"
	Interval15m TimeInterval = "15m"
	Interval1h  TimeInterval = "1h"
	Interval4h  TimeInterval = "4h"
	Interval1d  TimeInterval = "1d"
)

// Valid reports whether the interval is one of the supported bucket sizes.
func (i TimeInterval) Valid() bool {
	switch i {
	case Interval1m, Interval5m, Interval15m, Interval1h, Interval4h, Interval1d:
		return true
	}
	return false
}

// Duration returns the bucket width of the interval. Unsupported intervals
// report one hour.
func (i TimeInterval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	}
	return time.Hour
}

// TickerSnapshot is the latest price/volume/24h-range view of one symbol.
// Change and ChangePercent are derived at write time from the previous
// observed price; ChangePercent is never stored independently of that
// derivation.
type TickerSnapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        float64   `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

// TickerUpdate is a partial ticker mutation. Nil fields keep the value
// already held in the snapshot (merge semantics).
type TickerUpdate struct {
	Price         *float64
	Change        *float64
	ChangePercent *float64
	Volume        *float64
	High          *float64
	Low           *float64
}

// Float returns a pointer to v, for building TickerUpdate literals.
func Float(v float64) *float64 { return &v }

// Candle is one OHLCV aggregate for a single time bucket.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

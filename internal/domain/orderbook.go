package domain

import (
	"sort"
	"time"
)

// PriceLevel is a single aggregated order-book level. Total is the running
// quantity accumulated from the best price toward this level.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Total    float64 `json:"total"`
}

// OrderBookSnapshot is a full bid/ask depth snapshot for one symbol. Bids are
// ordered descending by price, asks ascending, so both sides start at the
// midpoint. Snapshots are always replaced wholesale, never merged.
type OrderBookSnapshot struct {
	Symbol        string       `json:"symbol"`
	Bids          []PriceLevel `json:"bids"`
	Asks          []PriceLevel `json:"asks"`
	Spread        float64      `json:"spread"`
	SpreadPercent float64      `json:"spreadPercent"`
	LastUpdate    time.Time    `json:"lastUpdate"`
}

// BuildOrderBook assembles a snapshot from raw (price, quantity) pairs:
// sorts both sides toward the midpoint, computes cumulative totals, and
// derives spread and spreadPercent from the best levels.
func BuildOrderBook(symbol string, bids, asks []PriceLevel, now time.Time) OrderBookSnapshot {
	sortLevels(bids, true)
	sortLevels(asks, false)
	accumulate(bids)
	accumulate(asks)

	snap := OrderBookSnapshot{
		Symbol:     symbol,
		Bids:       bids,
		Asks:       asks,
		LastUpdate: now,
	}
	if len(bids) > 0 && len(asks) > 0 {
		snap.Spread = asks[0].Price - bids[0].Price
		if bids[0].Price != 0 {
			snap.SpreadPercent = snap.Spread / bids[0].Price * 100
		}
	}
	return snap
}

func sortLevels(levels []PriceLevel, descending bool) {
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
}

func accumulate(levels []PriceLevel) {
	var total float64
	for i := range levels {
		total += levels[i].Quantity
		levels[i].Total = total
	}
}

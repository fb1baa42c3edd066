package domain

import (
	"testing"
	"time"
)

const floatDelta = 1e-9

func floatEquals(a, b float64) bool {
	diff := a - b
	return diff < floatDelta && diff > -floatDelta
}

func TestBuildOrderBookDerivations(t *testing.T) {
	now := time.Now()
	book := BuildOrderBook("BTCUSDT",
		[]PriceLevel{
			{Price: 45000, Quantity: 1.5},
			{Price: 45010, Quantity: 0.5},
			{Price: 44990, Quantity: 2},
		},
		[]PriceLevel{
			{Price: 45020, Quantity: 1},
			{Price: 45015, Quantity: 0.7},
		},
		now,
	)

	// Bids descend, asks ascend, both starting at the midpoint.
	if book.Bids[0].Price != 45010 || book.Bids[2].Price != 44990 {
		t.Errorf("bids = %+v", book.Bids)
	}
	if book.Asks[0].Price != 45015 || book.Asks[1].Price != 45020 {
		t.Errorf("asks = %+v", book.Asks)
	}

	// Cumulative totals run from best price outward.
	wantBidTotals := []float64{0.5, 2.0, 4.0}
	for i, want := range wantBidTotals {
		if !floatEquals(book.Bids[i].Total, want) {
			t.Errorf("bid total[%d] = %v, want %v", i, book.Bids[i].Total, want)
		}
	}
	if !floatEquals(book.Asks[1].Total, 1.7) {
		t.Errorf("ask total[1] = %v, want 1.7", book.Asks[1].Total)
	}

	if !floatEquals(book.Spread, 5) {
		t.Errorf("spread = %v, want 5", book.Spread)
	}
	if !floatEquals(book.SpreadPercent, 5.0/45010*100) {
		t.Errorf("spreadPercent = %v", book.SpreadPercent)
	}
	if !book.LastUpdate.Equal(now) {
		t.Errorf("lastUpdate = %v", book.LastUpdate)
	}
}

func TestBuildOrderBookEmptySides(t *testing.T) {
	book := BuildOrderBook("ETHUSDT", nil, []PriceLevel{{Price: 2400, Quantity: 1}}, time.Now())
	if book.Spread != 0 || book.SpreadPercent != 0 {
		t.Errorf("one-sided book must carry zero spread, got %v/%v", book.Spread, book.SpreadPercent)
	}
}

func TestAlertConditionValid(t *testing.T) {
	if !AlertAbove.Valid() || !AlertBelow.Valid() {
		t.Error("known conditions must validate")
	}
	if AlertCondition("sideways").Valid() {
		t.Error("unknown condition must not validate")
	}
}

func TestTimeIntervalDuration(t *testing.T) {
	cases := map[TimeInterval]time.Duration{
		Interval1m:  time.Minute,
		Interval15m: 15 * time.Minute,
		Interval4h:  4 * time.Hour,
		Interval1d:  24 * time.Hour,
		"bogus":     time.Hour,
	}
	for in, want := range cases {
		if got := in.Duration(); got != want {
			t.Errorf("%s.Duration() = %v, want %v", in, got, want)
		}
	}
}

package feed

import (
	"context"
	"sync"
	"testing"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
)

const floatDelta = 1e-9

func floatEquals(a, b float64) bool {
	diff := a - b
	return diff < floatDelta && diff > -floatDelta
}

// fakeChecker records alert evaluation calls.
type fakeChecker struct {
	mu     sync.Mutex
	checks []struct {
		symbol string
		price  float64
	}
}

func (f *fakeChecker) Check(ctx context.Context, symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, struct {
		symbol string
		price  float64
	}{symbol, price})
}

func newTestIngestor(t *testing.T) (*Ingestor, *market.State, *fakeChecker) {
	t.Helper()
	state := market.New(context.Background(), nil, discardLogger())
	checker := &fakeChecker{}
	return NewIngestor(state, checker, discardLogger()), state, checker
}

func TestFirstObservationSeedsSnapshot(t *testing.T) {
	in, state, _ := newTestIngestor(t)

	in.HandleMessage(context.Background(), []byte(`{"bitcoin":"45123.45"}`))

	snap, ok := state.Ticker("BTCUSDT")
	if !ok {
		t.Fatal("expected a BTCUSDT snapshot")
	}
	if !floatEquals(snap.Price, 45123.45) {
		t.Errorf("price = %v, want 45123.45", snap.Price)
	}
	if snap.Change != 0 || snap.ChangePercent != 0 {
		t.Errorf("first observation must carry zero change, got %v / %v", snap.Change, snap.ChangePercent)
	}
	if snap.Volume < 500_000 || snap.Volume > 1_500_000 {
		t.Errorf("synthesized volume %v outside expected range", snap.Volume)
	}
	if snap.High < snap.Price || snap.Low > snap.Price {
		t.Errorf("synthesized range [%v, %v] must bracket price %v", snap.Low, snap.High, snap.Price)
	}
	if snap.LastUpdate.IsZero() {
		t.Error("lastUpdate must be stamped")
	}
}

func TestSubsequentObservationDerivesChange(t *testing.T) {
	in, state, _ := newTestIngestor(t)
	state.UpdateTicker("BTCUSDT", domain.TickerUpdate{
		Price:  domain.Float(45000),
		Volume: domain.Float(900_000),
	})

	in.HandleMessage(context.Background(), []byte(`{"bitcoin":"45900"}`))

	snap, _ := state.Ticker("BTCUSDT")
	if !floatEquals(snap.Price, 45900) {
		t.Errorf("price = %v, want 45900", snap.Price)
	}
	if !floatEquals(snap.Change, 900) {
		t.Errorf("change = %v, want 900", snap.Change)
	}
	if !floatEquals(snap.ChangePercent, 2) {
		t.Errorf("changePercent = %v, want 2", snap.ChangePercent)
	}
	// Partial merge keeps the fields the message does not carry.
	if !floatEquals(snap.Volume, 900_000) {
		t.Errorf("volume = %v, want previous 900000 preserved", snap.Volume)
	}
}

func TestUnmappedAssetsIgnored(t *testing.T) {
	in, state, checker := newTestIngestor(t)

	in.HandleMessage(context.Background(), []byte(`{"dogecoin":"0.07","ethereum":"2400"}`))

	if _, ok := state.Ticker("DOGEUSDT"); ok {
		t.Error("unmapped asset must not create state")
	}
	if _, ok := state.Ticker("ETHUSDT"); !ok {
		t.Error("mapped asset in the same payload must still apply")
	}
	if len(checker.checks) != 1 || checker.checks[0].symbol != "ETHUSDT" {
		t.Errorf("alert checks = %+v, want one for ETHUSDT", checker.checks)
	}
}

func TestMalformedPayloadsDropped(t *testing.T) {
	in, state, checker := newTestIngestor(t)

	payloads := [][]byte{
		[]byte(`not json`),
		[]byte(`[1,2,3]`),
		[]byte(`{"bitcoin":"not-a-number"}`),
		nil,
	}
	for _, p := range payloads {
		in.HandleMessage(context.Background(), p)
	}

	if got := state.Tickers(); len(got) != 0 {
		t.Errorf("malformed payloads must not mutate state, got %v", got)
	}
	if len(checker.checks) != 0 {
		t.Errorf("malformed payloads must not drive alert checks, got %d", len(checker.checks))
	}
}

func TestEveryTickDrivesAlertCheck(t *testing.T) {
	in, _, checker := newTestIngestor(t)

	in.HandleMessage(context.Background(), []byte(`{"bitcoin":"45000"}`))
	in.HandleMessage(context.Background(), []byte(`{"bitcoin":"46000"}`))

	if len(checker.checks) != 2 {
		t.Fatalf("alert checks = %d, want 2", len(checker.checks))
	}
	if !floatEquals(checker.checks[1].price, 46000) {
		t.Errorf("second check price = %v, want 46000", checker.checks[1].price)
	}
}

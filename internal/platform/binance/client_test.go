package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

const floatDelta = 1e-9

func floatEquals(a, b float64) bool {
	diff := a - b
	return diff < floatDelta && diff > -floatDelta
}

func TestTicker24hDecodesStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %s", got)
		}
		w.Write([]byte(`{
			"symbol": "BTCUSDT",
			"lastPrice": "45123.45",
			"priceChange": "900.00",
			"priceChangePercent": "2.03",
			"volume": "12345.6",
			"highPrice": "45500.00",
			"lowPrice": "44200.00"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	snap, err := c.Ticker24h(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Ticker24h: %v", err)
	}
	if !floatEquals(snap.Price, 45123.45) || !floatEquals(snap.Change, 900) {
		t.Errorf("snapshot = %+v", snap)
	}
	if !floatEquals(snap.ChangePercent, 2.03) || !floatEquals(snap.Volume, 12345.6) {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.LastUpdate.IsZero() {
		t.Error("lastUpdate must be stamped")
	}
}

func TestTicker24hRejectsBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lastPrice": "not-a-number"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Ticker24h(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTicker24hSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Ticker24h(context.Background(), "NOPEUSDT"); err == nil {
		t.Fatal("expected status error")
	}
}

func TestDepthBuildsOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %s", got)
		}
		w.Write([]byte(`{
			"lastUpdateId": 1027024,
			"bids": [["45000.00","1.5"],["45010.00","0.5"],["44990.00","2.0"]],
			"asks": [["45020.00","1.0"],["45015.00","0.7"]]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	book, err := c.Depth(context.Background(), "BTCUSDT", 5)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}

	// Bids descending, asks ascending, regardless of wire order.
	if !floatEquals(book.Bids[0].Price, 45010) || !floatEquals(book.Bids[2].Price, 44990) {
		t.Errorf("bids = %+v", book.Bids)
	}
	if !floatEquals(book.Asks[0].Price, 45015) {
		t.Errorf("asks = %+v", book.Asks)
	}
	// Cumulative totals down each side.
	if !floatEquals(book.Bids[1].Total, 0.5+1.5) {
		t.Errorf("bid total = %v, want 2.0", book.Bids[1].Total)
	}
	// Spread from best bid and ask.
	if !floatEquals(book.Spread, 45015-45010) {
		t.Errorf("spread = %v, want 5", book.Spread)
	}
	if !floatEquals(book.SpreadPercent, 5.0/45010*100) {
		t.Errorf("spreadPercent = %v", book.SpreadPercent)
	}
}

func TestKlinesDecodesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "1h" {
			t.Errorf("interval = %s", got)
		}
		w.Write([]byte(`[
			[1756400400000, "45000.0", "45200.0", "44800.0", "45100.0", "321.5", 1756403999999, "0", 0, "0", "0", "0"],
			[1756404000000, "45100.0", "45400.0", "45050.0", "45350.0", "210.2", 1756407599999, "0", 0, "0", "0", "0"]
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	candles, err := c.Klines(context.Background(), "BTCUSDT", domain.Interval1h, 2)
	if err != nil {
		t.Fatalf("Klines: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2", len(candles))
	}
	first := candles[0]
	if !first.Timestamp.Equal(time.UnixMilli(1756400400000)) {
		t.Errorf("timestamp = %v", first.Timestamp)
	}
	if !floatEquals(first.Open, 45000) || !floatEquals(first.Close, 45100) {
		t.Errorf("candle = %+v", first)
	}
	if !floatEquals(first.High, 45200) || !floatEquals(first.Low, 44800) || !floatEquals(first.Volume, 321.5) {
		t.Errorf("candle = %+v", first)
	}
}

func TestMockDataIsWellFormed(t *testing.T) {
	for _, symbol := range domain.Symbols {
		ticker := MockTicker(symbol)
		if ticker.Price <= 0 {
			t.Errorf("%s mock price = %v", symbol, ticker.Price)
		}
		if ticker.High < ticker.Low {
			t.Errorf("%s mock range inverted: [%v, %v]", symbol, ticker.Low, ticker.High)
		}

		book := MockOrderBook(symbol, 10)
		if len(book.Bids) != 10 || len(book.Asks) != 10 {
			t.Errorf("%s mock book sides = %d/%d, want 10/10", symbol, len(book.Bids), len(book.Asks))
		}
		if book.Spread <= 0 {
			t.Errorf("%s mock spread = %v, want positive", symbol, book.Spread)
		}

		candles := MockKlines(symbol, domain.Interval1h, 24)
		if len(candles) != 24 {
			t.Errorf("%s mock candles = %d, want 24", symbol, len(candles))
		}
		for i, c := range candles {
			if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
				t.Errorf("%s candle %d range does not bracket open/close: %+v", symbol, i, c)
			}
		}
	}
}

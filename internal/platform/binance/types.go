package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

// APITicker24h is the wire shape of the /api/v3/ticker/24hr response.
// Binance serializes every numeric field as a decimal string.
type APITicker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

// ToSnapshot converts the wire ticker to a domain snapshot.
func (t *APITicker24h) ToSnapshot() (domain.TickerSnapshot, error) {
	var (
		snap domain.TickerSnapshot
		err  error
	)
	snap.Symbol = t.Symbol
	if snap.Price, err = parseDecimal("lastPrice", t.LastPrice); err != nil {
		return domain.TickerSnapshot{}, err
	}
	if snap.Change, err = parseDecimal("priceChange", t.PriceChange); err != nil {
		return domain.TickerSnapshot{}, err
	}
	if snap.ChangePercent, err = parseDecimal("priceChangePercent", t.PriceChangePercent); err != nil {
		return domain.TickerSnapshot{}, err
	}
	if snap.Volume, err = parseDecimal("volume", t.Volume); err != nil {
		return domain.TickerSnapshot{}, err
	}
	if snap.High, err = parseDecimal("highPrice", t.HighPrice); err != nil {
		return domain.TickerSnapshot{}, err
	}
	if snap.Low, err = parseDecimal("lowPrice", t.LowPrice); err != nil {
		return domain.TickerSnapshot{}, err
	}
	snap.LastUpdate = time.Now()
	return snap, nil
}

// APIDepth is the wire shape of the /api/v3/depth response. Levels arrive as
// ["price", "quantity"] string pairs.
type APIDepth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// ToOrderBook converts the wire depth to a domain order book, deriving
// cumulative totals and the spread.
func (d *APIDepth) ToOrderBook(symbol string) (domain.OrderBookSnapshot, error) {
	bids, err := parseLevels("bids", d.Bids)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	asks, err := parseLevels("asks", d.Asks)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	return domain.BuildOrderBook(symbol, bids, asks, time.Now()), nil
}

// apiKline is one /api/v3/klines row: a heterogeneous JSON array of
// millisecond timestamps and decimal strings.
type apiKline []json.RawMessage

// toCandle converts the kline row's leading fields (open time, OHLC, volume)
// to a domain candle.
func (k apiKline) toCandle() (domain.Candle, error) {
	if len(k) < 6 {
		return domain.Candle{}, fmt.Errorf("kline row has %d fields, want at least 6", len(k))
	}
	var openMillis int64
	if err := json.Unmarshal(k[0], &openMillis); err != nil {
		return domain.Candle{}, fmt.Errorf("kline open time: %w", err)
	}
	var (
		c      domain.Candle
		fields = []struct {
			name string
			dst  *float64
		}{
			{"open", &c.Open},
			{"high", &c.High},
			{"low", &c.Low},
			{"close", &c.Close},
			{"volume", &c.Volume},
		}
	)
	c.Timestamp = time.UnixMilli(openMillis)
	for i, f := range fields {
		var raw string
		if err := json.Unmarshal(k[i+1], &raw); err != nil {
			return domain.Candle{}, fmt.Errorf("kline %s: %w", f.name, err)
		}
		v, err := parseDecimal(f.name, raw)
		if err != nil {
			return domain.Candle{}, err
		}
		*f.dst = v
	}
	return c, nil
}

func parseDecimal(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return v, nil
}

func parseLevels(side string, raw [][2]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := parseDecimal(side+" price", pair[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimal(side+" quantity", pair[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

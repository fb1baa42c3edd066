package binance

import (
	"math/rand"
	"time"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

// Mock generation: when the upstream API is unreachable the proxy endpoints
// degrade to locally generated data anchored on per-symbol reference prices,
// so the dashboard never renders empty panels.

// MockTicker returns a synthetic 24h ticker for the symbol.
func MockTicker(symbol string) domain.TickerSnapshot {
	ref := domain.ReferencePrice(symbol)
	price := ref * (1 + (rand.Float64()-0.5)*0.02)
	change := (rand.Float64() - 0.5) * ref * 0.1
	return domain.TickerSnapshot{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: change / ref * 100,
		Volume:        rand.Float64()*1_000_000 + 500_000,
		High:          price * (1 + rand.Float64()*0.02),
		Low:           price * (1 - rand.Float64()*0.02),
		LastUpdate:    time.Now(),
	}
}

// MockOrderBook returns a synthetic order book with the given number of
// levels per side, spread tightly around the symbol's reference price.
func MockOrderBook(symbol string, levels int) domain.OrderBookSnapshot {
	if levels <= 0 {
		levels = 20
	}
	ref := domain.ReferencePrice(symbol)
	step := ref * 0.0005

	bids := make([]domain.PriceLevel, 0, levels)
	asks := make([]domain.PriceLevel, 0, levels)
	for i := 1; i <= levels; i++ {
		bids = append(bids, domain.PriceLevel{
			Price:    ref - step*float64(i),
			Quantity: rand.Float64()*5 + 0.1,
		})
		asks = append(asks, domain.PriceLevel{
			Price:    ref + step*float64(i),
			Quantity: rand.Float64()*5 + 0.1,
		})
	}
	return domain.BuildOrderBook(symbol, bids, asks, time.Now())
}

// MockKlines returns a synthetic candle series ending now, generated as a
// bounded random walk around the symbol's reference price. Candles are
// returned oldest first.
func MockKlines(symbol string, interval domain.TimeInterval, limit int) []domain.Candle {
	if limit <= 0 {
		limit = 100
	}
	ref := domain.ReferencePrice(symbol)
	bucket := interval.Duration()
	start := time.Now().Add(-bucket * time.Duration(limit))

	candles := make([]domain.Candle, 0, limit)
	price := ref
	for i := 0; i < limit; i++ {
		open := price
		closePrice := open * (1 + (rand.Float64()-0.5)*0.02)
		high := max(open, closePrice) * (1 + rand.Float64()*0.005)
		low := min(open, closePrice) * (1 - rand.Float64()*0.005)
		candles = append(candles, domain.Candle{
			Timestamp: start.Add(bucket * time.Duration(i)),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    rand.Float64()*1_000_000 + 100_000,
		})
		price = closePrice
	}
	return candles
}

package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strconv"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
)

// assetSymbols maps the feed's asset identifiers to internal symbols.
// Messages for identifiers outside this table are silently ignored.
var assetSymbols = map[string]string{
	"bitcoin":  "BTCUSDT",
	"ethereum": "ETHUSDT",
	"cardano":  "ADAUSDT",
	"polkadot": "DOTUSDT",
	"solana":   "SOLUSDT",
}

// AlertChecker evaluates price alerts for a symbol; the alert store
// implements it.
type AlertChecker interface {
	Check(ctx context.Context, symbol string, currentPrice float64)
}

// Ingestor normalizes inbound feed messages into ticker deltas and applies
// them to the market state, then drives alert evaluation.
type Ingestor struct {
	state  *market.State
	alerts AlertChecker
	logger *slog.Logger
}

// NewIngestor creates an Ingestor. alerts may be nil.
func NewIngestor(state *market.State, alerts AlertChecker, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		state:  state,
		alerts: alerts,
		logger: logger.With(slog.String("component", "ingestor")),
	}
}

// HandleMessage processes one raw feed payload: a JSON object mapping asset
// identifier to a decimal price string. Malformed payloads are logged and
// dropped; they never affect connection health.
func (in *Ingestor) HandleMessage(ctx context.Context, raw []byte) {
	var prices map[string]string
	if err := json.Unmarshal(raw, &prices); err != nil {
		in.logger.Warn("dropping malformed feed message",
			slog.String("error", err.Error()),
			slog.Int("bytes", len(raw)),
		)
		return
	}

	for asset, priceStr := range prices {
		symbol, ok := assetSymbols[asset]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			in.logger.Warn("dropping unparseable price",
				slog.String("asset", asset),
				slog.String("price", priceStr),
			)
			continue
		}
		in.applyPrice(ctx, symbol, price)
	}
}

// applyPrice writes one price observation. An existing snapshot with a
// nonzero price gets a partial merge with derived change fields; otherwise a
// fresh snapshot is seeded with synthesized volume and range, since the push
// feed carries price only.
func (in *Ingestor) applyPrice(ctx context.Context, symbol string, price float64) {
	current, ok := in.state.Ticker(symbol)
	if ok && current.Price != 0 {
		change := price - current.Price
		changePercent := change / current.Price * 100
		in.state.UpdateTicker(symbol, domain.TickerUpdate{
			Price:         domain.Float(price),
			Change:        domain.Float(change),
			ChangePercent: domain.Float(changePercent),
		})
	} else {
		in.state.UpdateTicker(symbol, domain.TickerUpdate{
			Price:         domain.Float(price),
			Change:        domain.Float(0),
			ChangePercent: domain.Float(0),
			Volume:        domain.Float(rand.Float64()*1_000_000 + 500_000),
			High:          domain.Float(price * (1 + rand.Float64()*0.02)),
			Low:           domain.Float(price * (1 - rand.Float64()*0.02)),
		})
	}

	if in.alerts != nil {
		in.alerts.Check(ctx, symbol, price)
	}
}

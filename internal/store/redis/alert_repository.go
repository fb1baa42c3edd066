package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

// alertsKey holds the whole alert collection as one JSON document. The
// collection is small and always read and written as a unit, so a single
// value keeps insertion order without extra bookkeeping.
const alertsKey = "marketdash:alerts"

// AlertRepository implements domain.AlertRepository on Redis.
type AlertRepository struct {
	rdb *redis.Client
}

// NewAlertRepository creates an AlertRepository backed by the given Client.
func NewAlertRepository(c *Client) *AlertRepository {
	return &AlertRepository{rdb: c.Underlying()}
}

// LoadAll returns every stored alert in insertion order. A missing key means
// no alerts were ever saved and yields an empty collection, not an error.
func (r *AlertRepository) LoadAll(ctx context.Context) ([]domain.PriceAlert, error) {
	raw, err := r.rdb.Get(ctx, alertsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load alerts: %w", err)
	}

	var alerts []domain.PriceAlert
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return nil, fmt.Errorf("redis: decode alerts: %w", err)
	}
	return alerts, nil
}

// SaveAll replaces the stored alert collection.
func (r *AlertRepository) SaveAll(ctx context.Context, alerts []domain.PriceAlert) error {
	raw, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("redis: encode alerts: %w", err)
	}
	if err := r.rdb.Set(ctx, alertsKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: save alerts: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AlertRepository = (*AlertRepository)(nil)

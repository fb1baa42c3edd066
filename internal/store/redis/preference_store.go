package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

// preferenceKey holds the single dashboard preference record as a hash with
// fields "selected_symbol", "time_interval", and "favorites" (comma-joined,
// ordered).
const preferenceKey = "marketdash:preferences"

// PreferenceStore implements domain.PreferenceStore on Redis.
type PreferenceStore struct {
	rdb *redis.Client
}

// NewPreferenceStore creates a PreferenceStore backed by the given Client.
func NewPreferenceStore(c *Client) *PreferenceStore {
	return &PreferenceStore{rdb: c.Underlying()}
}

// Load retrieves the stored preference record. It returns domain.ErrNotFound
// when no record has ever been saved.
func (s *PreferenceStore) Load(ctx context.Context) (domain.Preferences, error) {
	vals, err := s.rdb.HGetAll(ctx, preferenceKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Preferences{}, fmt.Errorf("redis: load preferences: %w", err)
	}
	if len(vals) == 0 {
		return domain.Preferences{}, domain.ErrNotFound
	}

	prefs := domain.Preferences{
		SelectedSymbol: vals["selected_symbol"],
		TimeInterval:   domain.TimeInterval(vals["time_interval"]),
	}
	if favs := vals["favorites"]; favs != "" {
		prefs.Favorites = strings.Split(favs, ",")
	}
	return prefs, nil
}

// Save writes the preference record, replacing any previous one.
func (s *PreferenceStore) Save(ctx context.Context, prefs domain.Preferences) error {
	fields := map[string]interface{}{
		"selected_symbol": prefs.SelectedSymbol,
		"time_interval":   string(prefs.TimeInterval),
		"favorites":       strings.Join(prefs.Favorites, ","),
	}
	if err := s.rdb.HSet(ctx, preferenceKey, fields).Err(); err != nil {
		return fmt.Errorf("redis: save preferences: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PreferenceStore = (*PreferenceStore)(nil)

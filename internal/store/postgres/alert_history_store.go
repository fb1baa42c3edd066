package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketdash/internal/domain"
)

// AlertHistoryStore implements domain.AlertHistoryStore using PostgreSQL.
type AlertHistoryStore struct {
	pool *pgxpool.Pool
}

// NewAlertHistoryStore creates an AlertHistoryStore backed by the given pool.
func NewAlertHistoryStore(pool *pgxpool.Pool) *AlertHistoryStore {
	return &AlertHistoryStore{pool: pool}
}

// Insert appends one trigger record to the audit log.
func (s *AlertHistoryStore) Insert(ctx context.Context, rec domain.TriggeredAlert) error {
	const query = `
		INSERT INTO alert_history (alert_id, symbol, target_price, condition, price, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		rec.AlertID, rec.Symbol, rec.TargetPrice, string(rec.Condition), rec.Price, rec.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert alert history %s: %w", rec.AlertID, err)
	}
	return nil
}

// ListRecent returns the most recent trigger records, newest first.
func (s *AlertHistoryStore) ListRecent(ctx context.Context, limit int) ([]domain.TriggeredAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT alert_id, symbol, target_price, condition, price, triggered_at
		FROM alert_history
		ORDER BY triggered_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alert history: %w", err)
	}
	defer rows.Close()

	var recs []domain.TriggeredAlert
	for rows.Next() {
		var (
			rec  domain.TriggeredAlert
			cond string
		)
		if err := rows.Scan(&rec.AlertID, &rec.Symbol, &rec.TargetPrice, &cond, &rec.Price, &rec.TriggeredAt); err != nil {
			return nil, fmt.Errorf("postgres: scan alert history: %w", err)
		}
		rec.Condition = domain.AlertCondition(cond)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list alert history rows: %w", err)
	}
	return recs, nil
}

// DeleteBefore removes trigger records older than the given time and returns
// the number deleted. Used by retention cleanup.
func (s *AlertHistoryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM alert_history WHERE triggered_at < $1", before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete alert history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.AlertHistoryStore = (*AlertHistoryStore)(nil)

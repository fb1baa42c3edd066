package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketdash/internal/config"
	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/notify"
	"github.com/alanyoungcy/marketdash/internal/platform/binance"
	"github.com/alanyoungcy/marketdash/internal/store/postgres"
	"github.com/alanyoungcy/marketdash/internal/store/redis"
)

// Dependencies bundles the storage and platform dependencies the dashboard
// needs. It is constructed by Wire and torn down by the returned cleanup
// function. Nil fields mean the tier is not configured; callers degrade.
type Dependencies struct {
	// Persistence (nil when Redis is not configured).
	PreferenceStore domain.PreferenceStore
	AlertRepository domain.AlertRepository

	// Alert trigger audit log (nil when Postgres is not configured).
	AlertHistory domain.AlertHistoryStore

	// Upstream market data.
	Binance *binance.Client

	// Notifications.
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (preference and alert persistence) ---
	if cfg.RedisEnabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PreferenceStore = redis.NewPreferenceStore(redisClient)
		deps.AlertRepository = redis.NewAlertRepository(redisClient)
	} else {
		logger.Warn("redis not configured, preferences and alerts are session-only")
	}

	// --- PostgreSQL (alert trigger history) ---
	if cfg.PostgresEnabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.AlertHistory = postgres.NewAlertHistoryStore(pgClient.Pool())
	}

	// --- Binance REST ---
	deps.Binance = binance.NewClient(cfg.Binance.BaseURL, cfg.Binance.Timeout.Duration)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

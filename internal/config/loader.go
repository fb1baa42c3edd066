package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETDASH_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the service runs
// on defaults plus environment. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETDASH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.URL, "MARKETDASH_FEED_URL")
	setDuration(&cfg.Feed.HeartbeatInterval, "MARKETDASH_FEED_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Feed.ReconnectBase, "MARKETDASH_FEED_RECONNECT_BASE")
	setFloat64(&cfg.Feed.ReconnectFactor, "MARKETDASH_FEED_RECONNECT_FACTOR")
	setDuration(&cfg.Feed.ReconnectCap, "MARKETDASH_FEED_RECONNECT_CAP")
	setInt(&cfg.Feed.MaxReconnectAttempts, "MARKETDASH_FEED_MAX_RECONNECT_ATTEMPTS")
	setDuration(&cfg.Feed.FallbackGrace, "MARKETDASH_FEED_FALLBACK_GRACE")
	setDuration(&cfg.Feed.SyntheticTick, "MARKETDASH_FEED_SYNTHETIC_TICK")

	// ── Binance ──
	setStr(&cfg.Binance.BaseURL, "MARKETDASH_BINANCE_BASE_URL")
	setDuration(&cfg.Binance.Timeout, "MARKETDASH_BINANCE_TIMEOUT")

	// ── History ──
	setDuration(&cfg.History.RefreshInterval, "MARKETDASH_HISTORY_REFRESH_INTERVAL")
	setInt(&cfg.History.CandleLimit, "MARKETDASH_HISTORY_CANDLE_LIMIT")
	setInt(&cfg.History.MaxCandles, "MARKETDASH_HISTORY_MAX_CANDLES")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETDASH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETDASH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETDASH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETDASH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETDASH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETDASH_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MARKETDASH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MARKETDASH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARKETDASH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARKETDASH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARKETDASH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARKETDASH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARKETDASH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MARKETDASH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MARKETDASH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MARKETDASH_POSTGRES_RUN_MIGRATIONS")

	// ── Server ──
	setInt(&cfg.Server.Port, "MARKETDASH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKETDASH_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARKETDASH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETDASH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKETDASH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARKETDASH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "MARKETDASH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// Package config defines the top-level configuration for marketdash and
// provides validation helpers.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETDASH_* environment variables.
type Config struct {
	Feed     FeedConfig     `toml:"feed"`
	Binance  BinanceConfig  `toml:"binance"`
	History  HistoryConfig  `toml:"history"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// FeedConfig holds streaming-feed connection and recovery parameters.
type FeedConfig struct {
	URL string `toml:"url"`

	// HeartbeatInterval is how often a keepalive ping is written to the feed.
	HeartbeatInterval duration `toml:"heartbeat_interval"`

	// ReconnectBase, ReconnectFactor, and ReconnectCap shape the exponential
	// backoff: delay = min(base * factor^attempt, cap).
	ReconnectBase   duration `toml:"reconnect_base"`
	ReconnectFactor float64  `toml:"reconnect_factor"`
	ReconnectCap    duration `toml:"reconnect_cap"`

	// MaxReconnectAttempts is the retry budget before the fallback path runs.
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`

	// FallbackGrace bounds how long the UI may wait for first data: if the
	// feed is not connected within this window the fallback path runs
	// regardless of retry state.
	FallbackGrace duration `toml:"fallback_grace"`

	// SyntheticTick is the perturbation period of the synthetic generator.
	SyntheticTick duration `toml:"synthetic_tick"`
}

// BinanceConfig holds the REST snapshot API parameters.
type BinanceConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// HistoryConfig holds the candle refresh-loop parameters.
type HistoryConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	CandleLimit     int      `toml:"candle_limit"`

	// MaxCandles bounds the rolling window kept per symbol/interval.
	MaxCandles int `toml:"max_candles"`
}

// RedisConfig holds Redis connection parameters for preference and alert
// persistence. An empty Addr disables Redis; state is then session-only.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds connection parameters for the alert-history store.
// An empty DSN (and Host) disables it.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials. With no channels
// configured, alert notifications are silently skipped.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. Values mirror the behavior of
// the dashboard the service backs: 30s heartbeat, 1s/1.5x/15s backoff with an
// 8-attempt budget, and a 3s first-data grace window.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			URL:                  "wss://ws.coincap.io/prices?assets=bitcoin,ethereum,cardano,polkadot,solana",
			HeartbeatInterval:    duration{30 * time.Second},
			ReconnectBase:        duration{time.Second},
			ReconnectFactor:      1.5,
			ReconnectCap:         duration{15 * time.Second},
			MaxReconnectAttempts: 8,
			FallbackGrace:        duration{3 * time.Second},
			SyntheticTick:        duration{5 * time.Second},
		},
		Binance: BinanceConfig{
			BaseURL: "https://api.binance.com",
			Timeout: duration{10 * time.Second},
		},
		History: HistoryConfig{
			RefreshInterval: duration{time.Minute},
			CandleLimit:     100,
			MaxCandles:      500,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			SSLMode:      "disable",
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for values that would make the service
// inoperable. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("config: feed.url must not be empty")
	}
	if c.Feed.ReconnectFactor < 1 {
		return fmt.Errorf("config: feed.reconnect_factor must be >= 1, got %g", c.Feed.ReconnectFactor)
	}
	if c.Feed.MaxReconnectAttempts < 0 {
		return fmt.Errorf("config: feed.max_reconnect_attempts must be >= 0")
	}
	if c.Feed.HeartbeatInterval.Duration <= 0 {
		return fmt.Errorf("config: feed.heartbeat_interval must be positive")
	}
	if c.Feed.FallbackGrace.Duration <= 0 {
		return fmt.Errorf("config: feed.fallback_grace must be positive")
	}
	if c.Binance.BaseURL == "" {
		return fmt.Errorf("config: binance.base_url must not be empty")
	}
	if c.History.CandleLimit <= 0 || c.History.CandleLimit > 1000 {
		return fmt.Errorf("config: history.candle_limit must be in (0, 1000], got %d", c.History.CandleLimit)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be a valid port, got %d", c.Server.Port)
	}
	return nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

// PostgresEnabled reports whether the alert-history database is configured.
func (c *Config) PostgresEnabled() bool {
	return c.Postgres.DSN != "" || c.Postgres.Host != ""
}

// Package config defines the top-level configuration for the scalp bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SCALPBOT_* environment variables.
type Config struct {
	Trading  TradingConfig `toml:"trading"`
	Ledger   LedgerConfig  `toml:"ledger"`
	Feed     FeedConfig    `toml:"feed"`
	Redis    RedisConfig   `toml:"redis"`
	Server   ServerConfig  `toml:"server"`
	Mode     string        `toml:"mode"`
	LogLevel string        `toml:"log_level"`
}

// TradingConfig holds the scalping strategy parameters shared by every
// symbol controller.
type TradingConfig struct {
	Symbols          []string `toml:"symbols"`
	LotSizeUSD       float64  `toml:"lot_size_usd"`
	StopLossPct      float64  `toml:"stop_loss_pct"`
	TakeProfitPct    float64  `toml:"take_profit_pct"`
	MinProfitPct     float64  `toml:"min_profit_pct"`
	MaxHoldSeconds   int      `toml:"max_hold_seconds"`
	OrderTimeoutSecs int      `toml:"order_timeout_seconds"`
	FeeRate          float64  `toml:"fee_rate"`
	WindowSize       int      `toml:"window_size"`
	StepInterval     duration `toml:"step_interval"`
}

// LedgerConfig holds position bookkeeping parameters.
type LedgerConfig struct {
	RetentionHours  int      `toml:"retention_hours"`
	CleanupInterval duration `toml:"cleanup_interval"`
}

// FeedConfig holds the market data stream parameters.
type FeedConfig struct {
	WsURL string `toml:"ws_url"`
}

// RedisConfig holds Redis connection parameters for the optional event bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Trading: TradingConfig{
			Symbols:          []string{"BTC/USD"},
			LotSizeUSD:       100.0,
			StopLossPct:      0.5,
			TakeProfitPct:    0.3,
			MinProfitPct:     0.1,
			MaxHoldSeconds:   300,
			OrderTimeoutSecs: 120,
			FeeRate:          0.0,
			WindowSize:       20,
			StepInterval:     duration{time.Second},
		},
		Ledger: LedgerConfig{
			RetentionHours:  24,
			CleanupInterval: duration{time.Hour},
		},
		Feed: FeedConfig{
			WsURL: "ws://localhost:8765/stream",
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading
	if len(c.Trading.Symbols) == 0 {
		errs = append(errs, "trading: at least one symbol must be configured")
	}
	seen := make(map[string]bool, len(c.Trading.Symbols))
	for _, s := range c.Trading.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "trading: symbols must not contain empty entries")
			continue
		}
		if seen[s] {
			errs = append(errs, fmt.Sprintf("trading: duplicate symbol %q", s))
		}
		seen[s] = true
	}
	if c.Trading.LotSizeUSD <= 0 {
		errs = append(errs, "trading: lot_size_usd must be > 0")
	}
	if c.Trading.StopLossPct <= 0 {
		errs = append(errs, "trading: stop_loss_pct must be > 0")
	}
	if c.Trading.TakeProfitPct <= 0 {
		errs = append(errs, "trading: take_profit_pct must be > 0")
	}
	if c.Trading.MinProfitPct < 0 {
		errs = append(errs, "trading: min_profit_pct must be >= 0")
	}
	if c.Trading.MaxHoldSeconds <= 0 {
		errs = append(errs, "trading: max_hold_seconds must be > 0")
	}
	if c.Trading.OrderTimeoutSecs <= 0 {
		errs = append(errs, "trading: order_timeout_seconds must be > 0")
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("trading: fee_rate must be in [0, 1), got %g", c.Trading.FeeRate))
	}
	if c.Trading.WindowSize < 20 {
		errs = append(errs, "trading: window_size must be >= 20")
	}
	if c.Trading.StepInterval.Duration <= 0 {
		errs = append(errs, "trading: step_interval must be > 0")
	}

	// Ledger
	if c.Ledger.RetentionHours <= 0 {
		errs = append(errs, "ledger: retention_hours must be > 0")
	}
	if c.Ledger.CleanupInterval.Duration <= 0 {
		errs = append(errs, "ledger: cleanup_interval must be > 0")
	}

	// Feed
	if c.Feed.WsURL == "" {
		errs = append(errs, "feed: ws_url must not be empty")
	} else if !strings.HasPrefix(c.Feed.WsURL, "ws://") && !strings.HasPrefix(c.Feed.WsURL, "wss://") {
		errs = append(errs, fmt.Sprintf("feed: ws_url must start with ws:// or wss://, got %q", c.Feed.WsURL))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SCALPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SCALPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Trading ──
	setStringSlice(&cfg.Trading.Symbols, "SCALPBOT_TRADING_SYMBOLS")
	setFloat64(&cfg.Trading.LotSizeUSD, "SCALPBOT_TRADING_LOT_SIZE_USD")
	setFloat64(&cfg.Trading.StopLossPct, "SCALPBOT_TRADING_STOP_LOSS_PCT")
	setFloat64(&cfg.Trading.TakeProfitPct, "SCALPBOT_TRADING_TAKE_PROFIT_PCT")
	setFloat64(&cfg.Trading.MinProfitPct, "SCALPBOT_TRADING_MIN_PROFIT_PCT")
	setInt(&cfg.Trading.MaxHoldSeconds, "SCALPBOT_TRADING_MAX_HOLD_SECONDS")
	setInt(&cfg.Trading.OrderTimeoutSecs, "SCALPBOT_TRADING_ORDER_TIMEOUT_SECONDS")
	setFloat64(&cfg.Trading.FeeRate, "SCALPBOT_TRADING_FEE_RATE")
	setInt(&cfg.Trading.WindowSize, "SCALPBOT_TRADING_WINDOW_SIZE")
	setDuration(&cfg.Trading.StepInterval, "SCALPBOT_TRADING_STEP_INTERVAL")

	// ── Ledger ──
	setInt(&cfg.Ledger.RetentionHours, "SCALPBOT_LEDGER_RETENTION_HOURS")
	setDuration(&cfg.Ledger.CleanupInterval, "SCALPBOT_LEDGER_CLEANUP_INTERVAL")

	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "SCALPBOT_FEED_WS_URL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SCALPBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SCALPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCALPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCALPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SCALPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SCALPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SCALPBOT_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SCALPBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SCALPBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SCALPBOT_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SCALPBOT_MODE")
	setStr(&cfg.LogLevel, "SCALPBOT_LOG_LEVEL")
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

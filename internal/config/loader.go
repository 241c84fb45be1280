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
// built-in defaults, applies POLYFEED_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known POLYFEED_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYFEED_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYFEED_POLYMARKET_WS_HOST")

	// ── Credentials ──
	setStr(&cfg.Credentials.ApiKey, "POLYFEED_API_KEY")
	setStr(&cfg.Credentials.ApiSecret, "POLYFEED_API_SECRET")
	setStr(&cfg.Credentials.ApiPassphrase, "POLYFEED_API_PASSPHRASE")
	setStr(&cfg.Credentials.WalletAddress, "POLYFEED_WALLET_ADDRESS")

	// ── Feed ──
	setStringSlice(&cfg.Feed.AssetIDs, "POLYFEED_FEED_ASSET_IDS")
	setBool(&cfg.Feed.InitialDump, "POLYFEED_FEED_INITIAL_DUMP")
	setStringSlice(&cfg.Feed.UserMarkets, "POLYFEED_FEED_USER_MARKETS")

	// ── Executor ──
	setInt(&cfg.Executor.MaxWorkers, "POLYFEED_EXECUTOR_MAX_WORKERS")
	setDuration(&cfg.Executor.OrderTimeout, "POLYFEED_EXECUTOR_ORDER_TIMEOUT")

	// ── Enrich ──
	setBool(&cfg.Enrich.Enabled, "POLYFEED_ENRICH_ENABLED")
	setInt(&cfg.Enrich.QueueSize, "POLYFEED_ENRICH_QUEUE_SIZE")
	setInt(&cfg.Enrich.Limit, "POLYFEED_ENRICH_LIMIT")
	setDuration(&cfg.Enrich.Window, "POLYFEED_ENRICH_WINDOW")
	setDuration(&cfg.Enrich.RequestTimeout, "POLYFEED_ENRICH_REQUEST_TIMEOUT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYFEED_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYFEED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYFEED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYFEED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYFEED_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POLYFEED_REDIS_TLS_ENABLED")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POLYFEED_LOG_LEVEL")
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

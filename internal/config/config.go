// Package config defines the top-level configuration for the feed and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYFEED_* environment
// variables.
type Config struct {
	Polymarket  PolymarketConfig  `toml:"polymarket"`
	Credentials CredentialsConfig `toml:"credentials"`
	Feed        FeedConfig        `toml:"feed"`
	Executor    ExecutorConfig    `toml:"executor"`
	Enrich      EnrichConfig      `toml:"enrich"`
	Redis       RedisConfig       `toml:"redis"`
	LogLevel    string            `toml:"log_level"`
}

// PolymarketConfig holds the venue endpoints.
type PolymarketConfig struct {
	ClobHost string `toml:"clob_host"`
	WsHost   string `toml:"ws_host"`
}

// CredentialsConfig holds the L2 API credentials and the funding wallet.
// All fields are optional for a read-only market feed; order placement and
// the user channel require all four.
type CredentialsConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
	WalletAddress string `toml:"wallet_address"`
}

// Set reports whether any credential field is present.
func (c CredentialsConfig) Set() bool {
	return c.ApiKey != "" || c.ApiSecret != "" || c.ApiPassphrase != "" || c.WalletAddress != ""
}

// Complete reports whether every credential field is present.
func (c CredentialsConfig) Complete() bool {
	return c.ApiKey != "" && c.ApiSecret != "" && c.ApiPassphrase != "" && c.WalletAddress != ""
}

// FeedConfig holds the streaming subscriptions.
type FeedConfig struct {
	AssetIDs    []string `toml:"asset_ids"`
	InitialDump bool     `toml:"initial_dump"`
	// UserMarkets lists condition IDs for the authenticated user channel.
	// Leaving it empty disables the user stream.
	UserMarkets []string `toml:"user_markets"`
}

// ExecutorConfig holds order gateway parameters.
type ExecutorConfig struct {
	MaxWorkers   int      `toml:"max_workers"`
	OrderTimeout duration `toml:"order_timeout"`
}

// EnrichConfig holds the asynchronous REST price enrichment parameters.
type EnrichConfig struct {
	Enabled        bool     `toml:"enabled"`
	QueueSize      int      `toml:"queue_size"`
	Limit          int      `toml:"limit"`
	Window         duration `toml:"window"`
	RequestTimeout duration `toml:"request_timeout"`
}

// RedisConfig holds the optional Redis mirror parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// duration wraps time.Duration for TOML round-tripping.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "30s" or "5m".
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
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost: "https://clob.polymarket.com",
			WsHost:   "wss://ws-subscriptions-clob.polymarket.com",
		},
		Feed: FeedConfig{
			InitialDump: true,
		},
		Executor: ExecutorConfig{
			MaxWorkers:   5,
			OrderTimeout: duration{30 * time.Second},
		},
		Enrich: EnrichConfig{
			Enabled:        true,
			QueueSize:      256,
			Limit:          10,
			Window:         duration{time.Second},
			RequestTimeout: duration{10 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 20,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}

	// Credentials are all-or-nothing.
	if c.Credentials.Set() && !c.Credentials.Complete() {
		errs = append(errs, "credentials: api_key, api_secret, api_passphrase, and wallet_address must all be set together")
	}
	if c.Credentials.WalletAddress != "" && !common.IsHexAddress(c.Credentials.WalletAddress) {
		errs = append(errs, fmt.Sprintf("credentials: wallet_address %q is not a valid hex address", c.Credentials.WalletAddress))
	}

	// The user channel requires full credentials.
	if len(c.Feed.UserMarkets) > 0 && !c.Credentials.Complete() {
		errs = append(errs, "feed: user_markets requires full credentials")
	}

	if c.Executor.MaxWorkers < 1 {
		errs = append(errs, "executor: max_workers must be >= 1")
	}
	if c.Executor.OrderTimeout.Duration <= 0 {
		errs = append(errs, "executor: order_timeout must be positive")
	}

	if c.Enrich.Enabled {
		if c.Enrich.QueueSize < 1 {
			errs = append(errs, "enrich: queue_size must be >= 1")
		}
		if c.Enrich.Limit < 1 {
			errs = append(errs, "enrich: limit must be >= 1")
		}
		if c.Enrich.Window.Duration <= 0 {
			errs = append(errs, "enrich: window must be positive")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

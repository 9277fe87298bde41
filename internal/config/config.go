// Package config defines the top-level configuration for poolpilot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POOLPILOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	OneInch  OneInchConfig  `toml:"oneinch"`
	Advisor  AdvisorConfig  `toml:"advisor"`
	Invest   InvestConfig   `toml:"invest"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds RPC endpoint and on-chain contract parameters.
type ChainConfig struct {
	RPCURL             string   `toml:"rpc_url"`
	ChainID            int64    `toml:"chain_id"`
	StableAddress      string   `toml:"stable_address"`
	StableDecimals     int      `toml:"stable_decimals"`
	FactoryAddress     string   `toml:"factory_address"`
	PositionManager    string   `toml:"position_manager"`
	ConfirmationWait   duration `toml:"confirmation_wait"`
	CallTimeout        duration `toml:"call_timeout"`
	GasLimitMultiplier float64  `toml:"gas_limit_multiplier"`
}

// OneInchConfig holds 1inch aggregator API parameters.
type OneInchConfig struct {
	BaseURL  string   `toml:"base_url"`
	ApiKey   string   `toml:"api_key"`
	Slippage string   `toml:"slippage"`
	Timeout  duration `toml:"timeout"`
}

// AdvisorConfig holds the pool recommendation service parameters.
type AdvisorConfig struct {
	BaseURL string   `toml:"base_url"`
	ApiKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// InvestConfig holds pipeline tuning parameters, plus the one-shot request
// used by invest mode.
type InvestConfig struct {
	UserID            string   `toml:"user_id"`
	TotalUSD          float64  `toml:"total_usd"`
	DefaultRiskyBps   int      `toml:"default_risky_bps"`
	MintDeadline      duration `toml:"mint_deadline"`
	MintSlippageBps   int      `toml:"mint_slippage_bps"`
	TickRangeSpacings int      `toml:"tick_range_spacings"`
	PriceCacheTTL     duration `toml:"price_cache_ttl"`
	WalletLockTTL     duration `toml:"wallet_lock_ttl"`
	ArchiveReceipts   bool     `toml:"archive_receipts"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
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

// Defaults returns a Config populated with reasonable default values
// targeting Base mainnet.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:             "https://mainnet.base.org",
			ChainID:            8453,
			StableAddress:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			StableDecimals:     6,
			FactoryAddress:     "0x33128a8fC17869897dcE68Ed026d694621f6FDfD",
			PositionManager:    "0x03a520b32C04BF3bEEf7BEb72E919cf822Ed34f1",
			ConfirmationWait:   duration{10 * time.Second},
			CallTimeout:        duration{15 * time.Second},
			GasLimitMultiplier: 1.2,
		},
		OneInch: OneInchConfig{
			BaseURL:  "https://api.1inch.dev",
			Slippage: "1",
			Timeout:  duration{20 * time.Second},
		},
		Advisor: AdvisorConfig{
			Timeout: duration{15 * time.Second},
		},
		Invest: InvestConfig{
			DefaultRiskyBps:   5000,
			MintDeadline:      duration{20 * time.Minute},
			MintSlippageBps:   50,
			TickRangeSpacings: 2,
			PriceCacheTTL:     duration{30 * time.Second},
			WalletLockTTL:     duration{5 * time.Minute},
			ArchiveReceipts:   true,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "poolpilot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "poolpilot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"investment_completed", "investment_failed", "error"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"invest":  true,
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
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, invest, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — at least one credential source must be set for modes that sign.
	needsWallet := c.Mode == "serve" || c.Mode == "invest"
	if needsWallet {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.StableAddress == "" {
		errs = append(errs, "chain: stable_address must not be empty")
	}
	if c.Chain.StableDecimals <= 0 {
		errs = append(errs, "chain: stable_decimals must be positive")
	}
	if c.Chain.FactoryAddress == "" {
		errs = append(errs, "chain: factory_address must not be empty")
	}
	if c.Chain.PositionManager == "" {
		errs = append(errs, "chain: position_manager must not be empty")
	}
	if c.Chain.ConfirmationWait.Duration <= 0 {
		errs = append(errs, "chain: confirmation_wait must be positive")
	}

	// 1inch
	if c.OneInch.BaseURL == "" {
		errs = append(errs, "oneinch: base_url must not be empty")
	}
	if needsWallet && c.OneInch.ApiKey == "" {
		errs = append(errs, "oneinch: api_key is required for mode "+c.Mode)
	}

	// Advisor
	if needsWallet && c.Advisor.BaseURL == "" {
		errs = append(errs, "advisor: base_url is required for mode "+c.Mode)
	}

	// Invest
	if c.Mode == "invest" {
		if c.Invest.UserID == "" {
			errs = append(errs, "invest: user_id is required for mode invest")
		}
		if c.Invest.TotalUSD <= 0 {
			errs = append(errs, fmt.Sprintf("invest: total_usd must be positive for mode invest, got %f", c.Invest.TotalUSD))
		}
	}
	if c.Invest.DefaultRiskyBps < 0 || c.Invest.DefaultRiskyBps > 10_000 {
		errs = append(errs, fmt.Sprintf("invest: default_risky_bps must be 0-10000, got %d", c.Invest.DefaultRiskyBps))
	}
	if c.Invest.MintDeadline.Duration <= 0 {
		errs = append(errs, "invest: mint_deadline must be positive")
	}
	if c.Invest.MintSlippageBps < 0 || c.Invest.MintSlippageBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("invest: mint_slippage_bps must be 0-9999, got %d", c.Invest.MintSlippageBps))
	}
	if c.Invest.TickRangeSpacings < 1 {
		errs = append(errs, "invest: tick_range_spacings must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only required when receipt archival is on.
	if c.Invest.ArchiveReceipts {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when invest.archive_receipts is on")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when invest.archive_receipts is on")
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

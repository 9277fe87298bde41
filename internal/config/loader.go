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
// built-in defaults, applies POOLPILOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known POOLPILOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POOLPILOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POOLPILOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POOLPILOT_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "POOLPILOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "POOLPILOT_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.StableAddress, "POOLPILOT_CHAIN_STABLE_ADDRESS")
	setInt(&cfg.Chain.StableDecimals, "POOLPILOT_CHAIN_STABLE_DECIMALS")
	setStr(&cfg.Chain.FactoryAddress, "POOLPILOT_CHAIN_FACTORY_ADDRESS")
	setStr(&cfg.Chain.PositionManager, "POOLPILOT_CHAIN_POSITION_MANAGER")
	setDuration(&cfg.Chain.ConfirmationWait, "POOLPILOT_CHAIN_CONFIRMATION_WAIT")
	setDuration(&cfg.Chain.CallTimeout, "POOLPILOT_CHAIN_CALL_TIMEOUT")
	setFloat64(&cfg.Chain.GasLimitMultiplier, "POOLPILOT_CHAIN_GAS_LIMIT_MULTIPLIER")

	// ── 1inch ──
	setStr(&cfg.OneInch.BaseURL, "POOLPILOT_ONEINCH_BASE_URL")
	setStr(&cfg.OneInch.ApiKey, "POOLPILOT_ONEINCH_API_KEY")
	setStr(&cfg.OneInch.Slippage, "POOLPILOT_ONEINCH_SLIPPAGE")
	setDuration(&cfg.OneInch.Timeout, "POOLPILOT_ONEINCH_TIMEOUT")

	// ── Advisor ──
	setStr(&cfg.Advisor.BaseURL, "POOLPILOT_ADVISOR_BASE_URL")
	setStr(&cfg.Advisor.ApiKey, "POOLPILOT_ADVISOR_API_KEY")
	setDuration(&cfg.Advisor.Timeout, "POOLPILOT_ADVISOR_TIMEOUT")

	// ── Invest ──
	setStr(&cfg.Invest.UserID, "POOLPILOT_INVEST_USER_ID")
	setFloat64(&cfg.Invest.TotalUSD, "POOLPILOT_INVEST_TOTAL_USD")
	setInt(&cfg.Invest.DefaultRiskyBps, "POOLPILOT_INVEST_DEFAULT_RISKY_BPS")
	setDuration(&cfg.Invest.MintDeadline, "POOLPILOT_INVEST_MINT_DEADLINE")
	setInt(&cfg.Invest.MintSlippageBps, "POOLPILOT_INVEST_MINT_SLIPPAGE_BPS")
	setInt(&cfg.Invest.TickRangeSpacings, "POOLPILOT_INVEST_TICK_RANGE_SPACINGS")
	setDuration(&cfg.Invest.PriceCacheTTL, "POOLPILOT_INVEST_PRICE_CACHE_TTL")
	setDuration(&cfg.Invest.WalletLockTTL, "POOLPILOT_INVEST_WALLET_LOCK_TTL")
	setBool(&cfg.Invest.ArchiveReceipts, "POOLPILOT_INVEST_ARCHIVE_RECEIPTS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POOLPILOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POOLPILOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POOLPILOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POOLPILOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POOLPILOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POOLPILOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POOLPILOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POOLPILOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POOLPILOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POOLPILOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POOLPILOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POOLPILOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POOLPILOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POOLPILOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POOLPILOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POOLPILOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POOLPILOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POOLPILOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "POOLPILOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POOLPILOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POOLPILOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POOLPILOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POOLPILOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POOLPILOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POOLPILOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POOLPILOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POOLPILOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POOLPILOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POOLPILOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POOLPILOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POOLPILOT_MODE")
	setStr(&cfg.LogLevel, "POOLPILOT_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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

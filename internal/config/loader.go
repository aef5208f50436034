package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SNIPER_* environment variable overrides,
// and returns the final Config. An empty path skips the file and uses
// defaults plus environment. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SNIPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Wallet.SecretKey, "SNIPER_WALLET_SECRET_KEY")

	setStr(&cfg.Solana.RPCURL, "SNIPER_SOLANA_RPC_URL")
	setStr(&cfg.Solana.PriceFeedURL, "SNIPER_SOLANA_PRICE_FEED_URL")
	setInt(&cfg.Solana.MaxRetries, "SNIPER_SOLANA_MAX_RETRIES")
	setDuration(&cfg.Solana.RetryDelay, "SNIPER_SOLANA_RETRY_DELAY")

	setStr(&cfg.Venue.BaseURL, "SNIPER_VENUE_BASE_URL")
	setDuration(&cfg.Venue.Timeout, "SNIPER_VENUE_TIMEOUT")

	setStr(&cfg.Scorer.BaseURL, "SNIPER_SCORER_BASE_URL")
	setInt(&cfg.Scorer.Threshold, "SNIPER_SCORER_THRESHOLD")
	setDuration(&cfg.Scorer.Timeout, "SNIPER_SCORER_TIMEOUT")

	setStr(&cfg.Trade.BaseMint, "SNIPER_TRADE_BASE_MINT")
	setInt64(&cfg.Trade.BuyAmountLamports, "SNIPER_TRADE_BUY_AMOUNT_LAMPORTS")
	setFloat64(&cfg.Trade.TargetMultiplier, "SNIPER_TRADE_TARGET_MULTIPLIER")
	setFloat64(&cfg.Trade.SellFraction, "SNIPER_TRADE_SELL_FRACTION")
	setInt(&cfg.Trade.MaxSlippageBps, "SNIPER_TRADE_MAX_SLIPPAGE_BPS")
	setInt(&cfg.Trade.MaxConcurrent, "SNIPER_TRADE_MAX_CONCURRENT")
	setDuration(&cfg.Trade.GracePeriod, "SNIPER_TRADE_GRACE_PERIOD")

	setStr(&cfg.Signals.JSONLPath, "SNIPER_SIGNALS_JSONL_PATH")

	setStr(&cfg.Postgres.DSN, "SNIPER_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "SNIPER_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Clickhouse.Enabled, "SNIPER_CLICKHOUSE_ENABLED")
	setStr(&cfg.Clickhouse.DSN, "SNIPER_CLICKHOUSE_DSN")
	setBool(&cfg.Clickhouse.RunMigrations, "SNIPER_CLICKHOUSE_RUN_MIGRATIONS")

	setStr(&cfg.Notify.TelegramToken, "SNIPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPER_NOTIFY_TELEGRAM_CHAT_ID")

	setBool(&cfg.Server.Enabled, "SNIPER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SNIPER_SERVER_PORT")

	setStr(&cfg.LogLevel, "SNIPER_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the
// environment variable is present and non-empty.

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

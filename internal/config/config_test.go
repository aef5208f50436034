package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.SecretKey = "somebase58secret"
	return cfg
}

func TestDefaults_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing wallet", func(c *Config) { c.Wallet.SecretKey = "" }, "wallet"},
		{"missing rpc url", func(c *Config) { c.Solana.RPCURL = "" }, "rpc_url"},
		{"threshold out of range", func(c *Config) { c.Scorer.Threshold = 150 }, "threshold"},
		{"multiplier too low", func(c *Config) { c.Trade.TargetMultiplier = 1.0 }, "target_multiplier"},
		{"sell fraction zero", func(c *Config) { c.Trade.SellFraction = 0 }, "sell_fraction"},
		{"slippage above bound", func(c *Config) { c.Trade.MaxSlippageBps = 10001 }, "max_slippage_bps"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"telegram token without chat id", func(c *Config) { c.Notify.TelegramToken = "tok" }, "telegram"},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.SecretKey = ""
	cfg.Trade.BuyAmountLamports = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_key")
	assert.Contains(t, err.Error(), "buy_amount_lamports")
}

func TestLoad_TOMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[trade]
buy_amount_lamports = 250000000
target_multiplier = 3.0
grace_period = "10s"

[scorer]
threshold = 90
`), 0o644))

	t.Setenv("SNIPER_WALLET_SECRET_KEY", "envsecret")
	t.Setenv("SNIPER_SCORER_THRESHOLD", "95")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(250000000), cfg.Trade.BuyAmountLamports)
	assert.Equal(t, 3.0, cfg.Trade.TargetMultiplier)
	assert.Equal(t, 10*time.Second, cfg.Trade.GracePeriod.Duration)
	assert.Equal(t, "envsecret", cfg.Wallet.SecretKey, "env override fills the secret")
	assert.Equal(t, 95, cfg.Scorer.Threshold, "env override wins over the file")
	assert.Equal(t, 0.8, cfg.Trade.SellFraction, "unset fields keep their defaults")

	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Trade.BuyAmountLamports, cfg.Trade.BuyAmountLamports)
}

package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.True(t, cfg.TaxRate.IsZero())
	assert.Equal(t, "0.01", cfg.WalletDiscountRate.String())
	assert.Equal(t, 30*time.Second, cfg.CheckoutLockTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigParsesRates(t *testing.T) {
	t.Setenv("TAX_RATE", "0.05")
	t.Setenv("WALLET_DISCOUNT_RATE", "0.02")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example,https://driver.example")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.05", cfg.TaxRate.String())
	assert.Equal(t, "0.02", cfg.WalletDiscountRate.String())
	assert.Len(t, cfg.CORSAllowedOrigins, 2)
}

func TestLoadConfigRejectsBadRates(t *testing.T) {
	cases := map[string][2]string{
		"tax not a number": {"TAX_RATE", "five"},
		"negative tax":     {"TAX_RATE", "-0.1"},
		"discount of one":  {"WALLET_DISCOUNT_RATE", "1"},
		"no rate limit":    {"RATE_LIMIT_PER_MINUTE", "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestInTestModeFollowsEnv(t *testing.T) {
	t.Setenv("SETTLEMENT_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
	t.Setenv("SETTLEMENT_TEST_MODE", "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
	assert.False(t, SkipStartup("api"))
	t.Setenv("SETTLEMENT_TEST_MODE", "true")
	RefreshTestMode()
	assert.True(t, SkipStartup("worker"))
}

func TestLoggerTagsServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"}
	logger := newLogger(&buf, cfg, "worker")

	logger.Info("dropped below level")
	assert.Zero(t, buf.Len())

	logger.Warn("wallet audit drift")
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, ServiceName, record["service"])
	assert.Equal(t, "worker", record["component"])
	assert.Equal(t, "staging", record["env"])
	assert.Equal(t, "wallet audit drift", record["msg"])
}

func TestLoggerFallsBackToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, logLevel(nil))
	assert.Equal(t, slog.LevelInfo, logLevel(&Config{LogLevel: "chatty"}))
	assert.Equal(t, slog.LevelDebug, logLevel(&Config{LogLevel: "DEBUG"}))
}

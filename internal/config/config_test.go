package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "postgres://localhost/creditors")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, cfg.MaxDelay)
	assert.Equal(t, 1000, cfg.MaxCount)
	assert.Equal(t, 5*time.Second, cfg.FastPathIdle)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.RateLimitCapacity)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LEDGER_MAX_DELAY", "24h")
	t.Setenv("LEDGER_MAX_COUNT", "50")
	t.Setenv("LOG_FLUSH_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.MaxDelay)
	assert.Equal(t, 50, cfg.MaxCount)
	assert.Equal(t, 500*time.Millisecond, cfg.FlushInterval)
}

func TestLoadReportsMissingVariables(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LEDGER_MAX_DELAY", "fortnight")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_MAX_DELAY")
}

func TestValidateRateLimitNeedsRedis(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RATE_LIMIT_CAPACITY", "10")
	t.Setenv("RATE_LIMIT_REFILL", "1.5")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

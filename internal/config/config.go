package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	DatabaseURL string
	RedisURL    string
	LogLevel    string

	// Reconciliation tuning.
	MaxDelay     time.Duration // patience window for missing transfers
	MaxCount     int           // ledger updates applied per worker batch
	FastPathIdle time.Duration // ledger quiet time before synchronous apply

	// Background loop cadence.
	ReconcileInterval time.Duration
	FlushInterval     time.Duration
	FlushBatch        int

	// Committed transfer retention.
	TransferRetention time.Duration

	// Per-creditor rate limiting (zero capacity disables).
	RateLimitCapacity int
	RateLimitRefill   float64
}

// Load loads configuration from environment variables. Tunables fall
// back to sensible defaults; only the database URL is required.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: os.Getenv("APP_ENV"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.MaxDelay, err = getenvDuration("LEDGER_MAX_DELAY", 14*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxCount, err = getenvInt("LEDGER_MAX_COUNT", 1000); err != nil {
		return nil, err
	}
	if cfg.FastPathIdle, err = getenvDuration("LEDGER_FAST_PATH_IDLE", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getenvDuration("RECONCILE_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.FlushInterval, err = getenvDuration("LOG_FLUSH_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.FlushBatch, err = getenvInt("LOG_FLUSH_BATCH", 100); err != nil {
		return nil, err
	}
	if cfg.TransferRetention, err = getenvDuration("TRANSFER_RETENTION", 90*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitCapacity, err = getenvInt("RATE_LIMIT_CAPACITY", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitRefill, err = getenvFloat("RATE_LIMIT_REFILL", 0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	if c.RateLimitCapacity > 0 && c.RedisURL == "" {
		return errors.New("RATE_LIMIT_CAPACITY is set but REDIS_URL is empty")
	}
	if c.MaxCount <= 0 {
		return errors.New("LEDGER_MAX_COUNT must be positive")
	}
	if c.MaxDelay <= 0 {
		return errors.New("LEDGER_MAX_DELAY must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

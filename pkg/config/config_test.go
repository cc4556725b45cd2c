package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppDefaults(t *testing.T) {
	chdirTemp(t)
	for _, k := range []string{"HTTP_ADDR", "STORAGE", "SCHOOL_TIMEZONE", "LOW_BALANCE_THRESHOLD", "LOG_DIR", "REDIS_URL", "IDEMPOTENCY_TTL"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfigApp()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "100", cfg.LowBalanceThreshold.String())
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfigAppOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STORAGE", "MEMORY")
	t.Setenv("SCHOOL_TIMEZONE", "UTC")
	t.Setenv("LOW_BALANCE_THRESHOLD", "250.50")
	t.Setenv("IDEMPOTENCY_TTL", "30m")

	cfg, err := LoadConfigApp()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "250.5", cfg.LowBalanceThreshold.String())
	assert.Equal(t, 30*time.Minute, cfg.IdempotencyTTL)
}

func TestLoadConfigAppRejectsBadValues(t *testing.T) {
	chdirTemp(t)

	t.Setenv("STORAGE", "mongo")
	_, err := LoadConfigApp()
	assert.Error(t, err)

	t.Setenv("STORAGE", "memory")
	t.Setenv("LOW_BALANCE_THRESHOLD", "-1")
	_, err = LoadConfigApp()
	assert.Error(t, err)
}

func TestLoadConfigDB(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "school")
	t.Setenv("DB_NAME", "wallets")
	t.Setenv("DB_MAX_OPEN_CONNS", "")
	t.Setenv("DB_MAX_IDLE_CONNS", "")

	cfg, err := LoadConfigDB()
	require.NoError(t, err)
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)

	t.Setenv("DB_PORT", "abc")
	_, err = LoadConfigDB()
	assert.Error(t, err)
}

// chdirTemp keeps a config.env in the working directory from leaking into tests.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

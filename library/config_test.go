package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LIBRARY_STORAGE_DRIVER", "LIBRARY_SQLITE_PATH", "LIBRARY_POSTGRES_DSN",
		"LIBRARY_BUSY_TIMEOUT", "LIBRARY_MAX_ATTEMPTS",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIBRARY_STORAGE_DRIVER", "postgres")
	t.Setenv("LIBRARY_POSTGRES_DSN", "postgres://u:p@localhost:5432/library")
	t.Setenv("LIBRARY_BUSY_TIMEOUT", "2s")
	t.Setenv("LIBRARY_MAX_ATTEMPTS", "3")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/library", cfg.PostgresDSN)
	assert.Equal(t, 2*time.Second, cfg.BusyTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnvMalformed(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIBRARY_BUSY_TIMEOUT", "soon")
	_, err := ConfigFromEnv()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("LIBRARY_MAX_ATTEMPTS", "many")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}

func TestConfigValidateUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "oracle"
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrUnknownDriver)
	assert.Contains(t, err.Error(), "oracle")
}

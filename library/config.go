package library

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	DriverSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	DriverPostgres StorageDriver = "postgres" // PostgreSQL server
)

const (
	defaultSQLitePath  = "library.db"
	defaultBusyTimeout = 5 * time.Second
)

// Config selects and tunes the storage backend.
type Config struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// BusyTimeout bounds how long a writer waits for the SQLite write lock.
	BusyTimeout time.Duration
	// MaxAttempts bounds how often a ledger operation is tried on transient failures.
	MaxAttempts int
}

// DefaultConfig returns a sqlite configuration rooted at ./library.db.
func DefaultConfig() Config {
	return Config{
		Driver:      DriverSQLite,
		SQLitePath:  defaultSQLitePath,
		BusyTimeout: defaultBusyTimeout,
		MaxAttempts: defaultMaxAttempts,
	}
}

// ConfigFromEnv overlays environment variables on DefaultConfig. Only
// malformed values are reported; NewDatabase validates the result.
//
//	LIBRARY_STORAGE_DRIVER: sqlite|postgres (default sqlite)
//	LIBRARY_SQLITE_PATH: path to sqlite file (default ./library.db)
//	LIBRARY_POSTGRES_DSN: postgres DSN when driver=postgres
//	LIBRARY_BUSY_TIMEOUT: Go duration, e.g. 2s (default 5s)
//	LIBRARY_MAX_ATTEMPTS: attempts per ledger operation (default 6)
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := os.Getenv("LIBRARY_STORAGE_DRIVER"); v != "" {
		cfg.Driver = StorageDriver(v)
	}
	if v := os.Getenv("LIBRARY_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	cfg.PostgresDSN = os.Getenv("LIBRARY_POSTGRES_DSN")
	if v := os.Getenv("LIBRARY_BUSY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("LIBRARY_BUSY_TIMEOUT: %w", err)
		}
		cfg.BusyTimeout = d
	}
	if v := os.Getenv("LIBRARY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("LIBRARY_MAX_ATTEMPTS: %w", err)
		}
		cfg.MaxAttempts = n
	}
	return cfg, nil
}

// Validate reports configuration errors before any connection is opened.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite path is empty", ErrInvalidInput)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres dsn is empty", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownDriver, c.Driver)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("%w: busy timeout must not be negative", ErrInvalidInput)
	}
	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

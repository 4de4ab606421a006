package library

import "time"

// Logger receives operational messages. *slog.Logger satisfies it.
//
// Debug level: SQL statements with execution timing
// Info level: committed borrows and returns, capacity failures
// Warn level: transient failures that are being retried
// Error level: failures that abort an operation
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Option configures a Database.
type Option func(*Database) error

// WithLogger sets the logger for the Database.
func WithLogger(logger Logger) Option {
	return func(d *Database) error {
		if logger != nil {
			d.logger = logger
		}
		return nil
	}
}

// WithMetrics attaches Prometheus collectors created by NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Database) error {
		d.metrics = m
		return nil
	}
}

// WithClock replaces time.Now as the source of borrow, due and return dates
// and of the instant effective loan status is computed against.
func WithClock(now func() time.Time) Option {
	return func(d *Database) error {
		if now != nil {
			d.now = func() time.Time { return now().UTC() }
		}
		return nil
	}
}

// WithRetryOptions tunes the transient-failure retry of ledger operations.
func WithRetryOptions(opts ...RetryOption) Option {
	return func(d *Database) error {
		d.retry = append(d.retry, opts...)
		return nil
	}
}

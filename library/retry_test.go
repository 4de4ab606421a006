package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transient(msg string) error { return transientError{cause: errors.New(msg)} }

func TestRetryTransientSucceedsAfterFailures(t *testing.T) {
	attempts := 0
	var hooked []int

	err := retryTransient(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return transient("database is locked")
		}
		return nil
	},
		WithBaseDelay(time.Millisecond),
		withRetryHook(func(attempt int, _ error) { hooked = append(hooked, attempt) }),
	)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, hooked)
}

func TestRetryTransientStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := retryTransient(context.Background(), func(context.Context) error {
		attempts++
		return ErrBookUnavailable
	}, WithBaseDelay(time.Millisecond))

	assert.ErrorIs(t, err, ErrBookUnavailable)
	assert.Equal(t, 1, attempts, "non-transient errors are never retried")
}

func TestRetryTransientGivesUp(t *testing.T) {
	attempts, hooks := 0, 0
	err := retryTransient(context.Background(), func(context.Context) error {
		attempts++
		return transient("busy")
	},
		WithMaxAttempts(3),
		WithBaseDelay(time.Millisecond),
		WithJitterFactor(0),
		withRetryHook(func(int, error) { hooks++ }),
	)

	assert.ErrorIs(t, err, ErrTransient)
	assert.True(t, Retryable(err))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, hooks, "no hook after the final attempt")
}

func TestRetryTransientHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := retryTransient(ctx, func(context.Context) error {
		attempts++
		cancel()
		return transient("busy")
	}, WithBaseDelay(time.Hour))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryOptionValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }
	ctx := context.Background()

	assert.ErrorIs(t, retryTransient(ctx, noop, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, retryTransient(ctx, noop, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, retryTransient(ctx, noop, WithJitterFactor(1.5)), ErrInvalidJitterFactor)
	assert.ErrorIs(t, retryTransient(ctx, noop, WithJitterFactor(-0.1)), ErrInvalidJitterFactor)
}

func TestDatabaseRejectsInvalidRetryOptions(t *testing.T) {
	db := tempDB(t, WithRetryOptions(WithJitterFactor(2)))

	_, err := db.CreateBook(context.Background(), NewBook{Title: "t", Author: "a", ISBN: "i", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidJitterFactor)
}

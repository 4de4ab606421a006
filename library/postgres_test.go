package library

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postgresConfig points at the server named by LIBRARY_TEST_POSTGRES_DSN.
// Tests using it are skipped when the variable is unset.
func postgresConfig(t *testing.T) Config {
	t.Helper()
	dsn := os.Getenv("LIBRARY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LIBRARY_TEST_POSTGRES_DSN not set")
	}
	return Config{Driver: DriverPostgres, PostgresDSN: dsn, BusyTimeout: 5 * time.Second, MaxAttempts: defaultMaxAttempts}
}

// openPostgresDB connects with cfg and empties the tables.
func openPostgresDB(t *testing.T, cfg Config, options ...Option) *Database {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewDatabase(ctx, cfg, options...)
	require.NoError(t, err, "connect to postgres")
	t.Cleanup(func() { db.Close() })

	_, err = db.db.ExecContext(ctx, `TRUNCATE loans, members, books RESTART IDENTITY CASCADE`)
	require.NoError(t, err, "clean tables")
	return db
}

func postgresDB(t *testing.T) *Database {
	t.Helper()
	return openPostgresDB(t, postgresConfig(t))
}

func TestPostgresBorrowAndReturn(t *testing.T) {
	ctx := context.Background()
	db := postgresDB(t)
	bookID := givenBook(t, db, "978-0743273565", 5)
	memberID := givenMember(t, db, "john@example.com", 0)

	_, err := db.CreateBook(ctx, NewBook{Title: "dup", Author: "dup", ISBN: "978-0743273565", Quantity: 1})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	loanID, err := db.BorrowBook(ctx, bookID, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), available(t, db, bookID))

	require.NoError(t, db.ReturnBook(ctx, loanID))
	assert.ErrorIs(t, db.ReturnBook(ctx, loanID), ErrLoanNotFoundOrAlreadyReturned)
	assert.Equal(t, int64(5), available(t, db, bookID))

	history, err := db.GetMemberHistory(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatusReturned, history[0].Status)
	assertConsistent(t, db)
}

func TestPostgresConcurrentBorrowOfLastCopy(t *testing.T) {
	ctx := context.Background()
	db := postgresDB(t)
	bookID := givenBook(t, db, "isbn-1", 1)

	const n = 10
	members := make([]MemberID, n)
	for i := range members {
		members[i] = givenMember(t, db, fmt.Sprintf("m%d@example.com", i), 0)
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.BorrowBook(ctx, bookID, members[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrBookUnavailable)
	}
	assert.Equal(t, 1, succeeded)
	assertConsistent(t, db)
}

func TestPostgresLockWaitIsBounded(t *testing.T) {
	ctx := context.Background()
	cfg := postgresConfig(t)
	cfg.BusyTimeout = 100 * time.Millisecond
	db := openPostgresDB(t, cfg, WithRetryOptions(WithMaxAttempts(2), WithBaseDelay(0)))
	bookID := givenBook(t, db, "isbn-1", 2)
	memberID := givenMember(t, db, "a@example.com", 0)

	holder, err := db.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	_, err = holder.ExecContext(ctx, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, int64(bookID))
	require.NoError(t, err)

	start := time.Now()
	_, err = db.BorrowBook(ctx, bookID, memberID)
	require.ErrorIs(t, err, ErrTransient)
	assert.True(t, Retryable(err))
	assert.Less(t, time.Since(start), 5*time.Second, "a held row lock must not block forever")

	require.NoError(t, holder.Rollback())
	assert.Equal(t, int64(2), available(t, db, bookID))
	s, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Loans)
	assertConsistent(t, db)

	_, err = db.BorrowBook(ctx, bookID, memberID)
	assert.NoError(t, err, "borrow succeeds once the lock is released")
}

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"library-lending/library"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t      *testing.T
	dbPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, k := range []string{"LIBRARY_STORAGE_DRIVER", "LIBRARY_SQLITE_PATH", "LIBRARY_POSTGRES_DSN"} {
		t.Setenv(k, "")
	}
	return &cli{t: t, dbPath: filepath.Join(t.TempDir(), "cli.db")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), append([]string{"--db", c.dbPath}, args...), &out, &errOut)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "library %s", strings.Join(args, " "))
	return out
}

func TestCLIBorrowReturnFlow(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("add-book", "--title", "The Great Gatsby", "--author", "F. Scott Fitzgerald",
		"--isbn", "978-0743273565", "--quantity", "5", "--publisher", "Scribner", "--price", "9.99")
	assert.Contains(t, out, "Created book 1")

	out = c.mustRun("add-member", "--name", "John Doe", "--email", "john@example.com", "--tier", "Premium")
	assert.Contains(t, out, "Created member 1")

	out = c.mustRun("borrow", "1", "1")
	assert.Contains(t, out, "Loan 1: book 1 to member 1")

	out = c.mustRun("books")
	assert.Contains(t, out, "The Great Gatsby")
	assert.Contains(t, out, "4/5")

	out = c.mustRun("history", "1")
	assert.Contains(t, out, "The Great Gatsby")
	assert.Contains(t, out, "Active")

	out = c.mustRun("return", "1")
	assert.Contains(t, out, "5 of 5 copies available")

	_, err := c.run("return", "1")
	require.ErrorIs(t, err, library.ErrLoanNotFoundOrAlreadyReturned)
	assert.Equal(t, 4, exitCode(err))

	out = c.mustRun("check")
	assert.Contains(t, out, "All availability counters match")
}

func TestCLIExitCodes(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add-book", "--title", "T", "--author", "A", "--isbn", "1", "--quantity", "1")
	c.mustRun("add-member", "--name", "A", "--email", "a@example.com")
	c.mustRun("add-member", "--name", "B", "--email", "b@example.com")
	c.mustRun("borrow", "1", "1")

	_, err := c.run("borrow", "1", "2")
	assert.ErrorIs(t, err, library.ErrBookUnavailable)
	assert.Equal(t, 3, exitCode(err))

	_, err = c.run("borrow", "abc", "1")
	assert.ErrorIs(t, err, library.ErrInvalidInput)
	assert.Equal(t, 2, exitCode(err))

	_, err = c.run("history", "99")
	assert.ErrorIs(t, err, library.ErrMemberNotFound)
	assert.Equal(t, 2, exitCode(err))

	_, err = c.run("add-book", "--title", "T", "--author", "A", "--isbn", "1")
	assert.ErrorIs(t, err, library.ErrDuplicateKey)

	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestCLIJSONOutput(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add-book", "--title", "Python Programming", "--author", "John Smith", "--isbn", "978-1234567890", "--quantity", "3")

	out := c.mustRun("--json", "books")
	var books []library.Book
	require.NoError(t, json.Unmarshal([]byte(out), &books))
	require.Len(t, books, 1)
	assert.Equal(t, "Python Programming", books[0].Title)
	assert.Equal(t, int64(3), books[0].Available)
	assert.Nil(t, books[0].Publisher)

	out = c.mustRun("--json", "stats")
	var s library.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, library.Stats{Books: 1}, s)
}

func TestCLIDemo(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.dbPath, []byte("not a database"), 0o644))

	out := c.mustRun("demo", "--fresh")
	assert.Contains(t, out, "Adding sample books")
	assert.Contains(t, out, "The Great Gatsby")
	assert.Contains(t, out, "Returned")
	assert.Contains(t, out, "Books:         2")
	assert.Contains(t, out, "Members:       2")
	assert.Contains(t, out, "Loans:         1")

	// --fresh starts from scratch on every run.
	c.mustRun("demo", "--fresh")
}

func TestCLIDemoKeepsExistingFileWithoutFresh(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.dbPath, []byte("keep me"), 0o644))

	_, err := c.run("demo")
	require.ErrorIs(t, err, library.ErrInvalidInput)
	assert.Contains(t, err.Error(), "--fresh")
	assert.Equal(t, 2, exitCode(err))

	raw, err := os.ReadFile(c.dbPath)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(raw), "the named file is left untouched")

	// A path that does not exist yet needs no --fresh.
	c.dbPath = filepath.Join(t.TempDir(), "new.db")
	out := c.mustRun("demo")
	assert.Contains(t, out, "Loans:         1")
}

func TestCLIWritesMetricsFile(t *testing.T) {
	c := newCLI(t)
	metrics := filepath.Join(t.TempDir(), "library.prom")

	c.mustRun("--metrics-file", metrics, "add-member", "--name", "A", "--email", "a@example.com")

	raw, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `library_operations_total{operation="create_member",outcome="ok"} 1`)
}

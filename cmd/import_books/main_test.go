package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"library-lending/library"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `title,author,isbn,quantity,publisher,year,price,location
The Great Gatsby,F. Scott Fitzgerald,978-0743273565,5,Scribner,1925,9.99,A1-23
Python Programming,John Smith,978-1234567890,3,,,29.99,B2-15
Duplicate Gatsby,Someone,978-0743273565,1
No Quantity,Nobody,111,lots
Too Short,Nobody
`

func TestImportBooks(t *testing.T) {
	ctx := context.Background()
	mgr, err := library.NewLibraryManager(ctx, library.Config{
		Driver:      library.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "import.db"),
		BusyTimeout: 5 * time.Second,
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	var log bytes.Buffer
	s, err := importBooks(ctx, mgr, strings.NewReader(sampleCSV), &log)
	require.NoError(t, err)
	assert.Equal(t, summary{imported: 2, duplicates: 1, errors: 2}, s)
	assert.Contains(t, log.String(), "DUPLICATE")

	books, err := mgr.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)

	gatsby := books[0]
	assert.Equal(t, "The Great Gatsby", gatsby.Title)
	assert.Equal(t, int64(5), gatsby.Available)
	require.NotNil(t, gatsby.Year)
	assert.Equal(t, int64(1925), *gatsby.Year)
	require.NotNil(t, gatsby.Publisher)
	assert.Equal(t, "Scribner", *gatsby.Publisher)

	python := books[1]
	assert.Nil(t, python.Publisher)
	assert.Nil(t, python.Year)
	require.NotNil(t, python.Location)
	assert.Equal(t, "B2-15", *python.Location)
}

func TestParseRow(t *testing.T) {
	nb, err := parseRow([]string{" Title ", "Author", "isbn", "2"})
	require.NoError(t, err)
	assert.Equal(t, "Title", nb.Title)
	assert.Equal(t, int64(2), nb.Quantity)
	assert.Nil(t, nb.Price)

	_, err = parseRow([]string{"t", "a", "i", "1", "", "nineteen"})
	assert.Error(t, err)

	_, err = parseRow([]string{"t", "a", "i", "1", "", "", "cheap"})
	assert.Error(t, err)
}

func TestImportCommand(t *testing.T) {
	t.Setenv("LIBRARY_STORAGE_DRIVER", "")
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "books.csv")
	dbPath := filepath.Join(dir, "catalog.db")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))

	var out bytes.Buffer
	cmd := newImportCmd(&out)
	cmd.SetArgs([]string{"--csv", csvPath, "--db", dbPath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Successfully imported: 2 books")
	assert.Contains(t, out.String(), "Duplicates skipped: 1")
	assert.Contains(t, out.String(), "Errors: 2")

	// Importing again without --fresh only finds duplicates.
	out.Reset()
	cmd = newImportCmd(&out)
	cmd.SetArgs([]string{"--csv", csvPath, "--db", dbPath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Successfully imported: 0 books")
	assert.Contains(t, out.String(), "Duplicates skipped: 3")

	out.Reset()
	cmd = newImportCmd(&out)
	cmd.SetArgs([]string{"--csv", csvPath, "--db", dbPath, "--fresh"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Cleaning up existing database files")
	assert.Contains(t, out.String(), "Successfully imported: 2 books")
}

func TestImportCommandMissingCSV(t *testing.T) {
	t.Setenv("LIBRARY_STORAGE_DRIVER", "")
	dir := t.TempDir()

	var out bytes.Buffer
	cmd := newImportCmd(&out)
	cmd.SetArgs([]string{"--csv", filepath.Join(dir, "missing.csv"), "--db", filepath.Join(dir, "x.db")})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// Command import_books loads catalog entries from a CSV file with the columns
//
//	title,author,isbn,quantity[,publisher,year,price,location]
//
// A header row is skipped when its first field is "title".
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"library-lending/library"

	"github.com/spf13/cobra"
)

type summary struct {
	imported   int
	duplicates int
	errors     int
}

func main() {
	cmd := newImportCmd(os.Stdout)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newImportCmd(out io.Writer) *cobra.Command {
	var (
		csvPath string
		dbPath  string
		fresh   bool
	)
	cmd := &cobra.Command{
		Use:           "import_books",
		Short:         "Load catalog entries from a CSV file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := library.ConfigFromEnv()
			if err != nil {
				return fmt.Errorf("read configuration: %w", err)
			}
			if dbPath != "" {
				cfg.SQLitePath = dbPath
			}
			if fresh && cfg.Driver == library.DriverSQLite {
				cleanup(out, cfg.SQLitePath)
			}
			return runImport(cmd.Context(), cfg, csvPath, out)
		},
	}
	cmd.SetOut(out)
	f := cmd.Flags()
	f.StringVar(&csvPath, "csv", "books.csv", "CSV file to import")
	f.StringVar(&dbPath, "db", "", "sqlite database path (env LIBRARY_SQLITE_PATH)")
	f.BoolVar(&fresh, "fresh", false, "remove the sqlite database before importing")
	return cmd
}

func cleanup(out io.Writer, path string) {
	fmt.Fprintln(out, "Cleaning up existing database files...")
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
}

func runImport(ctx context.Context, cfg library.Config, csvPath string, out io.Writer) (err error) {
	manager, err := library.NewLibraryManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { err = errors.Join(err, manager.Close()) }()

	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(out, "Importing books from %s...\n", csvPath)
	s, err := importBooks(ctx, manager, f, out)
	if err != nil {
		return fmt.Errorf("read %s: %w", csvPath, err)
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", s.imported)
	fmt.Fprintf(out, "Duplicates skipped: %d\n", s.duplicates)
	fmt.Fprintf(out, "Errors: %d\n", s.errors)

	if s.imported > 0 {
		books, err := manager.ListBooks(ctx)
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		fmt.Fprintln(out, "\nCatalog:")
		fmt.Fprintf(out, "%-5s %-50s %-30s\n", "ID", "Title", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 87))
		for _, book := range books {
			fmt.Fprintf(out, "%-5d %-50s %-30s\n", book.ID, library.Truncate(book.Title, 50), library.Truncate(book.Author, 30))
		}
	}
	return nil
}

type bookCreator interface {
	CreateBook(ctx context.Context, nb library.NewBook) (library.BookID, error)
}

// importBooks adds one book per CSV row. Row errors are counted and reported
// to w; only a malformed CSV stream aborts the import.
func importBooks(ctx context.Context, c bookCreator, r io.Reader, w io.Writer) (summary, error) {
	var s summary
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}

		nb, err := parseRow(rec)
		if err != nil {
			fmt.Fprintf(w, "line %d: ERROR - %v\n", line, err)
			s.errors++
			continue
		}

		fmt.Fprintf(w, "Importing: %s by %s... ", nb.Title, nb.Author)
		id, err := c.CreateBook(ctx, nb)
		switch {
		case errors.Is(err, library.ErrDuplicateKey):
			fmt.Fprintln(w, "DUPLICATE")
			s.duplicates++
		case err != nil:
			fmt.Fprintf(w, "ERROR - %v\n", err)
			s.errors++
		default:
			fmt.Fprintf(w, "SUCCESS (ID: %d)\n", id)
			s.imported++
		}
	}
}

func parseRow(rec []string) (library.NewBook, error) {
	if len(rec) < 4 {
		return library.NewBook{}, fmt.Errorf("expected at least 4 fields, got %d", len(rec))
	}
	field := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	qty, err := strconv.ParseInt(field(3), 10, 64)
	if err != nil {
		return library.NewBook{}, fmt.Errorf("quantity %q: %w", field(3), err)
	}
	nb := library.NewBook{
		Title:    field(0),
		Author:   field(1),
		ISBN:     field(2),
		Quantity: qty,
	}
	if v := field(4); v != "" {
		nb.Publisher = &v
	}
	if v := field(5); v != "" {
		year, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return library.NewBook{}, fmt.Errorf("year %q: %w", v, err)
		}
		nb.Year = &year
	}
	if v := field(6); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return library.NewBook{}, fmt.Errorf("price %q: %w", v, err)
		}
		nb.Price = &price
	}
	if v := field(7); v != "" {
		nb.Location = &v
	}
	return nb, nil
}

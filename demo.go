package main

import (
	"context"
	"fmt"
	"os"

	"library-lending/library"

	"github.com/spf13/cobra"
)

const demoDBFile = "demo_library.db"

func newDemoCmd(a *app) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a sample borrow/return scenario against a fresh sqlite file",
		Long: "Run a sample borrow/return scenario. Without --db the scenario uses " + demoDBFile +
			" and recreates it on every run. An explicit --db file is only replaced with --fresh.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if cfg.Driver == library.DriverSQLite {
				if a.dbPath == "" {
					a.dbPath = demoDBFile
					fresh = true
				}
				if !fresh {
					if _, err := os.Stat(a.dbPath); err == nil {
						return fmt.Errorf("%w: %s already exists; pass --fresh to replace it", library.ErrInvalidInput, a.dbPath)
					}
				}
				a.cleanup(a.dbPath)
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			return a.demo(cmd.Context(), mgr)
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "delete the --db file before running the scenario")
	return cmd
}

// cleanup removes a previous sqlite file together with its WAL companions.
func (a *app) cleanup(path string) {
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(a.errOut, "Warning: could not remove %s: %v\n", file, err)
		}
	}
}

func (a *app) demo(ctx context.Context, mgr *library.LibraryManager) error {
	str := func(s string) *string { return &s }
	price := func(p float64) *float64 { return &p }

	fmt.Fprintln(a.out, "Adding sample books...")
	gatsby, err := mgr.CreateBook(ctx, library.NewBook{
		Title:     "The Great Gatsby",
		Author:    "F. Scott Fitzgerald",
		ISBN:      "978-0743273565",
		Quantity:  5,
		Publisher: str("Scribner"),
		Price:     price(9.99),
		Location:  str("A1-23"),
	})
	if err != nil {
		return fmt.Errorf("add first book: %w", err)
	}
	fmt.Fprintf(a.out, "Added book %d\n", gatsby)

	python, err := mgr.CreateBook(ctx, library.NewBook{
		Title:    "Python Programming",
		Author:   "John Smith",
		ISBN:     "978-1234567890",
		Quantity: 3,
		Price:    price(29.99),
		Location: str("B2-15"),
	})
	if err != nil {
		return fmt.Errorf("add second book: %w", err)
	}
	fmt.Fprintf(a.out, "Added book %d\n", python)

	fmt.Fprintln(a.out, "\nAdding sample members...")
	john, err := mgr.CreateMember(ctx, library.NewMember{
		Name:  "John Doe",
		Email: "john@example.com",
		Phone: str("123-456-7890"),
		Tier:  library.TierPremium,
	})
	if err != nil {
		return fmt.Errorf("add first member: %w", err)
	}
	fmt.Fprintf(a.out, "Added member %d\n", john)

	jane, err := mgr.CreateMember(ctx, library.NewMember{
		Name:  "Jane Smith",
		Email: "jane@example.com",
		Phone: str("098-765-4321"),
	})
	if err != nil {
		return fmt.Errorf("add second member: %w", err)
	}
	fmt.Fprintf(a.out, "Added member %d\n", jane)

	fmt.Fprintln(a.out, "\nBorrowing...")
	loan, err := mgr.BorrowBookWithDetails(ctx, gatsby, john)
	if err != nil {
		return fmt.Errorf("borrow: %w", err)
	}
	fmt.Fprintf(a.out, "Loan %d due %s\n", loan.ID, formatDate(loan.DueDate))

	fmt.Fprintln(a.out, "\nReturning...")
	_, book, err := mgr.ReturnBookWithDetails(ctx, loan.ID)
	if err != nil {
		return fmt.Errorf("return: %w", err)
	}
	if book != nil {
		fmt.Fprintf(a.out, "'%s' now has %d of %d copies available\n", book.Title, book.Available, book.Quantity)
	}

	fmt.Fprintf(a.out, "\nBorrowing history of member %d:\n", john)
	records, err := mgr.GetMemberHistory(ctx, john)
	if err != nil {
		return err
	}
	if err := a.printHistory(records); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "\nFinal summary:")
	s, err := mgr.Stats(ctx)
	if err != nil {
		return err
	}
	return a.printStats(s)
}

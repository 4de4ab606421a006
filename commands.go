package main

import (
	"fmt"
	"strconv"

	"library-lending/library"

	"github.com/spf13/cobra"
)

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s ID: %s", library.ErrInvalidInput, kind, s)
	}
	return id, nil
}

func optString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func newAddBookCmd(a *app) *cobra.Command {
	var nb library.NewBook
	var year int64
	var price float64

	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			nb.Publisher = optString(cmd, "publisher")
			nb.Description = optString(cmd, "description")
			nb.Location = optString(cmd, "location")
			if cmd.Flags().Changed("year") {
				nb.Year = &year
			}
			if cmd.Flags().Changed("price") {
				nb.Price = &price
			}

			id, err := mgr.CreateBook(cmd.Context(), nb)
			if err != nil {
				return fmt.Errorf("add book: %w", err)
			}
			return a.printCreated("book", int64(id))
		},
	}
	f := cmd.Flags()
	f.StringVar(&nb.Title, "title", "", "title (required)")
	f.StringVar(&nb.Author, "author", "", "author (required)")
	f.StringVar(&nb.ISBN, "isbn", "", "ISBN, unique (required)")
	f.Int64Var(&nb.Quantity, "quantity", 1, "number of copies")
	f.String("publisher", "", "publisher")
	f.Int64Var(&year, "year", 0, "publication year")
	f.Float64Var(&price, "price", 0, "price")
	f.String("description", "", "description")
	f.String("location", "", "shelf location")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("isbn")
	return cmd
}

func newAddMemberCmd(a *app) *cobra.Command {
	var nm library.NewMember
	var tier string

	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Register a library member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			nm.Phone = optString(cmd, "phone")
			nm.Address = optString(cmd, "address")
			nm.Tier = library.Tier(tier)

			id, err := mgr.CreateMember(cmd.Context(), nm)
			if err != nil {
				return fmt.Errorf("add member: %w", err)
			}
			return a.printCreated("member", int64(id))
		},
	}
	f := cmd.Flags()
	f.StringVar(&nm.Name, "name", "", "full name (required)")
	f.StringVar(&nm.Email, "email", "", "email, unique (required)")
	f.String("phone", "", "phone number")
	f.String("address", "", "postal address")
	f.StringVar(&tier, "tier", string(library.TierRegular), "membership type: Regular|Premium")
	f.Int64Var(&nm.MaxBooks, "max-books", library.DefaultMaxBooks, "maximum concurrent loans")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newBooksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			books, err := mgr.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			return a.printBooks(books)
		},
	}
}

func newMembersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List registered members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			members, err := mgr.ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			return a.printMembers(members)
		},
	}
}

func newBorrowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow BOOK_ID MEMBER_ID",
		Short: "Lend a copy of a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			memberID, err := parseID("member", args[1])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			loan, err := mgr.BorrowBookWithDetails(cmd.Context(), library.BookID(bookID), library.MemberID(memberID))
			if err != nil {
				return fmt.Errorf("borrow: %w", err)
			}
			if a.jsonOutput {
				return a.printJSON(loan)
			}
			fmt.Fprintf(a.out, "Loan %d: book %d to member %d, due %s\n",
				loan.ID, loan.BookID, loan.MemberID, formatDate(loan.DueDate))
			return nil
		},
	}
}

func newReturnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Close a loan and put the copy back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			loan, book, err := mgr.ReturnBookWithDetails(cmd.Context(), library.LoanID(loanID))
			if err != nil {
				if loan != nil {
					fmt.Fprintf(a.out, "Loan %d returned\n", loan.ID)
				}
				return fmt.Errorf("return: %w", err)
			}
			if a.jsonOutput {
				return a.printJSON(loan)
			}
			fmt.Fprintf(a.out, "Loan %d returned\n", loan.ID)
			if book != nil {
				fmt.Fprintf(a.out, "'%s' now has %d of %d copies available\n", book.Title, book.Available, book.Quantity)
			}
			return nil
		},
	}
}

func newLoanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "loan LOAN_ID",
		Short: "Show a loan and its current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			loan, err := mgr.GetLoan(cmd.Context(), library.LoanID(loanID))
			if err != nil {
				return err
			}
			return a.printLoans([]library.Loan{*loan})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history MEMBER_ID",
		Short: "Show a member's borrowing history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID("member", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			records, err := mgr.GetMemberHistory(cmd.Context(), library.MemberID(memberID))
			if err != nil {
				return err
			}
			return a.printHistory(records)
		},
	}
}

func newOverdueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List open loans past their due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			loans, err := mgr.ListOverdueLoans(cmd.Context())
			if err != nil {
				return err
			}
			return a.printLoans(loans)
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify every availability counter against open loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			mismatches, err := mgr.AuditAvailability(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.printMismatches(mismatches); err != nil {
				return err
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d book(s) with inconsistent availability", len(mismatches))
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			s, err := mgr.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.printStats(s)
		},
	}
}

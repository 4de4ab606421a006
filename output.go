package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"library-lending/library"

	"github.com/goccy/go-json"
	"golang.org/x/term"
)

const (
	defaultWidth  = 80
	minTitleWidth = 20
	maxTitleWidth = 60
	// id, author, isbn and copies columns of PrettyBook plus separators.
	bookFixedWidth = 5 + 25 + 16 + 11 + 4
)

func formatDate(t time.Time) string { return t.Format(time.DateOnly) }

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// width reports the terminal width when writing to a tty.
func (a *app) width() int {
	f, ok := a.out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func (a *app) titleWidth() int {
	w := a.width() - bookFixedWidth
	return min(max(w, minTitleWidth), maxTitleWidth)
}

func (a *app) printCreated(kind string, id int64) error {
	if a.jsonOutput {
		return a.printJSON(map[string]any{kind + "_id": id})
	}
	fmt.Fprintf(a.out, "Created %s %d\n", kind, id)
	return nil
}

func (a *app) printBooks(books []*library.Book) error {
	if a.jsonOutput {
		return a.printJSON(books)
	}
	if len(books) == 0 {
		fmt.Fprintln(a.out, "No books in the catalog.")
		return nil
	}
	tw := a.titleWidth()
	header := fmt.Sprintf("%-5s %-*s %-25s %-16s %11s", "ID", tw, "Title", "Author", "ISBN", "Avail/Qty")
	fmt.Fprintln(a.out, header)
	fmt.Fprintln(a.out, strings.Repeat("-", len(header)))
	for _, b := range books {
		fmt.Fprintln(a.out, library.PrettyBook(b, tw))
	}
	return nil
}

func (a *app) printMembers(members []*library.Member) error {
	if a.jsonOutput {
		return a.printJSON(members)
	}
	if len(members) == 0 {
		fmt.Fprintln(a.out, "No members registered.")
		return nil
	}
	header := fmt.Sprintf("%-5s %-25s %-30s %-8s %-10s %5s", "ID", "Name", "Email", "Tier", "Joined", "Max")
	fmt.Fprintln(a.out, header)
	fmt.Fprintln(a.out, strings.Repeat("-", len(header)))
	for _, m := range members {
		fmt.Fprintf(a.out, "%-5d %-25s %-30s %-8s %-10s %5d\n",
			m.ID, library.Truncate(m.Name, 25), library.Truncate(m.Email, 30), m.Tier, formatDate(m.JoinDate), m.MaxBooks)
	}
	return nil
}

func (a *app) printLoans(loans []library.Loan) error {
	if a.jsonOutput {
		return a.printJSON(loans)
	}
	if len(loans) == 0 {
		fmt.Fprintln(a.out, "No loans.")
		return nil
	}
	header := fmt.Sprintf("%-6s %-6s %-7s %-10s %-10s %-10s %-8s", "Loan", "Book", "Member", "Borrowed", "Due", "Returned", "Status")
	fmt.Fprintln(a.out, header)
	fmt.Fprintln(a.out, strings.Repeat("-", len(header)))
	for _, l := range loans {
		fmt.Fprintf(a.out, "%-6d %-6d %-7d %-10s %-10s %-10s %-8s\n",
			l.ID, l.BookID, l.MemberID, formatDate(l.BorrowDate), formatDate(l.DueDate), returned(l.ReturnDate), l.Status)
	}
	return nil
}

func (a *app) printHistory(records []library.LoanRecord) error {
	if a.jsonOutput {
		return a.printJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No borrowing history.")
		return nil
	}
	tw := a.titleWidth()
	header := fmt.Sprintf("%-6s %-*s %-10s %-10s %-10s %-8s", "Loan", tw, "Title", "Borrowed", "Due", "Returned", "Status")
	fmt.Fprintln(a.out, header)
	fmt.Fprintln(a.out, strings.Repeat("-", len(header)))
	for _, r := range records {
		fmt.Fprintf(a.out, "%-6d %-*s %-10s %-10s %-10s %-8s\n",
			r.LoanID, tw, library.Truncate(r.Title, tw), formatDate(r.BorrowDate), formatDate(r.DueDate), returned(r.ReturnDate), r.Status)
	}
	return nil
}

func (a *app) printMismatches(ms []library.AvailabilityMismatch) error {
	if a.jsonOutput {
		return a.printJSON(ms)
	}
	if len(ms) == 0 {
		fmt.Fprintln(a.out, "All availability counters match open loans.")
		return nil
	}
	for _, m := range ms {
		fmt.Fprintf(a.out, "book %d: quantity %d, available %d, open loans %d\n",
			m.BookID, m.Quantity, m.Available, m.OpenLoans)
	}
	return nil
}

func (a *app) printStats(s library.Stats) error {
	if a.jsonOutput {
		return a.printJSON(s)
	}
	fmt.Fprintf(a.out, "Books:         %d\n", s.Books)
	fmt.Fprintf(a.out, "Members:       %d\n", s.Members)
	fmt.Fprintf(a.out, "Loans:         %d\n", s.Loans)
	fmt.Fprintf(a.out, "Open loans:    %d\n", s.OpenLoans)
	fmt.Fprintf(a.out, "Overdue loans: %d\n", s.OverdueLoans)
	return nil
}

func returned(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDate(*t)
}

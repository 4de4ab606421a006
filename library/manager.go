package library

import (
	"context"
	"fmt"
)

// LibraryManager is a thin façade over the Database, keeping CLI code simple.
type LibraryManager struct {
	db *Database
}

// NewLibraryManager opens (or creates) the store described by cfg.
func NewLibraryManager(ctx context.Context, cfg Config, options ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(ctx, cfg, options...)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// ------------------ Catalog ------------------

func (lm *LibraryManager) CreateBook(ctx context.Context, nb NewBook) (BookID, error) {
	return lm.db.CreateBook(ctx, nb)
}

func (lm *LibraryManager) GetBook(ctx context.Context, id BookID) (*Book, error) {
	return lm.db.GetBook(ctx, id)
}

func (lm *LibraryManager) ListBooks(ctx context.Context) ([]*Book, error) {
	return lm.db.ListBooks(ctx)
}

// ------------------ Membership ------------------

func (lm *LibraryManager) CreateMember(ctx context.Context, nm NewMember) (MemberID, error) {
	return lm.db.CreateMember(ctx, nm)
}

func (lm *LibraryManager) GetMember(ctx context.Context, id MemberID) (*Member, error) {
	return lm.db.GetMember(ctx, id)
}

func (lm *LibraryManager) ListMembers(ctx context.Context) ([]*Member, error) {
	return lm.db.ListMembers(ctx)
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) BorrowBook(ctx context.Context, bookID BookID, memberID MemberID) (LoanID, error) {
	return lm.db.BorrowBook(ctx, bookID, memberID)
}

func (lm *LibraryManager) ReturnBook(ctx context.Context, loanID LoanID) error {
	return lm.db.ReturnBook(ctx, loanID)
}

// BorrowBookWithDetails borrows and reads back the new loan for display.
func (lm *LibraryManager) BorrowBookWithDetails(ctx context.Context, bookID BookID, memberID MemberID) (*Loan, error) {
	id, err := lm.db.BorrowBook(ctx, bookID, memberID)
	if err != nil {
		return nil, err
	}
	loan, err := lm.db.GetLoan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loan %d committed but could not be read back: %w", id, err)
	}
	return loan, nil
}

// ReturnBookWithDetails returns the loan and reports the book it belonged to,
// with the availability counter after the return. If the book cannot be read
// afterwards the loan is still returned along with the error.
func (lm *LibraryManager) ReturnBookWithDetails(ctx context.Context, loanID LoanID) (*Loan, *Book, error) {
	if err := lm.db.ReturnBook(ctx, loanID); err != nil {
		return nil, nil, err
	}
	loan, err := lm.db.GetLoan(ctx, loanID)
	if err != nil {
		return nil, nil, fmt.Errorf("loan %d returned but could not be read back: %w", loanID, err)
	}
	book, err := lm.db.GetBook(ctx, loan.BookID)
	if err != nil {
		return loan, nil, fmt.Errorf("loan %d returned but book %d could not be read: %w", loanID, loan.BookID, err)
	}
	return loan, book, nil
}

func (lm *LibraryManager) GetLoan(ctx context.Context, id LoanID) (*Loan, error) {
	return lm.db.GetLoan(ctx, id)
}

// ------------------ Reporting ------------------

func (lm *LibraryManager) GetMemberHistory(ctx context.Context, memberID MemberID) ([]LoanRecord, error) {
	return lm.db.GetMemberHistory(ctx, memberID)
}

func (lm *LibraryManager) ListOverdueLoans(ctx context.Context) ([]Loan, error) {
	return lm.db.ListOverdueLoans(ctx)
}

func (lm *LibraryManager) AuditAvailability(ctx context.Context) ([]AvailabilityMismatch, error) {
	return lm.db.AuditAvailability(ctx)
}

func (lm *LibraryManager) Stats(ctx context.Context) (Stats, error) {
	return lm.db.Stats(ctx)
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b *Book, titleWidth int) string {
	return fmt.Sprintf("%-5d %-*s %-25s %-16s %5d/%-5d",
		b.ID, titleWidth, Truncate(b.Title, titleWidth), Truncate(b.Author, 25), b.ISBN, b.Available, b.Quantity)
}

// Truncate shortens s to maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

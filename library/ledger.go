package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var loanColumns = []interface{}{
	"id", "book_id", "member_id", "borrow_date", "due_date", "return_date", "status",
}

// BorrowBook lends one copy of a book to a member. Preconditions are checked
// in order: the book exists, a copy is available, the member exists, and the
// member holds fewer open loans than their limit. The new loan and the
// availability decrement commit together or not at all.
func (d *Database) BorrowBook(ctx context.Context, bookID BookID, memberID MemberID) (LoanID, error) {
	opID := uuid.NewString()
	var loanID LoanID
	err := d.runOp(ctx, "borrow", opID, func(ctx context.Context) error {
		return d.withTx(ctx, func(tx *sqlx.Tx) error {
			id, err := d.borrowTx(ctx, tx, bookID, memberID)
			loanID = id
			return err
		})
	})
	if err != nil {
		if c := Classify(err); c == ClassValidation || c == ClassCapacity {
			d.logger.Info("borrow rejected", "op_id", opID, "book_id", bookID, "member_id", memberID, "reason", err)
		}
		return 0, err
	}
	d.logger.Info("book borrowed", "op_id", opID, "book_id", bookID, "member_id", memberID, "loan_id", loanID)
	return loanID, nil
}

func (d *Database) borrowTx(ctx context.Context, tx *sqlx.Tx, bookID BookID, memberID MemberID) (LoanID, error) {
	book, err := d.getBook(ctx, tx, bookID, true)
	if err != nil {
		return 0, err
	}
	if book.Available < 1 {
		return 0, fmt.Errorf("book %d: %w", bookID, ErrBookUnavailable)
	}

	member, err := d.getMember(ctx, tx, memberID, true)
	if err != nil {
		return 0, err
	}
	open, err := d.openLoanCount(ctx, tx, memberID)
	if err != nil {
		return 0, err
	}
	if open >= member.MaxBooks {
		return 0, fmt.Errorf("member %d holds %d of %d: %w", memberID, open, member.MaxBooks, ErrLoanLimitExceeded)
	}

	now := d.now()
	ins := d.dialect.Insert(tableLoans).Rows(goqu.Record{
		"book_id":     int64(bookID),
		"member_id":   int64(memberID),
		"borrow_date": now,
		"due_date":    now.Add(LoanPeriod),
		"status":      string(StatusActive),
	}).Prepared(true)
	id, err := d.insertID(ctx, tx, ins)
	if err != nil {
		return 0, err
	}

	if err := d.adjustAvailable(ctx, tx, bookID, -1); err != nil {
		return 0, err
	}
	return LoanID(id), nil
}

// ReturnBook closes an open loan and puts its copy back on the shelf. Returning
// a loan that does not exist or was already returned fails with
// ErrLoanNotFoundOrAlreadyReturned and changes nothing.
func (d *Database) ReturnBook(ctx context.Context, loanID LoanID) error {
	opID := uuid.NewString()
	var bookID BookID
	err := d.runOp(ctx, "return", opID, func(ctx context.Context) error {
		return d.withTx(ctx, func(tx *sqlx.Tx) error {
			id, err := d.returnTx(ctx, tx, loanID)
			bookID = id
			return err
		})
	})
	if err != nil {
		if Classify(err) == ClassConflict {
			d.logger.Info("return rejected", "op_id", opID, "loan_id", loanID, "reason", err)
		}
		return err
	}
	d.logger.Info("book returned", "op_id", opID, "loan_id", loanID, "book_id", bookID)
	return nil
}

func (d *Database) returnTx(ctx context.Context, tx *sqlx.Tx, loanID LoanID) (BookID, error) {
	notFound := fmt.Errorf("loan %d: %w", loanID, ErrLoanNotFoundOrAlreadyReturned)

	var bookID int64
	sel := d.forUpdate(d.from(tableLoans).
		Select("book_id").
		Where(goqu.C("id").Eq(int64(loanID)), openLoan()))
	if err := d.get(ctx, tx, &bookID, sel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFound
		}
		return 0, err
	}

	upd := d.dialect.Update(tableLoans).
		Set(goqu.Record{"return_date": d.now(), "status": string(StatusReturned)}).
		Where(goqu.C("id").Eq(int64(loanID)), openLoan()).
		Prepared(true)
	res, err := d.exec(ctx, tx, upd)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, notFound
	}

	if err := d.adjustAvailable(ctx, tx, BookID(bookID), 1); err != nil {
		return 0, err
	}
	return BookID(bookID), nil
}

// GetLoan fetches a loan with its effective status.
func (d *Database) GetLoan(ctx context.Context, id LoanID) (*Loan, error) {
	var l Loan
	ds := d.from(tableLoans).Select(loanColumns...).Where(goqu.C("id").Eq(int64(id)))
	if err := d.get(ctx, d.db, &l, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %d: %w", id, ErrLoanNotFound)
		}
		return nil, translateDBError(err)
	}
	l.Status = EffectiveStatus(l.ReturnDate, l.DueDate, d.now())
	return &l, nil
}

// AuditAvailability recomputes quantity minus open loans for every book and
// returns the books whose stored counter disagrees. A consistent store
// returns an empty slice.
func (d *Database) AuditAvailability(ctx context.Context) ([]AvailabilityMismatch, error) {
	ds := d.from(goqu.T(tableBooks).As("b")).
		Select(
			goqu.I("b.id").As("id"),
			goqu.I("b.quantity").As("quantity"),
			goqu.I("b.available").As("available"),
			goqu.COUNT(goqu.I("l.id")).As("open_loans"),
		).
		LeftJoin(goqu.T(tableLoans).As("l"), goqu.On(
			goqu.I("l.book_id").Eq(goqu.I("b.id")),
			goqu.I("l.return_date").IsNull(),
		)).
		GroupBy(goqu.I("b.id"), goqu.I("b.quantity"), goqu.I("b.available")).
		Having(goqu.L("b.available <> b.quantity - COUNT(l.id)")).
		Order(goqu.I("b.id").Asc())

	mismatches := []AvailabilityMismatch{}
	if err := d.selectAll(ctx, d.db, &mismatches, ds); err != nil {
		return nil, translateDBError(err)
	}
	return mismatches, nil
}

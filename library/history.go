package library

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// GetMemberHistory returns every loan of a member, newest borrow first and
// ties broken by loan id. Statuses are evaluated against a single instant so
// the records of one call never disagree with each other.
func (d *Database) GetMemberHistory(ctx context.Context, memberID MemberID) ([]LoanRecord, error) {
	if _, err := d.GetMember(ctx, memberID); err != nil {
		return nil, err
	}

	ds := d.from(tableLoans).
		Select(
			goqu.I("loans.id").As("id"),
			goqu.I("books.title").As("title"),
			goqu.I("loans.borrow_date").As("borrow_date"),
			goqu.I("loans.due_date").As("due_date"),
			goqu.I("loans.return_date").As("return_date"),
		).
		InnerJoin(goqu.T(tableBooks), goqu.On(goqu.I("books.id").Eq(goqu.I("loans.book_id")))).
		Where(goqu.I("loans.member_id").Eq(int64(memberID))).
		Order(goqu.I("loans.borrow_date").Desc(), goqu.I("loans.id").Asc())

	records := []LoanRecord{}
	if err := d.selectAll(ctx, d.db, &records, ds); err != nil {
		return nil, translateDBError(err)
	}

	now := d.now()
	for i := range records {
		records[i].Status = EffectiveStatus(records[i].ReturnDate, records[i].DueDate, now)
	}
	return records, nil
}

// ListOverdueLoans returns open loans past their due date, oldest due first.
// A loan due exactly now is not yet overdue.
func (d *Database) ListOverdueLoans(ctx context.Context) ([]Loan, error) {
	ds := d.from(tableLoans).
		Select(loanColumns...).
		Where(overdueAt(d.now())).
		Order(goqu.C("due_date").Asc(), goqu.C("id").Asc())
	overdue := []Loan{}
	if err := d.selectAll(ctx, d.db, &overdue, ds); err != nil {
		return nil, translateDBError(err)
	}
	for i := range overdue {
		overdue[i].Status = StatusOverdue
	}
	return overdue, nil
}

func openLoan() exp.Expression {
	return goqu.C("return_date").IsNull()
}

// overdueAt matches the loans EffectiveStatus reports as Overdue at now.
func overdueAt(now time.Time) exp.Expression {
	return goqu.And(openLoan(), goqu.C("due_date").Lt(now))
}

// Stats counts books, members and loans. Open and overdue loans are counted
// against a single instant.
func (d *Database) Stats(ctx context.Context) (Stats, error) {
	var (
		s   Stats
		err error
	)
	now := d.now()
	counts := []struct {
		dst *int64
		ds  *goqu.SelectDataset
	}{
		{&s.Books, d.from(tableBooks)},
		{&s.Members, d.from(tableMembers)},
		{&s.Loans, d.from(tableLoans)},
		{&s.OpenLoans, d.from(tableLoans).Where(openLoan())},
		{&s.OverdueLoans, d.from(tableLoans).Where(overdueAt(now))},
	}
	for _, c := range counts {
		if *c.dst, err = d.count(ctx, d.db, c.ds); err != nil {
			return Stats{}, translateDBError(err)
		}
	}
	return s, nil
}

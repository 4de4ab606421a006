package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var memberColumns = []interface{}{
	"id", "name", "email", "phone", "address", "join_date", "membership_type", "max_books",
}

func (m *NewMember) normalize() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	if m.Tier == "" {
		m.Tier = TierRegular
	}
	if m.MaxBooks == 0 {
		m.MaxBooks = DefaultMaxBooks
	}

	switch {
	case m.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case m.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	case m.Tier != TierRegular && m.Tier != TierPremium:
		return fmt.Errorf("%w: unknown membership type %q", ErrInvalidInput, m.Tier)
	case m.MaxBooks < 0:
		return fmt.Errorf("%w: max books must be positive", ErrInvalidInput)
	}
	return nil
}

// CreateMember registers a member. The join date is today (UTC). A second
// member with the same email fails with ErrDuplicateKey.
func (d *Database) CreateMember(ctx context.Context, nm NewMember) (MemberID, error) {
	if err := nm.normalize(); err != nil {
		return 0, err
	}

	var id MemberID
	err := d.runOp(ctx, "create_member", uuid.NewString(), func(ctx context.Context) error {
		return d.withTx(ctx, func(tx *sqlx.Tx) error {
			ins := d.dialect.Insert(tableMembers).Rows(goqu.Record{
				"name":            nm.Name,
				"email":           nm.Email,
				"phone":           nm.Phone,
				"address":         nm.Address,
				"join_date":       d.now().Truncate(24 * time.Hour),
				"membership_type": string(nm.Tier),
				"max_books":       nm.MaxBooks,
			}).Prepared(true)
			raw, err := d.insertID(ctx, tx, ins)
			if err != nil {
				return err
			}
			id = MemberID(raw)
			return nil
		})
	})
	if errors.Is(err, ErrDuplicateKey) {
		return 0, fmt.Errorf("email %q: %w", nm.Email, err)
	}
	return id, err
}

// GetMember fetches a single member.
func (d *Database) GetMember(ctx context.Context, id MemberID) (*Member, error) {
	return d.getMember(ctx, d.db, id, false)
}

func (d *Database) getMember(ctx context.Context, q sqlx.QueryerContext, id MemberID, lock bool) (*Member, error) {
	ds := d.from(tableMembers).Select(memberColumns...).Where(goqu.C("id").Eq(int64(id)))
	if lock {
		ds = d.forUpdate(ds)
	}
	var m Member
	if err := d.get(ctx, q, &m, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %d: %w", id, ErrMemberNotFound)
		}
		return nil, translateDBError(err)
	}
	return &m, nil
}

// ListMembers returns all members ordered by id.
func (d *Database) ListMembers(ctx context.Context) ([]*Member, error) {
	var members []*Member
	ds := d.from(tableMembers).Select(memberColumns...).Order(goqu.C("id").Asc())
	if err := d.selectAll(ctx, d.db, &members, ds); err != nil {
		return nil, translateDBError(err)
	}
	return members, nil
}

// openLoanCount counts the member's loans that have not been returned, which
// covers both Active and Overdue loans.
func (d *Database) openLoanCount(ctx context.Context, q sqlx.QueryerContext, id MemberID) (int64, error) {
	return d.count(ctx, q, d.from(tableLoans).Where(
		goqu.C("member_id").Eq(int64(id)),
		openLoan(),
	))
}

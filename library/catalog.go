package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var bookColumns = []interface{}{
	"id", "title", "author", "isbn", "publisher", "publication_year", "price",
	"quantity", "available", "description", "location",
}

func (b NewBook) validate() error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(b.Author) == "":
		return fmt.Errorf("%w: author is required", ErrInvalidInput)
	case strings.TrimSpace(b.ISBN) == "":
		return fmt.Errorf("%w: isbn is required", ErrInvalidInput)
	case b.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	return nil
}

// CreateBook adds a book to the catalog with all copies available. A second
// book with the same ISBN fails with ErrDuplicateKey.
func (d *Database) CreateBook(ctx context.Context, nb NewBook) (BookID, error) {
	if err := nb.validate(); err != nil {
		return 0, err
	}

	var id BookID
	err := d.runOp(ctx, "create_book", uuid.NewString(), func(ctx context.Context) error {
		return d.withTx(ctx, func(tx *sqlx.Tx) error {
			ins := d.dialect.Insert(tableBooks).Rows(goqu.Record{
				"title":            strings.TrimSpace(nb.Title),
				"author":           strings.TrimSpace(nb.Author),
				"isbn":             strings.TrimSpace(nb.ISBN),
				"publisher":        nb.Publisher,
				"publication_year": nb.Year,
				"price":            nb.Price,
				"quantity":         nb.Quantity,
				"available":        nb.Quantity,
				"description":      nb.Description,
				"location":         nb.Location,
			}).Prepared(true)
			raw, err := d.insertID(ctx, tx, ins)
			if err != nil {
				return err
			}
			id = BookID(raw)
			return nil
		})
	})
	if errors.Is(err, ErrDuplicateKey) {
		return 0, fmt.Errorf("isbn %q: %w", nb.ISBN, err)
	}
	return id, err
}

// GetBook fetches a single book.
func (d *Database) GetBook(ctx context.Context, id BookID) (*Book, error) {
	return d.getBook(ctx, d.db, id, false)
}

// getBook reads a book; with lock set the row stays locked until q commits.
func (d *Database) getBook(ctx context.Context, q sqlx.QueryerContext, id BookID, lock bool) (*Book, error) {
	ds := d.from(tableBooks).Select(bookColumns...).Where(goqu.C("id").Eq(int64(id)))
	if lock {
		ds = d.forUpdate(ds)
	}
	var b Book
	if err := d.get(ctx, q, &b, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %d: %w", id, ErrBookNotFound)
		}
		return nil, translateDBError(err)
	}
	return &b, nil
}

// ListBooks returns every book ordered by id.
func (d *Database) ListBooks(ctx context.Context) ([]*Book, error) {
	var books []*Book
	ds := d.from(tableBooks).Select(bookColumns...).Order(goqu.C("id").Asc())
	if err := d.selectAll(ctx, d.db, &books, ds); err != nil {
		return nil, translateDBError(err)
	}
	return books, nil
}

// adjustAvailable moves a book's counter by delta inside tx. The bound check in
// the WHERE clause means a counter can never leave [0, quantity].
func (d *Database) adjustAvailable(ctx context.Context, tx *sqlx.Tx, id BookID, delta int64) error {
	where := []exp.Expression{goqu.C("id").Eq(int64(id))}
	var expr exp.Expression
	if delta < 0 {
		expr = goqu.L("available - ?", -delta)
		where = append(where, goqu.C("available").Gte(-delta))
	} else {
		expr = goqu.L("available + ?", delta)
		where = append(where, goqu.L("available + ? <= quantity", delta))
	}
	upd := d.dialect.Update(tableBooks).
		Set(goqu.Record{"available": expr}).
		Where(where...).
		Prepared(true)
	res, err := d.exec(ctx, tx, upd)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("book %d delta %d: %w", id, delta, errAvailabilityCounterOutOfBounds)
	}
	return nil
}

package library

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Sentinel errors returned by the catalog, membership and ledger operations.
// Callers use errors.Is; the returned errors wrap these with ids for context.
var (
	ErrBookNotFound                   = errors.New("book not found")
	ErrBookUnavailable                = errors.New("no copies available")
	ErrMemberNotFound                 = errors.New("member not found")
	ErrLoanLimitExceeded              = errors.New("member has reached the loan limit")
	ErrLoanNotFoundOrAlreadyReturned  = errors.New("loan not found or already returned")
	ErrLoanNotFound                   = errors.New("loan not found")
	ErrDuplicateKey                   = errors.New("duplicate key")
	ErrInvalidInput                   = errors.New("invalid input")
	ErrTransient                      = errors.New("transient storage failure")
	ErrUnknownDriver                  = errors.New("unknown storage driver")
	errAvailabilityCounterOutOfBounds = errors.New("availability counter out of bounds")
)

// ErrorClass groups failures by how a caller should react to them.
type ErrorClass string

const (
	ClassNone       ErrorClass = "none"
	ClassValidation ErrorClass = "validation"
	ClassCapacity   ErrorClass = "capacity"
	ClassConflict   ErrorClass = "conflict"
	ClassTransient  ErrorClass = "transient"
	ClassInternal   ErrorClass = "internal"
)

// Classify maps err onto the failure taxonomy.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrDuplicateKey),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrLoanNotFound):
		return ClassValidation
	case errors.Is(err, ErrBookUnavailable), errors.Is(err, ErrLoanLimitExceeded):
		return ClassCapacity
	case errors.Is(err, ErrLoanNotFoundOrAlreadyReturned):
		return ClassConflict
	case errors.Is(err, ErrTransient):
		return ClassTransient
	default:
		return ClassInternal
	}
}

// Retryable reports whether the failed operation may succeed if repeated unchanged.
func Retryable(err error) bool { return Classify(err) == ClassTransient }

// outcome is the metrics label for err.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, ErrBookNotFound):
		return "book_not_found"
	case errors.Is(err, ErrBookUnavailable):
		return "book_unavailable"
	case errors.Is(err, ErrMemberNotFound):
		return "member_not_found"
	case errors.Is(err, ErrLoanLimitExceeded):
		return "loan_limit_exceeded"
	case errors.Is(err, ErrLoanNotFoundOrAlreadyReturned):
		return "loan_not_found_or_returned"
	case errors.Is(err, ErrLoanNotFound):
		return "loan_not_found"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

// transientError keeps the driver error visible while matching ErrTransient.
type transientError struct{ cause error }

func (e transientError) Error() string { return ErrTransient.Error() + ": " + e.cause.Error() }

func (e transientError) Unwrap() []error { return []error{ErrTransient, e.cause} }

// duplicateError keeps the driver error visible while matching ErrDuplicateKey.
type duplicateError struct{ cause error }

func (e duplicateError) Error() string { return ErrDuplicateKey.Error() + ": " + e.cause.Error() }

func (e duplicateError) Unwrap() []error { return []error{ErrDuplicateKey, e.cause} }

// translateDBError converts driver errors into the package taxonomy. Errors the
// package does not know about are returned unchanged.
func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrDuplicateKey) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transientError{cause: err}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return transientError{cause: err}
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return duplicateError{cause: err}
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return duplicateError{cause: err}
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return transientError{cause: err}
		}
	}
	return err
}

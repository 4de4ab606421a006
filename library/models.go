package library

import "time"

// LoanPeriod is the fixed interval between a loan's borrow date and its due date.
const LoanPeriod = 14 * 24 * time.Hour

// DefaultMaxBooks is the concurrent loan limit given to members registered without one.
const DefaultMaxBooks = 5

type (
	BookID   int64
	MemberID int64
	LoanID   int64
)

// Tier is a membership level.
type Tier string

const (
	TierRegular Tier = "Regular"
	TierPremium Tier = "Premium"
)

// Status is the lifecycle state of a loan. Only Active and Returned are ever
// persisted; Overdue is computed when a loan is read.
type Status string

const (
	StatusActive   Status = "Active"
	StatusReturned Status = "Returned"
	StatusOverdue  Status = "Overdue"
)

// Book is a catalog entry together with its copy-availability counter.
type Book struct {
	ID          BookID   `json:"id" db:"id"`
	Title       string   `json:"title" db:"title"`
	Author      string   `json:"author" db:"author"`
	ISBN        string   `json:"isbn" db:"isbn"`
	Publisher   *string  `json:"publisher,omitempty" db:"publisher"`
	Year        *int64   `json:"publication_year,omitempty" db:"publication_year"`
	Price       *float64 `json:"price,omitempty" db:"price"`
	Quantity    int64    `json:"quantity" db:"quantity"`
	Available   int64    `json:"available" db:"available"`
	Description *string  `json:"description,omitempty" db:"description"`
	Location    *string  `json:"location,omitempty" db:"location"`
}

// NewBook holds the fields supplied when a book is added to the catalog.
// Available starts equal to Quantity.
type NewBook struct {
	Title       string
	Author      string
	ISBN        string
	Quantity    int64
	Publisher   *string
	Year        *int64
	Price       *float64
	Description *string
	Location    *string
}

// Member represents a registered library member.
type Member struct {
	ID       MemberID  `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	Email    string    `json:"email" db:"email"`
	Phone    *string   `json:"phone,omitempty" db:"phone"`
	Address  *string   `json:"address,omitempty" db:"address"`
	JoinDate time.Time `json:"join_date" db:"join_date"`
	Tier     Tier      `json:"membership_type" db:"membership_type"`
	MaxBooks int64     `json:"max_books" db:"max_books"`
}

// NewMember holds the fields supplied at registration. A zero MaxBooks means
// DefaultMaxBooks and an empty Tier means TierRegular.
type NewMember struct {
	Name     string
	Email    string
	Phone    *string
	Address  *string
	Tier     Tier
	MaxBooks int64
}

// Loan is a single borrowing of one copy of a book by one member.
type Loan struct {
	ID         LoanID     `json:"id" db:"id"`
	BookID     BookID     `json:"book_id" db:"book_id"`
	MemberID   MemberID   `json:"member_id" db:"member_id"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     Status     `json:"status" db:"status"`
}

// LoanRecord is one row of a member's borrowing history.
type LoanRecord struct {
	LoanID     LoanID     `json:"loan_id" db:"id"`
	Title      string     `json:"title" db:"title"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     Status     `json:"status" db:"status"`
}

// Stats summarises the contents of the store.
type Stats struct {
	Books        int64 `json:"books"`
	Members      int64 `json:"members"`
	Loans        int64 `json:"loans"`
	OpenLoans    int64 `json:"open_loans"`
	OverdueLoans int64 `json:"overdue_loans"`
}

// AvailabilityMismatch reports a book whose counter disagrees with its open loans.
type AvailabilityMismatch struct {
	BookID    BookID `json:"book_id" db:"id"`
	Quantity  int64  `json:"quantity" db:"quantity"`
	Available int64  `json:"available" db:"available"`
	OpenLoans int64  `json:"open_loans" db:"open_loans"`
}

// EffectiveStatus derives the status a loan has at instant now. A loan without
// a return date is Overdue once now is past its due date.
func EffectiveStatus(returnDate *time.Time, dueDate, now time.Time) Status {
	if returnDate != nil {
		return StatusReturned
	}
	if dueDate.Before(now) {
		return StatusOverdue
	}
	return StatusActive
}

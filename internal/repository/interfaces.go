package repository

import (
	"context"
	"errors"

	"github.com/segyhp/lending-ledger/internal/domain"
)

var (
	// ErrRecordNotFound is returned when a keyed lookup matches nothing.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateRecord is returned when an insert collides with an existing key.
	ErrDuplicateRecord = errors.New("duplicate record")
)

// BookStore defines the interface for book data operations
type BookStore interface {
	// Create inserts a book, failing with ErrDuplicateRecord on an existing ISBN
	Create(ctx context.Context, book *domain.Book) error

	// Get retrieves a book by ISBN
	Get(ctx context.Context, isbn string) (*domain.Book, error)

	// Update overwrites every column of an existing book
	Update(ctx context.Context, book *domain.Book) error

	// Delete removes a book by ISBN
	Delete(ctx context.Context, isbn string) error

	// List returns all books ordered by ISBN
	List(ctx context.Context) ([]*domain.Book, error)
}

// MemberStore defines the interface for member data operations
type MemberStore interface {
	Create(ctx context.Context, member *domain.Member) error
	Get(ctx context.Context, memberID string) (*domain.Member, error)
	Update(ctx context.Context, member *domain.Member) error
	Delete(ctx context.Context, memberID string) error

	// List returns all members ordered by membership number
	List(ctx context.Context) ([]*domain.Member, error)
}

// LoanStore defines the interface for the append-only loan ledger
type LoanStore interface {
	// Create inserts a loan with a caller-allocated ID
	Create(ctx context.Context, loan *domain.Loan) error

	// Get retrieves a loan by ID
	Get(ctx context.Context, loanID int64) (*domain.Loan, error)

	// Update persists the return date and status of a loan
	Update(ctx context.Context, loan *domain.Loan) error

	// List returns every loan ordered by ID
	List(ctx context.Context) ([]*domain.Loan, error)

	// ListByMember returns a member's loans ordered by ID
	ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error)

	// ListActive returns open loans ordered by ID
	ListActive(ctx context.Context) ([]*domain.Loan, error)

	// MaxID returns the highest loan ID, or 0 for an empty ledger
	MaxID(ctx context.Context) (int64, error)

	// CountActiveByMember counts a member's open loans
	CountActiveByMember(ctx context.Context, memberID string) (int, error)

	// HasActiveForBook reports whether an open loan references the ISBN
	HasActiveForBook(ctx context.Context, isbn string) (bool, error)
}

// LibrarianStore defines the interface for staff records
type LibrarianStore interface {
	Create(ctx context.Context, librarian *domain.Librarian) error
	Get(ctx context.Context, matricule string) (*domain.Librarian, error)
	List(ctx context.Context) ([]*domain.Librarian, error)
}

// AccountStore defines the interface for login credentials
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	Get(ctx context.Context, username string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
}

// Transactor runs fn so that every store call made with the context it
// receives commits or rolls back together. Nested calls join the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores bundles one backend's implementations.
type Stores struct {
	Books      BookStore
	Members    MemberStore
	Loans      LoanStore
	Librarians LibrarianStore
	Accounts   AccountStore
	Tx         Transactor
}

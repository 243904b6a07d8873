package service

import (
	"context"
	"errors"
	"strings"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

// Catalog owns book records. It knows nothing about loans: keeping the
// availability flag in step with the ledger is the caller's job.
type Catalog struct {
	books repository.BookStore
}

func NewCatalog(books repository.BookStore) *Catalog {
	return &Catalog{books: books}
}

// Add inserts a new, available book.
func (c *Catalog) Add(ctx context.Context, book *domain.Book) error {
	stored := *book
	stored.Available = true

	if err := c.books.Create(ctx, &stored); err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			return customError.WrapDuplicateKey("book", book.ISBN)
		}
		return customError.WrapStorageError(err)
	}
	return nil
}

// Update replaces the descriptive fields of a book. Availability and the
// creation time are kept from the stored record.
func (c *Catalog) Update(ctx context.Context, book *domain.Book) error {
	current, err := c.Find(ctx, book.ISBN)
	if err != nil {
		return err
	}

	updated := *book
	updated.Available = current.Available
	updated.CreatedAt = current.CreatedAt
	return c.save(ctx, &updated)
}

func (c *Catalog) Remove(ctx context.Context, isbn string) error {
	if err := c.books.Delete(ctx, isbn); err != nil {
		return bookError(err, isbn)
	}
	return nil
}

func (c *Catalog) Find(ctx context.Context, isbn string) (*domain.Book, error) {
	book, err := c.books.Get(ctx, isbn)
	if err != nil {
		return nil, bookError(err, isbn)
	}
	return book, nil
}

func (c *Catalog) List(ctx context.Context) ([]*domain.Book, error) {
	return c.Search(ctx, MatchAllBooks)
}

// ListAvailable is recomputed from the store on every call.
func (c *Catalog) ListAvailable(ctx context.Context) ([]*domain.Book, error) {
	return c.Search(ctx, func(b *domain.Book) bool { return b.Available })
}

func (c *Catalog) Search(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error) {
	books, err := c.books.List(ctx)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	matched := make([]*domain.Book, 0, len(books))
	for _, b := range books {
		if filter(b) {
			matched = append(matched, b)
		}
	}
	return matched, nil
}

// MarkLoaned flips the availability flag off. Only the ledger calls it.
func (c *Catalog) MarkLoaned(ctx context.Context, isbn string) error {
	return c.setAvailable(ctx, isbn, false)
}

// MarkAvailable flips the availability flag on. Only the ledger calls it.
func (c *Catalog) MarkAvailable(ctx context.Context, isbn string) error {
	return c.setAvailable(ctx, isbn, true)
}

func (c *Catalog) setAvailable(ctx context.Context, isbn string, available bool) error {
	book, err := c.Find(ctx, isbn)
	if err != nil {
		return err
	}
	book.Available = available
	return c.save(ctx, book)
}

func (c *Catalog) save(ctx context.Context, book *domain.Book) error {
	if err := c.books.Update(ctx, book); err != nil {
		return bookError(err, book.ISBN)
	}
	return nil
}

func bookError(err error, isbn string) error {
	if errors.Is(err, repository.ErrRecordNotFound) {
		return customError.WrapBookNotFound(isbn)
	}
	return customError.WrapStorageError(err)
}

// ---------------------------------------------------------------------------
// Book predicates
// ---------------------------------------------------------------------------

// MatchAllBooks accepts every book.
func MatchAllBooks(*domain.Book) bool { return true }

// MatchText matches q as a case-insensitive substring of the title, author
// or category. An empty query matches everything.
func MatchText(q string) domain.BookFilter {
	q = strings.ToLower(strings.TrimSpace(q))
	return func(b *domain.Book) bool {
		return contains(b.Title, q) || contains(b.Author, q) || contains(b.Category, q)
	}
}

func ByTitle(q string) domain.BookFilter {
	q = strings.ToLower(q)
	return func(b *domain.Book) bool { return contains(b.Title, q) }
}

func ByAuthor(q string) domain.BookFilter {
	q = strings.ToLower(q)
	return func(b *domain.Book) bool { return contains(b.Author, q) }
}

// ByCategory matches the whole category name, ignoring case.
func ByCategory(category string) domain.BookFilter {
	return func(b *domain.Book) bool { return strings.EqualFold(b.Category, category) }
}

// BookCriteria drives the multi-field search. Zero fields are ignored.
type BookCriteria struct {
	Title         string
	Author        string
	Category      string
	YearFrom      int
	YearTo        int
	AvailableOnly bool
}

// MatchAll combines every non-zero criterion with AND.
func MatchAll(c BookCriteria) domain.BookFilter {
	filters := []domain.BookFilter{}
	if c.Title != "" {
		filters = append(filters, ByTitle(c.Title))
	}
	if c.Author != "" {
		filters = append(filters, ByAuthor(c.Author))
	}
	if c.Category != "" {
		filters = append(filters, ByCategory(c.Category))
	}
	if c.YearFrom > 0 {
		filters = append(filters, func(b *domain.Book) bool { return b.Year >= c.YearFrom })
	}
	if c.YearTo > 0 {
		filters = append(filters, func(b *domain.Book) bool { return b.Year <= c.YearTo })
	}
	if c.AvailableOnly {
		filters = append(filters, func(b *domain.Book) bool { return b.Available })
	}

	return func(b *domain.Book) bool {
		for _, f := range filters {
			if !f(b) {
				return false
			}
		}
		return true
	}
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

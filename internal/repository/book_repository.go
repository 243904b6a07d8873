package repository

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lending-ledger/internal/domain"
)

const tableBooks = "books"

var bookColumns = []interface{}{
	"isbn", "title", "author", "publisher", "year", "category", "page_count", "available", "created_at",
}

type bookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) BookStore {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	query, args, err := dialect(r.db).Insert(tableBooks).Prepared(true).
		Rows(bookRecord(book)).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, query, args...)
	return translate(err)
}

func (r *bookRepository) Get(ctx context.Context, isbn string) (*domain.Book, error) {
	query, args, err := dialect(r.db).From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(goqu.Ex{"isbn": isbn}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var book domain.Book
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &book, query, args...); err != nil {
		return nil, translate(err)
	}
	return &book, nil
}

func (r *bookRepository) Update(ctx context.Context, book *domain.Book) error {
	record := bookRecord(book)
	delete(record, "isbn")

	query, args, err := dialect(r.db).Update(tableBooks).Prepared(true).
		Set(record).
		Where(goqu.Ex{"isbn": book.ISBN}).
		ToSQL()
	if err != nil {
		return err
	}

	return execAffectingOne(ctx, conn(ctx, r.db), query, args...)
}

func (r *bookRepository) Delete(ctx context.Context, isbn string) error {
	query, args, err := dialect(r.db).Delete(tableBooks).Prepared(true).
		Where(goqu.Ex{"isbn": isbn}).
		ToSQL()
	if err != nil {
		return err
	}

	return execAffectingOne(ctx, conn(ctx, r.db), query, args...)
}

func (r *bookRepository) List(ctx context.Context) ([]*domain.Book, error) {
	query, args, err := dialect(r.db).From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Order(goqu.I("isbn").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	books := []*domain.Book{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &books, query, args...); err != nil {
		return nil, translate(err)
	}
	return books, nil
}

func bookRecord(b *domain.Book) goqu.Record {
	return goqu.Record{
		"isbn":       b.ISBN,
		"title":      b.Title,
		"author":     b.Author,
		"publisher":  b.Publisher,
		"year":       b.Year,
		"category":   b.Category,
		"page_count": b.PageCount,
		"available":  b.Available,
		"created_at": b.CreatedAt.UTC(),
	}
}

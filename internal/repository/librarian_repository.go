package repository

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lending-ledger/internal/domain"
)

const (
	tableLibrarians = "librarians"
	tableAccounts   = "accounts"
)

var librarianColumns = []interface{}{
	"matricule", "name", "first_name", "email", "phone", "access_level",
}

type librarianRepository struct {
	db *sqlx.DB
}

func NewLibrarianRepository(db *sqlx.DB) LibrarianStore {
	return &librarianRepository{db: db}
}

func (r *librarianRepository) Create(ctx context.Context, librarian *domain.Librarian) error {
	query, args, err := dialect(r.db).Insert(tableLibrarians).Prepared(true).
		Rows(goqu.Record{
			"matricule":    librarian.Matricule,
			"name":         librarian.Name,
			"first_name":   librarian.FirstName,
			"email":        librarian.Email,
			"phone":        librarian.Phone,
			"access_level": librarian.AccessLevel,
		}).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, query, args...)
	return translate(err)
}

func (r *librarianRepository) Get(ctx context.Context, matricule string) (*domain.Librarian, error) {
	query, args, err := dialect(r.db).From(tableLibrarians).Prepared(true).
		Select(librarianColumns...).
		Where(goqu.Ex{"matricule": matricule}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	// sqlx maps the embedded PersonInfo columns by their db tags.
	var librarian domain.Librarian
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &librarian, query, args...); err != nil {
		return nil, translate(err)
	}
	return &librarian, nil
}

func (r *librarianRepository) List(ctx context.Context) ([]*domain.Librarian, error) {
	query, args, err := dialect(r.db).From(tableLibrarians).Prepared(true).
		Select(librarianColumns...).
		Order(goqu.I("matricule").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	librarians := []*domain.Librarian{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &librarians, query, args...); err != nil {
		return nil, translate(err)
	}
	return librarians, nil
}

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountStore {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query, args, err := dialect(r.db).Insert(tableAccounts).Prepared(true).
		Rows(goqu.Record{
			"username":      account.Username,
			"password_hash": account.PasswordHash,
		}).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, query, args...)
	return translate(err)
}

func (r *accountRepository) Get(ctx context.Context, username string) (*domain.Account, error) {
	query, args, err := dialect(r.db).From(tableAccounts).Prepared(true).
		Select("username", "password_hash").
		Where(goqu.Ex{"username": username}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var account domain.Account
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &account, query, args...); err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	query, args, err := dialect(r.db).Update(tableAccounts).Prepared(true).
		Set(goqu.Record{"password_hash": account.PasswordHash}).
		Where(goqu.Ex{"username": account.Username}).
		ToSQL()
	if err != nil {
		return err
	}

	return execAffectingOne(ctx, conn(ctx, r.db), query, args...)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu dialect
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const schemaVersion = 1

// Open connects to driver ("sqlite3" or "postgres") and applies the schema.
// For sqlite3, url is a file path; its directory is created on first run.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	dsn := url
	if driver == "sqlite3" {
		if dir := filepath.Dir(url); dir != "." && !strings.HasPrefix(url, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		if !strings.HasPrefix(url, "file:") {
			dsn = fmt.Sprintf("file:%s?_busy_timeout=5000", url)
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLStores wires every store to db.
func NewSQLStores(db *sqlx.DB) *Stores {
	return &Stores{
		Books:      NewBookRepository(db),
		Members:    NewMemberRepository(db),
		Loans:      NewLoanRepository(db),
		Librarians: NewLibrarianRepository(db),
		Accounts:   NewAccountRepository(db),
		Tx:         NewSQLTransactor(db),
	}
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		isbn TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		publisher TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		page_count INTEGER NOT NULL DEFAULT 0,
		available BOOLEAN NOT NULL DEFAULT {{TRUE}},
		created_at {{TIMESTAMP}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		member_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		history TEXT NOT NULL DEFAULT ''
	)`,
	// Loans outlive the books and members they reference, so the
	// references are indexed rather than enforced.
	`CREATE TABLE IF NOT EXISTS loans (
		id {{LOAN_ID}},
		member_id TEXT NOT NULL,
		isbn TEXT NOT NULL,
		loan_date {{TIMESTAMP}} NOT NULL,
		due_date {{TIMESTAMP}} NOT NULL,
		return_date {{TIMESTAMP}},
		status TEXT NOT NULL DEFAULT 'ACTIVE'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_member_status ON loans (member_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_isbn_status ON loans (isbn, status)`,
	`CREATE TABLE IF NOT EXISTS librarians (
		matricule TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		access_level TEXT NOT NULL DEFAULT 'standard'
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL
	)`,
}

var dialectTypes = map[string]*strings.Replacer{
	"sqlite3": strings.NewReplacer(
		"{{TRUE}}", "1",
		"{{TIMESTAMP}}", "TIMESTAMP",
		"{{LOAN_ID}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
	),
	"postgres": strings.NewReplacer(
		"{{TRUE}}", "TRUE",
		"{{TIMESTAMP}}", "TIMESTAMPTZ",
		"{{LOAN_ID}}", "BIGINT PRIMARY KEY",
	),
}

// Migrate creates the tables if the stored schema version is behind.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	replacer, ok := dialectTypes[db.DriverName()]
	if !ok {
		return fmt.Errorf("unsupported driver %q", db.DriverName())
	}

	if db.DriverName() == "sqlite3" {
		// WAL improves write concurrency.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (name TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current string
	err := db.QueryRowxContext(ctx, db.Rebind(`SELECT value FROM meta WHERE name = ?`), "schema_version").Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v, _ := strconv.Atoi(current); v >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, replacer.Replace(stmt)); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	upsert := tx.Rebind(`INSERT INTO meta (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`)
	if _, err := tx.ExecContext(ctx, upsert, "schema_version", strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

type txKey struct{}

type sqlTransactor struct {
	db *sqlx.DB
}

func NewSQLTransactor(db *sqlx.DB) Transactor {
	return &sqlTransactor{db: db}
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// conn returns the transaction carried by ctx, falling back to db.
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

func dialect(db *sqlx.DB) goqu.DialectWrapper {
	return goqu.Dialect(db.DriverName())
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrRecordNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", ErrDuplicateRecord, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	// PostgreSQL error code 23505 = unique_violation.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// execAffectingOne runs a statement that must touch exactly one row.
func execAffectingOne(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) error {
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

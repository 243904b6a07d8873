package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lending-ledger/internal/domain"
)

const tableLoans = "loans"

var loanColumns = []interface{}{
	"id", "member_id", "isbn", "loan_date", "due_date", "return_date", "status",
}

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanStore {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query, args, err := dialect(r.db).Insert(tableLoans).Prepared(true).
		Rows(goqu.Record{
			"id":          loan.ID,
			"member_id":   loan.MemberID,
			"isbn":        loan.ISBN,
			"loan_date":   loan.LoanDate.UTC(),
			"due_date":    loan.DueDate.UTC(),
			"return_date": nullTime(loan.ReturnDate),
			"status":      string(loan.Status),
		}).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, query, args...)
	return translate(err)
}

func (r *loanRepository) Get(ctx context.Context, loanID int64) (*domain.Loan, error) {
	query, args, err := r.selectLoans().
		Where(goqu.Ex{"id": loanID}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &loan, query, args...); err != nil {
		return nil, translate(err)
	}
	return &loan, nil
}

// Update only touches the columns a return may change; loan and due dates
// are fixed at creation.
func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query, args, err := dialect(r.db).Update(tableLoans).Prepared(true).
		Set(goqu.Record{
			"return_date": nullTime(loan.ReturnDate),
			"status":      string(loan.Status),
		}).
		Where(goqu.Ex{"id": loan.ID}).
		ToSQL()
	if err != nil {
		return err
	}

	return execAffectingOne(ctx, conn(ctx, r.db), query, args...)
}

func (r *loanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	return r.list(ctx, goqu.Ex{})
}

func (r *loanRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	return r.list(ctx, goqu.Ex{"member_id": memberID})
}

func (r *loanRepository) ListActive(ctx context.Context) ([]*domain.Loan, error) {
	return r.list(ctx, goqu.Ex{"status": string(domain.LoanStatusActive)})
}

func (r *loanRepository) MaxID(ctx context.Context) (int64, error) {
	query, args, err := dialect(r.db).From(tableLoans).Prepared(true).
		Select(goqu.COALESCE(goqu.MAX("id"), 0).As("max_id")).
		ToSQL()
	if err != nil {
		return 0, err
	}

	var maxID int64
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &maxID, query, args...); err != nil {
		return 0, translate(err)
	}
	return maxID, nil
}

func (r *loanRepository) CountActiveByMember(ctx context.Context, memberID string) (int, error) {
	return r.countActive(ctx, goqu.Ex{"member_id": memberID})
}

func (r *loanRepository) HasActiveForBook(ctx context.Context, isbn string) (bool, error) {
	n, err := r.countActive(ctx, goqu.Ex{"isbn": isbn})
	return n > 0, err
}

func (r *loanRepository) countActive(ctx context.Context, where goqu.Ex) (int, error) {
	where["status"] = string(domain.LoanStatusActive)

	query, args, err := dialect(r.db).From(tableLoans).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(where).
		ToSQL()
	if err != nil {
		return 0, err
	}

	var n int
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &n, query, args...); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r *loanRepository) list(ctx context.Context, where goqu.Ex) ([]*domain.Loan, error) {
	query, args, err := r.selectLoans().
		Where(where).
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	loans := []*domain.Loan{}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &loans, query, args...); err != nil {
		return nil, translate(err)
	}
	return loans, nil
}

func (r *loanRepository) selectLoans() *goqu.SelectDataset {
	return dialect(r.db).From(tableLoans).Prepared(true).Select(loanColumns...)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

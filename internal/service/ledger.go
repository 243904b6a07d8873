package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/lending-ledger/internal/config"
	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/utils"
)

// Policy holds the lending rules.
type Policy struct {
	MaxLoansPerMember int
	LoanPeriodDays    int
	FineDailyRate     decimal.Decimal

	// GraceDays delays blocking by the sweep. It never changes whether a
	// loan counts as overdue or what it is fined.
	GraceDays int

	// Location decides where calendar days begin.
	Location *time.Location
}

// DefaultPolicy is 5 loans, 14 days, 0.50 per day late, no grace, UTC.
func DefaultPolicy() Policy {
	return Policy{
		MaxLoansPerMember: 5,
		LoanPeriodDays:    14,
		FineDailyRate:     decimal.RequireFromString("0.50"),
		Location:          time.UTC,
	}
}

// PolicyFromConfig reads the business section of a validated config.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxLoansPerMember: cfg.Business.MaxLoansPerMember,
		LoanPeriodDays:    cfg.Business.LoanPeriodDays,
		FineDailyRate:     cfg.GetFineDailyRate(),
		GraceDays:         cfg.Business.GracePeriodDays,
		Location:          cfg.GetLocation(),
	}
}

// Ledger owns loan records and is the only component that moves a book
// between available and loaned.
type Ledger struct {
	loans    repository.LoanStore
	catalog  *Catalog
	registry *Registry
	policy   Policy
	now      func() time.Time
}

func NewLedger(loans repository.LoanStore, catalog *Catalog, registry *Registry, policy Policy, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Ledger{
		loans:    loans,
		catalog:  catalog,
		registry: registry,
		policy:   policy,
		now:      now,
	}
}

// CreateLoan checks, in order: member exists, book exists, book available,
// quota not reached, member not blocked. The first failure is returned.
func (l *Ledger) CreateLoan(ctx context.Context, memberID, isbn string) (*domain.Loan, error) {
	member, err := l.registry.Find(ctx, memberID)
	if err != nil {
		return nil, err
	}

	book, err := l.catalog.Find(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if !book.Available {
		return nil, customError.WrapBookUnavailable(isbn)
	}

	active, err := l.loans.CountActiveByMember(ctx, memberID)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}
	if active >= l.policy.MaxLoansPerMember {
		return nil, customError.WrapQuotaExceeded(memberID, l.policy.MaxLoansPerMember)
	}

	if member.IsBlocked() {
		return nil, customError.WrapMemberBlocked(memberID)
	}

	// max+1 rather than a count, so IDs stay unique even with gaps.
	maxID, err := l.loans.MaxID(ctx)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	now := l.now()
	loan := &domain.Loan{
		ID:       maxID + 1,
		MemberID: memberID,
		ISBN:     isbn,
		LoanDate: now,
		DueDate:  utils.CalculateDueDate(now, l.policy.LoanPeriodDays),
		Status:   domain.LoanStatusActive,
	}

	if err := l.loans.Create(ctx, loan); err != nil {
		return nil, customError.WrapStorageError(err)
	}
	if err := l.catalog.MarkLoaned(ctx, isbn); err != nil {
		return nil, err
	}
	entry := fmt.Sprintf("%s borrowed %s (loan %d, due %s)",
		now.In(l.policy.Location).Format(time.DateOnly), isbn, loan.ID, loan.DueDate.In(l.policy.Location).Format(time.DateOnly))
	if err := l.registry.AttachLoan(ctx, memberID, loan.ID, entry); err != nil {
		return nil, err
	}

	return loan, nil
}

// ReturnLoan closes an active loan and returns it.
func (l *Ledger) ReturnLoan(ctx context.Context, loanID int64) (*domain.Loan, error) {
	loan, err := l.Find(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.IsActive() {
		return nil, customError.WrapLoanAlreadyClosed(loanID)
	}

	now := l.now()
	loan.ReturnDate = &now
	loan.Status = domain.LoanStatusClosed

	if err := l.loans.Update(ctx, loan); err != nil {
		return nil, customError.WrapStorageError(err)
	}
	if err := l.catalog.MarkAvailable(ctx, loan.ISBN); err != nil {
		return nil, err
	}
	entry := fmt.Sprintf("%s returned %s (loan %d)", now.In(l.policy.Location).Format(time.DateOnly), loan.ISBN, loan.ID)
	if err := l.registry.DetachLoan(ctx, loan.MemberID, loan.ID, entry); err != nil {
		return nil, err
	}

	return loan, nil
}

// IsOverdue compares the due date with now for open loans and with the
// return date for closed ones.
func (l *Ledger) IsOverdue(loan *domain.Loan) bool {
	return loan.EndDate(l.now()).After(loan.DueDate)
}

// DaysLate counts calendar days between the due date and the loan's end date.
func (l *Ledger) DaysLate(loan *domain.Loan) int {
	if !l.IsOverdue(loan) {
		return 0
	}
	return utils.DaysLate(loan.DueDate, loan.EndDate(l.now()), l.policy.Location)
}

// ComputeFine is DaysLate times dailyRate, zero for loans that are not overdue.
func (l *Ledger) ComputeFine(loan *domain.Loan, dailyRate decimal.Decimal) decimal.Decimal {
	return utils.CalculateFine(l.DaysLate(loan), dailyRate)
}

// ListOverdue returns open and closed overdue loans ordered by ID.
func (l *Ledger) ListOverdue(ctx context.Context) ([]*domain.Loan, error) {
	loans, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	overdue := make([]*domain.Loan, 0)
	for _, loan := range loans {
		if l.IsOverdue(loan) {
			overdue = append(overdue, loan)
		}
	}
	return overdue, nil
}

// RefreshMemberBlockStatus blocks the member while any of their open loans
// is overdue past the grace period, and unblocks them otherwise.
func (l *Ledger) RefreshMemberBlockStatus(ctx context.Context, memberID string) (domain.MemberStatus, error) {
	member, err := l.registry.Find(ctx, memberID)
	if err != nil {
		return "", err
	}

	loans, err := l.loans.ListByMember(ctx, memberID)
	if err != nil {
		return "", customError.WrapStorageError(err)
	}

	status := domain.MemberStatusActive
	for _, loan := range loans {
		if loan.IsActive() && l.blocksMember(loan) {
			status = domain.MemberStatusBlocked
			break
		}
	}

	if member.Status != status {
		if err := l.registry.SetStatus(ctx, memberID, status); err != nil {
			return "", err
		}
	}
	return status, nil
}

func (l *Ledger) blocksMember(loan *domain.Loan) bool {
	if !l.IsOverdue(loan) {
		return false
	}
	return l.policy.GraceDays == 0 || l.DaysLate(loan) > l.policy.GraceDays
}

func (l *Ledger) Find(ctx context.Context, loanID int64) (*domain.Loan, error) {
	loan, err := l.loans.Get(ctx, loanID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapStorageError(err)
	}
	return loan, nil
}

func (l *Ledger) List(ctx context.Context) ([]*domain.Loan, error) {
	loans, err := l.loans.List(ctx)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}
	return loans, nil
}

func (l *Ledger) ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	loans, err := l.loans.ListByMember(ctx, memberID)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}
	return loans, nil
}

func (l *Ledger) ActiveCount(ctx context.Context) (int, error) {
	loans, err := l.loans.ListActive(ctx)
	if err != nil {
		return 0, customError.WrapStorageError(err)
	}
	return len(loans), nil
}

// ListDueWithin returns open loans that are not yet overdue but fall due
// within window from now.
func (l *Ledger) ListDueWithin(ctx context.Context, window time.Duration) ([]*domain.Loan, error) {
	loans, err := l.loans.ListActive(ctx)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	now := l.now()
	horizon := now.Add(window)
	due := make([]*domain.Loan, 0)
	for _, loan := range loans {
		if !loan.DueDate.Before(now) && !loan.DueDate.After(horizon) {
			due = append(due, loan)
		}
	}
	return due, nil
}

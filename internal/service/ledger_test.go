package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

type fakeClock struct {
	t time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) AdvanceDays(n int) { c.t = c.t.AddDate(0, 0, n) }

type ledgerFixture struct {
	ctx      context.Context
	clock    *fakeClock
	stores   *repository.Stores
	catalog  *Catalog
	registry *Registry
	ledger   *Ledger
}

func newLedgerFixture(t *testing.T, policy Policy) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		ctx:    context.Background(),
		clock:  newClock(),
		stores: repository.NewMemoryStores(),
	}
	f.catalog = NewCatalog(f.stores.Books)
	f.registry = NewRegistry(f.stores.Members)
	f.ledger = NewLedger(f.stores.Loans, f.catalog, f.registry, policy, f.clock.Now)
	return f
}

func (f *ledgerFixture) addBook(t *testing.T, isbn string) {
	t.Helper()
	require.NoError(t, f.catalog.Add(f.ctx, &domain.Book{ISBN: isbn, Title: "Title " + isbn, Author: "Author"}))
}

func (f *ledgerFixture) addMember(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.registry.Register(f.ctx, &domain.Member{
		ID:         id,
		PersonInfo: domain.PersonInfo{Name: "Member " + id, Email: id + "@etu.bf"},
	}))
}

func TestLedger_CreateLoanPreconditionOrder(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, f *ledgerFixture)
		memberID string
		isbn     string
		wantCode string
	}{
		{
			name:     "missing member wins over missing book",
			memberID: "nobody",
			isbn:     "nothing",
			wantCode: customError.ErrCodeMemberNotFound,
		},
		{
			name:     "missing book",
			setup:    func(t *testing.T, f *ledgerFixture) { f.addMember(t, "U001") },
			memberID: "U001",
			isbn:     "nothing",
			wantCode: customError.ErrCodeBookNotFound,
		},
		{
			name: "unavailable book wins over quota and block",
			setup: func(t *testing.T, f *ledgerFixture) {
				f.addMember(t, "U001")
				f.addBook(t, "ISBN-1")
				_, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
				require.NoError(t, err)
				require.NoError(t, f.registry.SetStatus(f.ctx, "U001", domain.MemberStatusBlocked))
			},
			memberID: "U001",
			isbn:     "ISBN-1",
			wantCode: customError.ErrCodeBookUnavailable,
		},
		{
			name: "quota wins over block",
			setup: func(t *testing.T, f *ledgerFixture) {
				f.addMember(t, "U001")
				f.addBook(t, "ISBN-1")
				f.addBook(t, "ISBN-2")
				_, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
				require.NoError(t, err)
				require.NoError(t, f.registry.SetStatus(f.ctx, "U001", domain.MemberStatusBlocked))
			},
			memberID: "U001",
			isbn:     "ISBN-2",
			wantCode: customError.ErrCodeQuotaExceeded,
		},
		{
			name: "blocked member",
			setup: func(t *testing.T, f *ledgerFixture) {
				f.addMember(t, "U001")
				f.addBook(t, "ISBN-1")
				require.NoError(t, f.registry.SetStatus(f.ctx, "U001", domain.MemberStatusBlocked))
			},
			memberID: "U001",
			isbn:     "ISBN-1",
			wantCode: customError.ErrCodeMemberBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultPolicy()
			policy.MaxLoansPerMember = 1
			f := newLedgerFixture(t, policy)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			loan, err := f.ledger.CreateLoan(f.ctx, tt.memberID, tt.isbn)
			require.Error(t, err)
			assert.Nil(t, loan)
			assert.Equal(t, tt.wantCode, customError.Code(err))
		})
	}
}

func TestLedger_CreateLoanSetsDatesAndState(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")

	loan, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), loan.ID)
	assert.Equal(t, f.clock.Now(), loan.LoanDate)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 14), loan.DueDate)
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
	assert.Nil(t, loan.ReturnDate)

	book, err := f.catalog.Find(f.ctx, "ISBN-1")
	require.NoError(t, err)
	assert.False(t, book.Available)

	member, err := f.registry.Find(f.ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, member.ActiveLoans)
	require.Len(t, member.History, 1)
	assert.Contains(t, member.History[0], "borrowed ISBN-1")
}

func TestLedger_LoanIDsAreMaxPlusOne(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")

	// A gap left by an imported ledger.
	require.NoError(t, f.stores.Loans.Create(f.ctx, &domain.Loan{
		ID: 41, MemberID: "U000", ISBN: "OLD", Status: domain.LoanStatusClosed,
	}))

	loan, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), loan.ID)

	_, err = f.ledger.ReturnLoan(f.ctx, loan.ID)
	require.NoError(t, err)

	again, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)
	assert.Equal(t, int64(43), again.ID)
}

func TestLedger_ReturnLoan(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")

	loan, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)

	f.clock.AdvanceDays(3)
	closed, err := f.ledger.ReturnLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClosed, closed.Status)
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, f.clock.Now(), *closed.ReturnDate)

	book, err := f.catalog.Find(f.ctx, "ISBN-1")
	require.NoError(t, err)
	assert.True(t, book.Available)

	member, err := f.registry.Find(f.ctx, "U001")
	require.NoError(t, err)
	assert.Empty(t, member.ActiveLoans)
	assert.Len(t, member.History, 2)

	_, err = f.ledger.ReturnLoan(f.ctx, loan.ID)
	assert.ErrorIs(t, err, customError.ErrLoanAlreadyClosed)

	_, err = f.ledger.ReturnLoan(f.ctx, 99)
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)
	assert.ErrorIs(t, err, customError.ErrNotFound)
}

func TestLedger_IsOverdue(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	due := f.clock.Now()

	returnedEarly := due.Add(-time.Hour)
	returnedLate := due.AddDate(0, 0, 2)

	tests := []struct {
		name string
		loan *domain.Loan
		want bool
	}{
		{"open, not yet due", &domain.Loan{DueDate: due.Add(time.Minute), Status: domain.LoanStatusActive}, false},
		{"open, past due", &domain.Loan{DueDate: due.Add(-time.Minute), Status: domain.LoanStatusActive}, true},
		{"closed on time", &domain.Loan{DueDate: due, ReturnDate: &returnedEarly, Status: domain.LoanStatusClosed}, false},
		{"closed late", &domain.Loan{DueDate: due, ReturnDate: &returnedLate, Status: domain.LoanStatusClosed}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ledger.IsOverdue(tt.loan))
		})
	}

	// A closed late loan stays overdue no matter how far the clock moves.
	f.clock.AdvanceDays(365)
	assert.True(t, f.ledger.IsOverdue(tests[3].loan))
	assert.Equal(t, 2, f.ledger.DaysLate(tests[3].loan))
}

func TestLedger_ComputeFine(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")
	rate := decimal.RequireFromString("0.5")

	loan, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)

	assert.True(t, f.ledger.ComputeFine(loan, rate).IsZero())

	// Later the same day as the due date: overdue, but no full day late.
	f.clock.AdvanceDays(14)
	f.clock.Advance(2 * time.Hour)
	assert.True(t, f.ledger.IsOverdue(loan))
	assert.True(t, f.ledger.ComputeFine(loan, rate).IsZero())

	previous := decimal.Zero
	for day := 1; day <= 30; day++ {
		f.clock.AdvanceDays(1)
		fine := f.ledger.ComputeFine(loan, rate)
		assert.True(t, fine.GreaterThanOrEqual(previous), "fine decreased on day %d", day)
		previous = fine
	}
	assert.True(t, previous.Equal(decimal.RequireFromString("15")))
}

// Scenario E: due date 20 days in the past at 0.5 per day.
func TestLedger_ComputeFineTwentyDaysLate(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")

	loan, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)

	f.clock.AdvanceDays(14 + 20)
	fine := f.ledger.ComputeFine(loan, decimal.NewFromFloat(0.5))
	assert.True(t, fine.Equal(decimal.NewFromFloat(10.0)), "got %s", fine)
}

func TestLedger_ComputeFineUsesCalendarDaysInLocation(t *testing.T) {
	policy := DefaultPolicy()
	policy.Location = time.FixedZone("WIB", 7*60*60)
	f := newLedgerFixture(t, policy)

	due := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)      // 23:00 on the 1st at UTC+7
	returned := time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC) // 00:30 on the 2nd at UTC+7
	loan := &domain.Loan{DueDate: due, ReturnDate: &returned, Status: domain.LoanStatusClosed}

	assert.Equal(t, 1, f.ledger.DaysLate(loan))
	assert.True(t, f.ledger.ComputeFine(loan, decimal.NewFromInt(1)).Equal(decimal.NewFromInt(1)))
}

func TestLedger_ListOverdueIncludesClosedLoans(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")
	f.addBook(t, "ISBN-2")
	f.addBook(t, "ISBN-3")

	late, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)
	open, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-2")
	require.NoError(t, err)

	f.clock.AdvanceDays(20)
	_, err = f.ledger.ReturnLoan(f.ctx, late.ID)
	require.NoError(t, err)

	onTime, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-3")
	require.NoError(t, err)
	_, err = f.ledger.ReturnLoan(f.ctx, onTime.ID)
	require.NoError(t, err)

	overdue, err := f.ledger.ListOverdue(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.Equal(t, open.ID, overdue[1].ID)
}

func TestLedger_RefreshMemberBlockStatus(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")

	loan, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)

	status, err := f.ledger.RefreshMemberBlockStatus(f.ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusActive, status)

	f.clock.AdvanceDays(15)
	status, err = f.ledger.RefreshMemberBlockStatus(f.ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusBlocked, status)

	member, err := f.registry.Find(f.ctx, "U001")
	require.NoError(t, err)
	assert.True(t, member.IsBlocked())

	// Closed overdue loans do not keep a member blocked.
	_, err = f.ledger.ReturnLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	status, err = f.ledger.RefreshMemberBlockStatus(f.ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusActive, status)

	_, err = f.ledger.RefreshMemberBlockStatus(f.ctx, "nobody")
	assert.ErrorIs(t, err, customError.ErrMemberNotFound)
}

func TestLedger_GraceDaysDelayBlockingOnly(t *testing.T) {
	policy := DefaultPolicy()
	policy.GraceDays = 2
	f := newLedgerFixture(t, policy)
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")

	loan, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)

	f.clock.AdvanceDays(16)
	assert.True(t, f.ledger.IsOverdue(loan))
	assert.True(t, f.ledger.ComputeFine(loan, decimal.NewFromInt(1)).Equal(decimal.NewFromInt(2)))

	status, err := f.ledger.RefreshMemberBlockStatus(f.ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusActive, status)

	f.clock.AdvanceDays(1)
	status, err = f.ledger.RefreshMemberBlockStatus(f.ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusBlocked, status)
}

func TestLedger_ListDueWithin(t *testing.T) {
	f := newLedgerFixture(t, DefaultPolicy())
	f.addMember(t, "U001")
	f.addBook(t, "ISBN-1")
	f.addBook(t, "ISBN-2")

	first, err := f.ledger.CreateLoan(f.ctx, "U001", "ISBN-1")
	require.NoError(t, err)
	f.clock.AdvanceDays(5)
	_, err = f.ledger.CreateLoan(f.ctx, "U001", "ISBN-2")
	require.NoError(t, err)

	// First loan falls due in 9 days, the second in 14.
	due, err := f.ledger.ListDueWithin(f.ctx, 10*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, first.ID, due[0].ID)

	f.clock.AdvanceDays(10)
	due, err = f.ledger.ListDueWithin(f.ctx, 4*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1, "overdue loans are not reminders")
	assert.NotEqual(t, first.ID, due[0].ID)

	n, err := f.ledger.ActiveCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/domain"
)

// backends runs each test against the in-memory stores and a fresh sqlite file.
func backends(t *testing.T) map[string]func(t *testing.T) *Stores {
	t.Helper()
	return map[string]func(t *testing.T) *Stores{
		"memory": func(t *testing.T) *Stores { return NewMemoryStores() },
		"sqlite": func(t *testing.T) *Stores {
			db, err := Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "library.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return NewSQLStores(db)
		},
	}
}

var created = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleBook(isbn string) *domain.Book {
	return &domain.Book{
		ISBN:      isbn,
		Title:     "The Go Programming Language",
		Author:    "Donovan",
		Publisher: "Addison-Wesley",
		Year:      2015,
		Category:  "Programming",
		PageCount: 380,
		Available: true,
		CreatedAt: created,
	}
}

func sampleMember(id string) *domain.Member {
	return &domain.Member{
		ID:         id,
		PersonInfo: domain.PersonInfo{Name: "Ouédraogo", FirstName: "Issa", Email: "issa@etu.bf"},
		Status:     domain.MemberStatusActive,
	}
}

func TestBookStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stores := open(t)

			require.NoError(t, stores.Books.Create(ctx, sampleBook("ISBN-2")))
			require.NoError(t, stores.Books.Create(ctx, sampleBook("ISBN-1")))

			err := stores.Books.Create(ctx, sampleBook("ISBN-1"))
			assert.ErrorIs(t, err, ErrDuplicateRecord)

			got, err := stores.Books.Get(ctx, "ISBN-1")
			require.NoError(t, err)
			assert.Equal(t, "Donovan", got.Author)
			assert.True(t, got.Available)
			assert.True(t, got.CreatedAt.Equal(created))

			got.Available = false
			got.Title = "Updated"
			require.NoError(t, stores.Books.Update(ctx, got))

			again, err := stores.Books.Get(ctx, "ISBN-1")
			require.NoError(t, err)
			assert.False(t, again.Available)
			assert.Equal(t, "Updated", again.Title)

			list, err := stores.Books.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ISBN-1", list[0].ISBN)
			assert.Equal(t, "ISBN-2", list[1].ISBN)

			require.NoError(t, stores.Books.Delete(ctx, "ISBN-2"))
			assert.ErrorIs(t, stores.Books.Delete(ctx, "ISBN-2"), ErrRecordNotFound)

			_, err = stores.Books.Get(ctx, "ISBN-2")
			assert.ErrorIs(t, err, ErrRecordNotFound)
			assert.ErrorIs(t, stores.Books.Update(ctx, sampleBook("missing")), ErrRecordNotFound)
		})
	}
}

func TestMemberStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stores := open(t)

			require.NoError(t, stores.Members.Create(ctx, sampleMember("U001")))
			assert.ErrorIs(t, stores.Members.Create(ctx, sampleMember("U001")), ErrDuplicateRecord)

			got, err := stores.Members.Get(ctx, "U001")
			require.NoError(t, err)
			assert.Equal(t, "Issa", got.FirstName)
			assert.Equal(t, domain.MemberStatusActive, got.Status)
			assert.Empty(t, got.History)
			assert.Empty(t, got.ActiveLoans)

			got.History = append(got.History, "Borrowed ISBN-1", "Returned ISBN-1")
			got.Status = domain.MemberStatusBlocked
			require.NoError(t, stores.Members.Update(ctx, got))

			again, err := stores.Members.Get(ctx, "U001")
			require.NoError(t, err)
			assert.Equal(t, []string{"Borrowed ISBN-1", "Returned ISBN-1"}, again.History)
			assert.True(t, again.IsBlocked())

			require.NoError(t, stores.Members.Create(ctx, sampleMember("U000")))
			list, err := stores.Members.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "U000", list[0].ID)

			require.NoError(t, stores.Members.Delete(ctx, "U000"))
			_, err = stores.Members.Get(ctx, "U000")
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestMemberStoreHistoryKeepsEntriesVerbatim(t *testing.T) {
	entries := []string{
		"2024-03-01 note: card lost\nreplacement issued",
		"",
		"quotes \" and, commas | pipes",
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stores := open(t)

			m := sampleMember("U001")
			m.History = entries
			require.NoError(t, stores.Members.Create(ctx, m))

			got, err := stores.Members.Get(ctx, "U001")
			require.NoError(t, err)
			assert.Equal(t, entries, got.History)

			list, err := stores.Members.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, entries, list[0].History)
		})
	}
}

func TestLoanStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stores := open(t)

			maxID, err := stores.Loans.MaxID(ctx)
			require.NoError(t, err)
			assert.Zero(t, maxID)

			loanDate := created
			for i, isbn := range []string{"ISBN-1", "ISBN-2"} {
				require.NoError(t, stores.Loans.Create(ctx, &domain.Loan{
					ID:       int64(i + 1),
					MemberID: "U001",
					ISBN:     isbn,
					LoanDate: loanDate,
					DueDate:  loanDate.AddDate(0, 0, 14),
					Status:   domain.LoanStatusActive,
				}))
			}
			assert.ErrorIs(t, stores.Loans.Create(ctx, &domain.Loan{ID: 1, Status: domain.LoanStatusActive}), ErrDuplicateRecord)

			maxID, err = stores.Loans.MaxID(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), maxID)

			n, err := stores.Loans.CountActiveByMember(ctx, "U001")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			returned := loanDate.AddDate(0, 0, 3)
			loan, err := stores.Loans.Get(ctx, 1)
			require.NoError(t, err)
			assert.Nil(t, loan.ReturnDate)
			assert.True(t, loan.DueDate.Equal(loanDate.AddDate(0, 0, 14)))

			loan.ReturnDate = &returned
			loan.Status = domain.LoanStatusClosed
			require.NoError(t, stores.Loans.Update(ctx, loan))

			closed, err := stores.Loans.Get(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, closed.ReturnDate)
			assert.True(t, closed.ReturnDate.Equal(returned))
			assert.Equal(t, domain.LoanStatusClosed, closed.Status)

			inUse, err := stores.Loans.HasActiveForBook(ctx, "ISBN-1")
			require.NoError(t, err)
			assert.False(t, inUse)
			inUse, err = stores.Loans.HasActiveForBook(ctx, "ISBN-2")
			require.NoError(t, err)
			assert.True(t, inUse)

			active, err := stores.Loans.ListActive(ctx)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, int64(2), active[0].ID)

			all, err := stores.Loans.ListByMember(ctx, "U001")
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, int64(1), all[0].ID)

			_, err = stores.Loans.Get(ctx, 99)
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestSQLMemberActiveLoansComeFromLedger(t *testing.T) {
	ctx := context.Background()
	stores := backends(t)["sqlite"](t)

	require.NoError(t, stores.Members.Create(ctx, sampleMember("U001")))
	require.NoError(t, stores.Loans.Create(ctx, &domain.Loan{
		ID: 7, MemberID: "U001", ISBN: "ISBN-1",
		LoanDate: created, DueDate: created.AddDate(0, 0, 14), Status: domain.LoanStatusActive,
	}))

	m, err := stores.Members.Get(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, m.ActiveLoans)

	list, err := stores.Members.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, list[0].ActiveLoans)
}

func TestLibrarianAndAccountStores(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stores := open(t)

			lib := &domain.Librarian{
				Matricule:   "BIB001",
				PersonInfo:  domain.PersonInfo{Name: "Kaboré", FirstName: "Awa", Email: "awa@biblio.bf"},
				AccessLevel: domain.AccessLevelAdmin,
			}
			require.NoError(t, stores.Librarians.Create(ctx, lib))
			assert.ErrorIs(t, stores.Librarians.Create(ctx, lib), ErrDuplicateRecord)

			got, err := stores.Librarians.Get(ctx, "BIB001")
			require.NoError(t, err)
			assert.Equal(t, "Awa", got.FirstName)
			assert.Equal(t, domain.AccessLevelAdmin, got.AccessLevel)

			all, err := stores.Librarians.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, stores.Accounts.Create(ctx, &domain.Account{Username: "BIB001", PasswordHash: "h1"}))
			require.NoError(t, stores.Accounts.Update(ctx, &domain.Account{Username: "BIB001", PasswordHash: "h2"}))
			acc, err := stores.Accounts.Get(ctx, "BIB001")
			require.NoError(t, err)
			assert.Equal(t, "h2", acc.PasswordHash)

			_, err = stores.Accounts.Get(ctx, "nobody")
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestTransactorRollsBack(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stores := open(t)
			boom := errors.New("boom")

			err := stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
				require.NoError(t, stores.Books.Create(ctx, sampleBook("ISBN-1")))
				return stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
					require.NoError(t, stores.Members.Create(ctx, sampleMember("U001")))
					return boom
				})
			})
			assert.ErrorIs(t, err, boom)

			_, err = stores.Books.Get(ctx, "ISBN-1")
			assert.ErrorIs(t, err, ErrRecordNotFound)
			_, err = stores.Members.Get(ctx, "U001")
			assert.ErrorIs(t, err, ErrRecordNotFound)

			require.NoError(t, stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
				return stores.Books.Create(ctx, sampleBook("ISBN-1"))
			}))
			_, err = stores.Books.Get(ctx, "ISBN-1")
			assert.NoError(t, err)
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "library.db")

	db, err := Open(ctx, "sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, NewBookRepository(db).Create(ctx, sampleBook("ISBN-1")))
	require.NoError(t, db.Close())

	db, err = Open(ctx, "sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))
	_, err = NewBookRepository(db).Get(ctx, "ISBN-1")
	assert.NoError(t, err)
}

package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/segyhp/lending-ledger/internal/domain"
)

// memoryState is the shared backing of the in-memory stores. Records are
// copied on the way in and out so callers never alias stored values.
type memoryState struct {
	mu         sync.RWMutex
	books      map[string]domain.Book
	members    map[string]*domain.Member
	loans      map[int64]domain.Loan
	librarians map[string]domain.Librarian
	accounts   map[string]domain.Account
}

// NewMemoryStores returns stores backed by process memory. Nothing survives
// the process, so only tests and embedding callers use them.
func NewMemoryStores() *Stores {
	st := &memoryState{
		books:      make(map[string]domain.Book),
		members:    make(map[string]*domain.Member),
		loans:      make(map[int64]domain.Loan),
		librarians: make(map[string]domain.Librarian),
		accounts:   make(map[string]domain.Account),
	}
	return &Stores{
		Books:      &memoryBooks{st},
		Members:    &memoryMembers{st},
		Loans:      &memoryLoans{st},
		Librarians: &memoryLibrarians{st},
		Accounts:   &memoryAccounts{st},
		Tx:         &memoryTransactor{st},
	}
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

type memTxKey struct{}

type memoryTransactor struct {
	st *memoryState
}

// WithinTx snapshots every map and restores it if fn fails.
func (t *memoryTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	snap := t.st.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.st.restore(snap)
		return err
	}
	return nil
}

func (s *memoryState) snapshot() *memoryState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[string]*domain.Member, len(s.members))
	for id, m := range s.members {
		members[id] = m.Clone()
	}
	return &memoryState{
		books:      maps.Clone(s.books),
		members:    members,
		loans:      maps.Clone(s.loans),
		librarians: maps.Clone(s.librarians),
		accounts:   maps.Clone(s.accounts),
	}
}

func (s *memoryState) restore(snap *memoryState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books = snap.books
	s.members = snap.members
	s.loans = snap.loans
	s.librarians = snap.librarians
	s.accounts = snap.accounts
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

type memoryBooks struct {
	st *memoryState
}

func (r *memoryBooks) Create(_ context.Context, book *domain.Book) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.books[book.ISBN]; ok {
		return ErrDuplicateRecord
	}
	r.st.books[book.ISBN] = *book
	return nil
}

func (r *memoryBooks) Get(_ context.Context, isbn string) (*domain.Book, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	book, ok := r.st.books[isbn]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &book, nil
}

func (r *memoryBooks) Update(_ context.Context, book *domain.Book) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.books[book.ISBN]; !ok {
		return ErrRecordNotFound
	}
	r.st.books[book.ISBN] = *book
	return nil
}

func (r *memoryBooks) Delete(_ context.Context, isbn string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.books[isbn]; !ok {
		return ErrRecordNotFound
	}
	delete(r.st.books, isbn)
	return nil
}

func (r *memoryBooks) List(_ context.Context) ([]*domain.Book, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	books := make([]*domain.Book, 0, len(r.st.books))
	for _, isbn := range slices.Sorted(maps.Keys(r.st.books)) {
		book := r.st.books[isbn]
		books = append(books, &book)
	}
	return books, nil
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

type memoryMembers struct {
	st *memoryState
}

func (r *memoryMembers) Create(_ context.Context, member *domain.Member) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.members[member.ID]; ok {
		return ErrDuplicateRecord
	}
	stored := member.Clone()
	if stored.Status == "" {
		stored.Status = domain.MemberStatusActive
	}
	r.st.members[member.ID] = stored
	return nil
}

func (r *memoryMembers) Get(_ context.Context, memberID string) (*domain.Member, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	member, ok := r.st.members[memberID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return normalizeMember(member.Clone()), nil
}

func (r *memoryMembers) Update(_ context.Context, member *domain.Member) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.members[member.ID]; !ok {
		return ErrRecordNotFound
	}
	r.st.members[member.ID] = member.Clone()
	return nil
}

func (r *memoryMembers) Delete(_ context.Context, memberID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.members[memberID]; !ok {
		return ErrRecordNotFound
	}
	delete(r.st.members, memberID)
	return nil
}

func (r *memoryMembers) List(_ context.Context) ([]*domain.Member, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	members := make([]*domain.Member, 0, len(r.st.members))
	for _, id := range slices.Sorted(maps.Keys(r.st.members)) {
		members = append(members, normalizeMember(r.st.members[id].Clone()))
	}
	return members, nil
}

// normalizeMember gives nil slices the same empty shape the SQL store returns.
func normalizeMember(m *domain.Member) *domain.Member {
	if m.History == nil {
		m.History = []string{}
	}
	if m.ActiveLoans == nil {
		m.ActiveLoans = []int64{}
	}
	return m
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

type memoryLoans struct {
	st *memoryState
}

func (r *memoryLoans) Create(_ context.Context, loan *domain.Loan) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.loans[loan.ID]; ok {
		return ErrDuplicateRecord
	}
	r.st.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (r *memoryLoans) Get(_ context.Context, loanID int64) (*domain.Loan, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	loan, ok := r.st.loans[loanID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	c := copyLoan(&loan)
	return &c, nil
}

func (r *memoryLoans) Update(_ context.Context, loan *domain.Loan) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	stored, ok := r.st.loans[loan.ID]
	if !ok {
		return ErrRecordNotFound
	}
	updated := copyLoan(loan)
	stored.ReturnDate = updated.ReturnDate
	stored.Status = updated.Status
	r.st.loans[loan.ID] = stored
	return nil
}

func (r *memoryLoans) List(_ context.Context) ([]*domain.Loan, error) {
	return r.filter(func(*domain.Loan) bool { return true }), nil
}

func (r *memoryLoans) ListByMember(_ context.Context, memberID string) ([]*domain.Loan, error) {
	return r.filter(func(l *domain.Loan) bool { return l.MemberID == memberID }), nil
}

func (r *memoryLoans) ListActive(_ context.Context) ([]*domain.Loan, error) {
	return r.filter((*domain.Loan).IsActive), nil
}

func (r *memoryLoans) MaxID(_ context.Context) (int64, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var maxID int64
	for id := range r.st.loans {
		maxID = max(maxID, id)
	}
	return maxID, nil
}

func (r *memoryLoans) CountActiveByMember(_ context.Context, memberID string) (int, error) {
	return len(r.filter(func(l *domain.Loan) bool { return l.IsActive() && l.MemberID == memberID })), nil
}

func (r *memoryLoans) HasActiveForBook(_ context.Context, isbn string) (bool, error) {
	return len(r.filter(func(l *domain.Loan) bool { return l.IsActive() && l.ISBN == isbn })) > 0, nil
}

func (r *memoryLoans) filter(keep func(*domain.Loan) bool) []*domain.Loan {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	loans := []*domain.Loan{}
	for _, loan := range r.st.loans {
		c := copyLoan(&loan)
		if keep(&c) {
			loans = append(loans, &c)
		}
	}
	slices.SortFunc(loans, func(a, b *domain.Loan) int { return cmp.Compare(a.ID, b.ID) })
	return loans
}

func copyLoan(l *domain.Loan) domain.Loan {
	c := *l
	if l.ReturnDate != nil {
		rd := *l.ReturnDate
		c.ReturnDate = &rd
	}
	return c
}

// ---------------------------------------------------------------------------
// Librarians and accounts
// ---------------------------------------------------------------------------

type memoryLibrarians struct {
	st *memoryState
}

func (r *memoryLibrarians) Create(_ context.Context, librarian *domain.Librarian) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.librarians[librarian.Matricule]; ok {
		return ErrDuplicateRecord
	}
	r.st.librarians[librarian.Matricule] = *librarian
	return nil
}

func (r *memoryLibrarians) Get(_ context.Context, matricule string) (*domain.Librarian, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	librarian, ok := r.st.librarians[matricule]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &librarian, nil
}

func (r *memoryLibrarians) List(_ context.Context) ([]*domain.Librarian, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	librarians := make([]*domain.Librarian, 0, len(r.st.librarians))
	for _, m := range slices.Sorted(maps.Keys(r.st.librarians)) {
		librarian := r.st.librarians[m]
		librarians = append(librarians, &librarian)
	}
	return librarians, nil
}

type memoryAccounts struct {
	st *memoryState
}

func (r *memoryAccounts) Create(_ context.Context, account *domain.Account) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.accounts[account.Username]; ok {
		return ErrDuplicateRecord
	}
	r.st.accounts[account.Username] = *account
	return nil
}

func (r *memoryAccounts) Get(_ context.Context, username string) (*domain.Account, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	account, ok := r.st.accounts[username]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &account, nil
}

func (r *memoryAccounts) Update(_ context.Context, account *domain.Account) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.accounts[account.Username]; !ok {
		return ErrRecordNotFound
	}
	r.st.accounts[account.Username] = *account
	return nil
}

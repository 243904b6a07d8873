package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
	"github.com/segyhp/lending-ledger/pkg/logger"
	"github.com/segyhp/lending-ledger/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReportCache stores the last computed report. Get returns nil, nil on a miss.
type ReportCache interface {
	Get(ctx context.Context) (*domain.Report, error)
	Set(ctx context.Context, report *domain.Report) error
	Invalidate(ctx context.Context) error
}

// Library is the facade the CLI and scheduler talk to. Every operation runs
// in one storage transaction and operations never interleave.
type Library struct {
	mu       sync.Mutex
	stores   *repository.Stores
	catalog  *Catalog
	registry *Registry
	ledger   *Ledger
	policy   Policy
	cache    ReportCache
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Library)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

func WithReportCache(cache ReportCache) Option {
	return func(l *Library) { l.cache = cache }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Library) { l.logger = log }
}

func NewLibrary(stores *repository.Stores, policy Policy, opts ...Option) *Library {
	l := &Library{
		stores: stores,
		policy: policy,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.catalog = NewCatalog(stores.Books)
	l.registry = NewRegistry(stores.Members)
	l.ledger = NewLedger(stores.Loans, l.catalog, l.registry, policy, l.now)
	return l
}

// run serializes op, gives it a transaction and a correlated logger, and
// drops the cached report after a successful mutation.
func (l *Library) run(ctx context.Context, op string, mutates bool, fn func(ctx context.Context, log *slog.Logger) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.logger.With("op", op, "op_id", uuid.NewString())

	err := l.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx, log)
	})
	if err != nil {
		if customError.Code(err) == "" {
			err = customError.WrapStorageError(err)
		}
		if customError.IsStorage(err) {
			log.Error("operation failed", "error", err)
		} else {
			log.Info("operation rejected", "code", customError.Code(err))
		}
		return err
	}

	if mutates && l.cache != nil {
		if err := l.cache.Invalidate(ctx); err != nil {
			log.Warn("report cache invalidation failed", "error", err)
		}
	}
	log.Debug("operation completed")
	return nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

func (l *Library) AddBook(ctx context.Context, book *domain.Book) error {
	if err := domain.Validate(book); err != nil {
		return customError.WrapInvalidInput(err)
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = l.now()
	}

	return l.run(ctx, "add_book", true, func(ctx context.Context, log *slog.Logger) error {
		if err := l.catalog.Add(ctx, book); err != nil {
			return err
		}
		log.Info("book added", "isbn", book.ISBN)
		return nil
	})
}

func (l *Library) UpdateBook(ctx context.Context, book *domain.Book) error {
	if err := domain.Validate(book); err != nil {
		return customError.WrapInvalidInput(err)
	}

	return l.run(ctx, "update_book", true, func(ctx context.Context, _ *slog.Logger) error {
		return l.catalog.Update(ctx, book)
	})
}

// RemoveBook refuses books that an open loan still references.
func (l *Library) RemoveBook(ctx context.Context, isbn string) error {
	return l.run(ctx, "remove_book", true, func(ctx context.Context, log *slog.Logger) error {
		if _, err := l.catalog.Find(ctx, isbn); err != nil {
			return err
		}

		inUse, err := l.stores.Loans.HasActiveForBook(ctx, isbn)
		if err != nil {
			return customError.WrapStorageError(err)
		}
		if inUse {
			return customError.WrapBookInUse(isbn)
		}

		if err := l.catalog.Remove(ctx, isbn); err != nil {
			return err
		}
		log.Info("book removed", "isbn", isbn)
		return nil
	})
}

func (l *Library) FindBook(ctx context.Context, isbn string) (book *domain.Book, err error) {
	err = l.run(ctx, "find_book", false, func(ctx context.Context, _ *slog.Logger) error {
		book, err = l.catalog.Find(ctx, isbn)
		return err
	})
	return book, err
}

func (l *Library) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	return l.searchBooks(ctx, "list_books", MatchAllBooks)
}

func (l *Library) ListAvailableBooks(ctx context.Context) (books []*domain.Book, err error) {
	err = l.run(ctx, "list_available_books", false, func(ctx context.Context, _ *slog.Logger) error {
		books, err = l.catalog.ListAvailable(ctx)
		return err
	})
	return books, err
}

// SearchBooks matches query against title, author and category.
func (l *Library) SearchBooks(ctx context.Context, query string) ([]*domain.Book, error) {
	return l.searchBooks(ctx, "search_books", MatchText(query))
}

// SearchBooksBy runs a multi-criteria search.
func (l *Library) SearchBooksBy(ctx context.Context, criteria BookCriteria) ([]*domain.Book, error) {
	return l.searchBooks(ctx, "search_books_by", MatchAll(criteria))
}

func (l *Library) searchBooks(ctx context.Context, op string, filter domain.BookFilter) (books []*domain.Book, err error) {
	err = l.run(ctx, op, false, func(ctx context.Context, _ *slog.Logger) error {
		books, err = l.catalog.Search(ctx, filter)
		return err
	})
	return books, err
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (l *Library) RegisterMember(ctx context.Context, member *domain.Member) error {
	if err := domain.Validate(member); err != nil {
		return customError.WrapInvalidInput(err)
	}

	return l.run(ctx, "register_member", true, func(ctx context.Context, log *slog.Logger) error {
		if err := l.registry.Register(ctx, member); err != nil {
			return err
		}
		log.Info("member registered", "member_id", member.ID)
		return nil
	})
}

func (l *Library) UpdateMember(ctx context.Context, member *domain.Member) error {
	if err := domain.Validate(member); err != nil {
		return customError.WrapInvalidInput(err)
	}

	return l.run(ctx, "update_member", true, func(ctx context.Context, _ *slog.Logger) error {
		return l.registry.Update(ctx, member)
	})
}

// RemoveMember refuses members who still hold an open loan.
func (l *Library) RemoveMember(ctx context.Context, memberID string) error {
	return l.run(ctx, "remove_member", true, func(ctx context.Context, log *slog.Logger) error {
		if _, err := l.registry.Find(ctx, memberID); err != nil {
			return err
		}

		active, err := l.stores.Loans.CountActiveByMember(ctx, memberID)
		if err != nil {
			return customError.WrapStorageError(err)
		}
		if active > 0 {
			return customError.WrapMemberInUse(memberID)
		}

		if err := l.registry.Remove(ctx, memberID); err != nil {
			return err
		}
		log.Info("member removed", "member_id", memberID)
		return nil
	})
}

func (l *Library) FindMember(ctx context.Context, memberID string) (member *domain.Member, err error) {
	err = l.run(ctx, "find_member", false, func(ctx context.Context, _ *slog.Logger) error {
		member, err = l.registry.Find(ctx, memberID)
		return err
	})
	return member, err
}

func (l *Library) ListMembers(ctx context.Context) (members []*domain.Member, err error) {
	err = l.run(ctx, "list_members", false, func(ctx context.Context, _ *slog.Logger) error {
		members, err = l.registry.List(ctx)
		return err
	})
	return members, err
}

func (l *Library) SearchMembers(ctx context.Context, query string) (members []*domain.Member, err error) {
	err = l.run(ctx, "search_members", false, func(ctx context.Context, _ *slog.Logger) error {
		members, err = l.registry.Search(ctx, MatchMember(query))
		return err
	})
	return members, err
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

// Loan lends isbn to memberID and returns the new loan ID. The member's
// block status is refreshed first so an overdue loan is seen immediately.
func (l *Library) Loan(ctx context.Context, memberID, isbn string) (loanID int64, err error) {
	err = l.run(ctx, "loan", true, func(ctx context.Context, log *slog.Logger) error {
		if _, err := l.ledger.RefreshMemberBlockStatus(ctx, memberID); err != nil {
			return err
		}

		loan, err := l.ledger.CreateLoan(ctx, memberID, isbn)
		if err != nil {
			return err
		}
		loanID = loan.ID
		log.Info("loan created", "loan_id", loan.ID, "member_id", memberID, "isbn", isbn, "due_date", loan.DueDate)
		return nil
	})
	return loanID, err
}

// ReturnBook closes loanID and re-evaluates the borrower's block status.
func (l *Library) ReturnBook(ctx context.Context, loanID int64) error {
	return l.run(ctx, "return_book", true, func(ctx context.Context, log *slog.Logger) error {
		loan, err := l.ledger.ReturnLoan(ctx, loanID)
		if err != nil {
			return err
		}

		status, err := l.ledger.RefreshMemberBlockStatus(ctx, loan.MemberID)
		if err != nil {
			return err
		}
		log.Info("loan returned", "loan_id", loanID, "days_late", l.ledger.DaysLate(loan), "member_status", status)
		return nil
	})
}

func (l *Library) FindLoan(ctx context.Context, loanID int64) (loan *domain.Loan, err error) {
	err = l.run(ctx, "find_loan", false, func(ctx context.Context, _ *slog.Logger) error {
		loan, err = l.ledger.Find(ctx, loanID)
		return err
	})
	return loan, err
}

// ListLoans returns the whole ledger, or one member's loans when memberID is set.
func (l *Library) ListLoans(ctx context.Context, memberID string) (loans []*domain.Loan, err error) {
	err = l.run(ctx, "list_loans", false, func(ctx context.Context, _ *slog.Logger) error {
		if memberID == "" {
			loans, err = l.ledger.List(ctx)
		} else {
			loans, err = l.ledger.ListByMember(ctx, memberID)
		}
		return err
	})
	return loans, err
}

// Fine returns the fine of loanID at the configured daily rate.
func (l *Library) Fine(ctx context.Context, loanID int64) (fine decimal.Decimal, err error) {
	err = l.run(ctx, "fine", false, func(ctx context.Context, _ *slog.Logger) error {
		loan, err := l.ledger.Find(ctx, loanID)
		if err != nil {
			return err
		}
		fine = l.ledger.ComputeFine(loan, l.policy.FineDailyRate)
		return nil
	})
	return fine, err
}

// ListOverdue returns every overdue loan, open or closed, with its fine.
func (l *Library) ListOverdue(ctx context.Context) (overdue []domain.OverdueLoan, err error) {
	err = l.run(ctx, "list_overdue", false, func(ctx context.Context, _ *slog.Logger) error {
		overdue, err = l.overdue(ctx)
		return err
	})
	return overdue, err
}

func (l *Library) overdue(ctx context.Context) ([]domain.OverdueLoan, error) {
	loans, err := l.ledger.ListOverdue(ctx)
	if err != nil {
		return nil, err
	}

	overdue := make([]domain.OverdueLoan, 0, len(loans))
	for _, loan := range loans {
		overdue = append(overdue, domain.OverdueLoan{
			Loan:     loan,
			DaysLate: l.ledger.DaysLate(loan),
			Fine:     l.ledger.ComputeFine(loan, l.policy.FineDailyRate),
		})
	}
	return overdue, nil
}

// DueSoon lists open loans falling due within window.
func (l *Library) DueSoon(ctx context.Context, window time.Duration) (loans []*domain.Loan, err error) {
	err = l.run(ctx, "due_soon", false, func(ctx context.Context, _ *slog.Logger) error {
		loans, err = l.ledger.ListDueWithin(ctx, window)
		return err
	})
	return loans, err
}

// SweepAll refreshes the block status of every member and returns how many
// are blocked afterwards.
func (l *Library) SweepAll(ctx context.Context) (blocked int, err error) {
	err = l.run(ctx, "sweep", true, func(ctx context.Context, log *slog.Logger) error {
		blocked, _, err = l.sweep(ctx)
		if err != nil {
			return err
		}
		log.Info("sweep finished", "blocked_members", blocked)
		return nil
	})
	return blocked, err
}

// sweep refreshes every member and reports how many are blocked and how
// many changed status.
func (l *Library) sweep(ctx context.Context) (blocked, changed int, err error) {
	members, err := l.registry.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, m := range members {
		status, err := l.ledger.RefreshMemberBlockStatus(ctx, m.ID)
		if err != nil {
			return 0, 0, err
		}
		if status != m.Status {
			changed++
		}
		if status == domain.MemberStatusBlocked {
			blocked++
		}
	}
	return blocked, changed, nil
}

// ---------------------------------------------------------------------------
// Reporting
// ---------------------------------------------------------------------------

// Report sweeps member statuses and aggregates counts across all three
// components. A cached report is served only while nothing it counts can
// have moved: no status changed in the sweep, it is still the same calendar
// day, and no active loan fell due since it was built.
func (l *Library) Report(ctx context.Context) (report *domain.Report, err error) {
	err = l.run(ctx, "report", false, func(ctx context.Context, log *slog.Logger) error {
		_, changed, err := l.sweep(ctx)
		if err != nil {
			return err
		}

		if l.cache != nil && changed == 0 {
			cached, err := l.cache.Get(ctx)
			if err != nil {
				log.Warn("report cache read failed", "error", err)
			} else if cached != nil {
				fresh, err := l.reportStillFresh(ctx, cached)
				if err != nil {
					return err
				}
				if fresh {
					report = cached
					return nil
				}
			}
		}

		report, err = l.buildReport(ctx)
		if err != nil {
			return err
		}

		if l.cache != nil {
			if err := l.cache.Set(ctx, report); err != nil {
				log.Warn("report cache write failed", "error", err)
			}
		}
		return nil
	})
	return report, err
}

func (l *Library) reportStillFresh(ctx context.Context, cached *domain.Report) (bool, error) {
	now := l.now()
	if !utils.CalendarDate(cached.GeneratedAt, l.policy.Location).Equal(utils.CalendarDate(now, l.policy.Location)) {
		return false, nil
	}

	active, err := l.stores.Loans.ListActive(ctx)
	if err != nil {
		return false, customError.WrapStorageError(err)
	}
	for _, loan := range active {
		if loan.DueDate.After(cached.GeneratedAt) && !loan.DueDate.After(now) {
			return false, nil
		}
	}
	return true, nil
}

func (l *Library) buildReport(ctx context.Context) (*domain.Report, error) {
	books, err := l.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	members, err := l.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	loans, err := l.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := l.overdue(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		TotalBooks:   len(books),
		TotalMembers: len(members),
		TotalLoans:   len(loans),
		OverdueLoans: len(overdue),
		TotalFines:   decimal.Zero,
		GeneratedAt:  l.now(),
	}
	for _, b := range books {
		if b.Available {
			report.AvailableBooks++
		}
	}
	for _, m := range members {
		if m.IsBlocked() {
			report.BlockedMembers++
		}
	}
	for _, loan := range loans {
		if loan.IsActive() {
			report.ActiveLoans++
		}
	}
	for _, o := range overdue {
		report.TotalFines = report.TotalFines.Add(o.Fine)
	}
	return report, nil
}

// ---------------------------------------------------------------------------
// Librarians
// ---------------------------------------------------------------------------

// RegisterLibrarian stores the staff record and an account whose username
// is the matricule.
func (l *Library) RegisterLibrarian(ctx context.Context, librarian *domain.Librarian, password string) error {
	if librarian.AccessLevel == "" {
		librarian.AccessLevel = domain.AccessLevelStandard
	}
	if err := domain.Validate(librarian); err != nil {
		return customError.WrapInvalidInput(err)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	return l.run(ctx, "register_librarian", true, func(ctx context.Context, log *slog.Logger) error {
		if err := l.stores.Librarians.Create(ctx, librarian); err != nil {
			if errors.Is(err, repository.ErrDuplicateRecord) {
				return customError.WrapDuplicateKey("librarian", librarian.Matricule)
			}
			return customError.WrapStorageError(err)
		}
		account := &domain.Account{Username: librarian.Matricule, PasswordHash: hash}
		if err := l.stores.Accounts.Create(ctx, account); err != nil {
			if errors.Is(err, repository.ErrDuplicateRecord) {
				return customError.WrapDuplicateKey("account", account.Username)
			}
			return customError.WrapStorageError(err)
		}
		log.Info("librarian registered", "matricule", librarian.Matricule, "access_level", librarian.AccessLevel)
		return nil
	})
}

// Authenticate checks a password and returns the matching librarian.
// Unknown users and wrong passwords fail identically.
func (l *Library) Authenticate(ctx context.Context, username, password string) (librarian *domain.Librarian, err error) {
	err = l.run(ctx, "authenticate", false, func(ctx context.Context, _ *slog.Logger) error {
		if err := l.checkPassword(ctx, username, password); err != nil {
			return err
		}
		librarian, err = l.stores.Librarians.Get(ctx, username)
		if errors.Is(err, repository.ErrRecordNotFound) {
			return customError.WrapUnauthorized(username)
		}
		if err != nil {
			return customError.WrapStorageError(err)
		}
		return nil
	})
	return librarian, err
}

func (l *Library) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	return l.run(ctx, "change_password", false, func(ctx context.Context, log *slog.Logger) error {
		if err := l.checkPassword(ctx, username, oldPassword); err != nil {
			return err
		}
		if err := l.stores.Accounts.Update(ctx, &domain.Account{Username: username, PasswordHash: hash}); err != nil {
			return customError.WrapStorageError(err)
		}
		log.Info("password changed", "username", username)
		return nil
	})
}

func (l *Library) checkPassword(ctx context.Context, username, password string) error {
	account, err := l.stores.Accounts.Get(ctx, username)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return customError.WrapUnauthorized(username)
	}
	if err != nil {
		return customError.WrapStorageError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return customError.WrapUnauthorized(username)
	}
	return nil
}

const minPasswordLength = 8

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", customError.WrapInvalidInput(errors.New("password must be at least 8 characters"))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", customError.WrapInvalidInput(err)
	}
	return string(hash), nil
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// Export writes every book, member, loan and librarian as one JSON document.
func (l *Library) Export(ctx context.Context, w io.Writer) error {
	var snap domain.Snapshot
	err := l.run(ctx, "export", false, func(ctx context.Context, _ *slog.Logger) error {
		var err error
		if snap.Books, err = l.catalog.List(ctx); err != nil {
			return err
		}
		if snap.Members, err = l.registry.List(ctx); err != nil {
			return err
		}
		if snap.Loans, err = l.ledger.List(ctx); err != nil {
			return err
		}
		if snap.Librarians, err = l.stores.Librarians.List(ctx); err != nil {
			return customError.WrapStorageError(err)
		}
		snap.ExportedAt = l.now()
		return nil
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&snap)
}

// Import loads a snapshot produced by Export into the stores. The snapshot
// must be self-consistent (see checkSnapshot) and any key that already
// exists aborts the whole import.
func (l *Library) Import(ctx context.Context, r io.Reader) error {
	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return customError.WrapInvalidInput(err)
	}
	if err := checkSnapshot(&snap); err != nil {
		return customError.WrapInvalidInput(err)
	}

	return l.run(ctx, "import", true, func(ctx context.Context, log *slog.Logger) error {
		for _, b := range snap.Books {
			if err := l.stores.Books.Create(ctx, b); err != nil {
				return importError(err, "book", b.ISBN)
			}
		}
		for _, m := range snap.Members {
			if err := l.stores.Members.Create(ctx, m); err != nil {
				return importError(err, "member", m.ID)
			}
		}
		for _, loan := range snap.Loans {
			if err := l.stores.Loans.Create(ctx, loan); err != nil {
				return importError(err, "loan", loan.MemberID+"/"+loan.ISBN)
			}
		}
		for _, lib := range snap.Librarians {
			if err := l.stores.Librarians.Create(ctx, lib); err != nil {
				return importError(err, "librarian", lib.Matricule)
			}
		}
		log.Info("snapshot imported",
			"books", len(snap.Books), "members", len(snap.Members), "loans", len(snap.Loans))
		return nil
	})
}

func importError(err error, kind, key string) error {
	if errors.Is(err, repository.ErrDuplicateRecord) {
		return customError.WrapDuplicateKey(kind, key)
	}
	return customError.WrapStorageError(err)
}

// checkSnapshot rejects snapshots that would break the book/loan invariant:
// a loan's status must match its return date, every active loan must name
// a book and a member of the snapshot, a book has at most one active loan,
// and a book is unavailable exactly while it has one. Members' active loan
// sets are rebuilt from the loans rather than trusted.
func checkSnapshot(snap *domain.Snapshot) error {
	books := make(map[string]*domain.Book, len(snap.Books))
	for _, b := range snap.Books {
		if b == nil {
			return fmt.Errorf("snapshot contains an empty book")
		}
		if err := domain.Validate(b); err != nil {
			return fmt.Errorf("book %s: %w", b.ISBN, err)
		}
		if _, ok := books[b.ISBN]; ok {
			return fmt.Errorf("book %s appears twice", b.ISBN)
		}
		books[b.ISBN] = b
	}

	members := make(map[string]*domain.Member, len(snap.Members))
	for _, m := range snap.Members {
		if m == nil {
			return fmt.Errorf("snapshot contains an empty member")
		}
		if err := domain.Validate(m); err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		if _, ok := members[m.ID]; ok {
			return fmt.Errorf("member %s appears twice", m.ID)
		}
		if m.Status != domain.MemberStatusActive && m.Status != domain.MemberStatusBlocked {
			return fmt.Errorf("member %s has unknown status %q", m.ID, m.Status)
		}
		m.ActiveLoans = []int64{}
		members[m.ID] = m
	}

	loanIDs := make(map[int64]bool, len(snap.Loans))
	activeByISBN := make(map[string]int64)
	for _, loan := range snap.Loans {
		if loan == nil {
			return fmt.Errorf("snapshot contains an empty loan")
		}
		if loan.ID <= 0 || loanIDs[loan.ID] {
			return fmt.Errorf("loan id %d is not positive or appears twice", loan.ID)
		}
		loanIDs[loan.ID] = true

		switch loan.Status {
		case domain.LoanStatusActive:
			if loan.ReturnDate != nil {
				return fmt.Errorf("loan %d is active but has a return date", loan.ID)
			}
		case domain.LoanStatusClosed:
			if loan.ReturnDate == nil {
				return fmt.Errorf("loan %d is closed without a return date", loan.ID)
			}
			continue
		default:
			return fmt.Errorf("loan %d has unknown status %q", loan.ID, loan.Status)
		}

		if _, ok := books[loan.ISBN]; !ok {
			return fmt.Errorf("active loan %d names book %s, which is not in the snapshot", loan.ID, loan.ISBN)
		}
		m, ok := members[loan.MemberID]
		if !ok {
			return fmt.Errorf("active loan %d names member %s, which is not in the snapshot", loan.ID, loan.MemberID)
		}
		if other, ok := activeByISBN[loan.ISBN]; ok {
			return fmt.Errorf("book %s has two active loans (%d and %d)", loan.ISBN, other, loan.ID)
		}
		activeByISBN[loan.ISBN] = loan.ID
		m.ActiveLoans = append(m.ActiveLoans, loan.ID)
	}

	for isbn, b := range books {
		_, onLoan := activeByISBN[isbn]
		if b.Available == onLoan {
			return fmt.Errorf("book %s is marked available=%t but has an active loan: %t", isbn, b.Available, onLoan)
		}
	}
	for _, m := range members {
		slices.Sort(m.ActiveLoans)
	}
	return nil
}

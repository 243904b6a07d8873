package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

// Registry owns member records and their status. Like Catalog it has no
// loan awareness; the ledger drives AttachLoan and DetachLoan.
type Registry struct {
	members repository.MemberStore
}

func NewRegistry(members repository.MemberStore) *Registry {
	return &Registry{members: members}
}

// Register stores a new ACTIVE member with an empty history.
func (r *Registry) Register(ctx context.Context, member *domain.Member) error {
	stored := member.Clone()
	stored.Status = domain.MemberStatusActive
	stored.History = []string{}
	stored.ActiveLoans = []int64{}

	if err := r.members.Create(ctx, stored); err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			return customError.WrapDuplicateKey("member", member.ID)
		}
		return customError.WrapStorageError(err)
	}
	return nil
}

// Update replaces contact data only.
func (r *Registry) Update(ctx context.Context, member *domain.Member) error {
	current, err := r.Find(ctx, member.ID)
	if err != nil {
		return err
	}
	current.PersonInfo = member.PersonInfo
	return r.save(ctx, current)
}

func (r *Registry) Remove(ctx context.Context, memberID string) error {
	if err := r.members.Delete(ctx, memberID); err != nil {
		return memberError(err, memberID)
	}
	return nil
}

func (r *Registry) Find(ctx context.Context, memberID string) (*domain.Member, error) {
	member, err := r.members.Get(ctx, memberID)
	if err != nil {
		return nil, memberError(err, memberID)
	}
	return member, nil
}

func (r *Registry) List(ctx context.Context) ([]*domain.Member, error) {
	return r.Search(ctx, func(*domain.Member) bool { return true })
}

func (r *Registry) Search(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, error) {
	members, err := r.members.List(ctx)
	if err != nil {
		return nil, customError.WrapStorageError(err)
	}

	matched := make([]*domain.Member, 0, len(members))
	for _, m := range members {
		if filter(m) {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// RecordTransaction appends text to the member's history.
func (r *Registry) RecordTransaction(ctx context.Context, memberID, text string) error {
	return r.mutate(ctx, memberID, func(m *domain.Member) {
		m.History = append(m.History, text)
	})
}

func (r *Registry) SetStatus(ctx context.Context, memberID string, status domain.MemberStatus) error {
	return r.mutate(ctx, memberID, func(m *domain.Member) {
		m.Status = status
	})
}

// AttachLoan adds loanID to the active set and logs entry in the history.
func (r *Registry) AttachLoan(ctx context.Context, memberID string, loanID int64, entry string) error {
	return r.mutate(ctx, memberID, func(m *domain.Member) {
		if !m.HasActiveLoan(loanID) {
			m.ActiveLoans = append(m.ActiveLoans, loanID)
		}
		m.History = append(m.History, entry)
	})
}

// DetachLoan removes loanID from the active set and logs entry in the history.
func (r *Registry) DetachLoan(ctx context.Context, memberID string, loanID int64, entry string) error {
	return r.mutate(ctx, memberID, func(m *domain.Member) {
		m.ActiveLoans = slices.DeleteFunc(m.ActiveLoans, func(id int64) bool { return id == loanID })
		m.History = append(m.History, entry)
	})
}

func (r *Registry) mutate(ctx context.Context, memberID string, apply func(*domain.Member)) error {
	member, err := r.Find(ctx, memberID)
	if err != nil {
		return err
	}
	apply(member)
	return r.save(ctx, member)
}

func (r *Registry) save(ctx context.Context, member *domain.Member) error {
	if err := r.members.Update(ctx, member); err != nil {
		return memberError(err, member.ID)
	}
	return nil
}

func memberError(err error, memberID string) error {
	if errors.Is(err, repository.ErrRecordNotFound) {
		return customError.WrapMemberNotFound(memberID)
	}
	return customError.WrapStorageError(err)
}

// MatchMember matches q as a case-insensitive substring of the membership
// number, names or email.
func MatchMember(q string) domain.MemberFilter {
	q = strings.ToLower(strings.TrimSpace(q))
	return func(m *domain.Member) bool {
		return contains(m.ID, q) || contains(m.Name, q) || contains(m.FirstName, q) || contains(m.Email, q)
	}
}

func ByStatus(status domain.MemberStatus) domain.MemberFilter {
	return func(m *domain.Member) bool { return m.Status == status }
}

package domain

import "slices"

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "ACTIVE"
	MemberStatusBlocked MemberStatus = "BLOCKED"
)

// Member is a registered borrower keyed by membership number.
type Member struct {
	ID string `json:"member_id" db:"member_id" validate:"required"`
	PersonInfo
	Status      MemberStatus `json:"status" db:"status"`
	History     []string     `json:"history"`
	ActiveLoans []int64      `json:"active_loans"`
}

// MemberFilter selects members; it never mutates them.
type MemberFilter func(*Member) bool

// IsBlocked reports whether the member may not start new loans.
func (m *Member) IsBlocked() bool {
	return m.Status == MemberStatusBlocked
}

// HasActiveLoan reports whether loanID is in the member's active set.
func (m *Member) HasActiveLoan(loanID int64) bool {
	return slices.Contains(m.ActiveLoans, loanID)
}

// Clone returns a deep copy so callers cannot alias stored slices.
func (m *Member) Clone() *Member {
	c := *m
	c.History = slices.Clone(m.History)
	c.ActiveLoans = slices.Clone(m.ActiveLoans)
	return &c
}

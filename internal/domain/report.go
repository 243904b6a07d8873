package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report aggregates counts across the catalog, registry and ledger.
type Report struct {
	TotalBooks     int             `json:"total_books"`
	TotalMembers   int             `json:"total_members"`
	TotalLoans     int             `json:"total_loans"`
	AvailableBooks int             `json:"available_books"`
	ActiveLoans    int             `json:"active_loans"`
	BlockedMembers int             `json:"blocked_members"`
	OverdueLoans   int             `json:"overdue_loans"`
	TotalFines     decimal.Decimal `json:"total_fines"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// OverdueLoan pairs an overdue loan with its fine at report time.
type OverdueLoan struct {
	Loan     *Loan           `json:"loan"`
	DaysLate int             `json:"days_late"`
	Fine     decimal.Decimal `json:"fine"`
}

// Snapshot is the portable form of the whole library used by export/import.
type Snapshot struct {
	Books      []*Book      `json:"books"`
	Members    []*Member    `json:"members"`
	Loans      []*Loan      `json:"loans"`
	Librarians []*Librarian `json:"librarians"`
	ExportedAt time.Time    `json:"exported_at"`
}

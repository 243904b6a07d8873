package domain

import "time"

type LoanStatus string

const (
	LoanStatusActive LoanStatus = "ACTIVE"
	LoanStatusClosed LoanStatus = "CLOSED"
)

// Loan represents a loan entity.
//
// Status is ACTIVE exactly while ReturnDate is nil. DueDate is fixed at creation.
type Loan struct {
	ID         int64      `json:"id" db:"id"`
	MemberID   string     `json:"member_id" db:"member_id"`
	ISBN       string     `json:"isbn" db:"isbn"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
}

// IsActive reports whether the loan has not been returned yet.
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// EndDate is the timestamp overdue status is judged against: now while the
// loan is open, the actual return time once it is closed.
func (l *Loan) EndDate(now time.Time) time.Time {
	if l.ReturnDate != nil {
		return *l.ReturnDate
	}
	return now
}

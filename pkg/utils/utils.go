package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateDueDate returns the due date of a loan started at loanDate.
func CalculateDueDate(loanDate time.Time, loanPeriodDays int) time.Time {
	return loanDate.AddDate(0, 0, loanPeriodDays)
}

// CalendarDate strips the time of day from t as seen in loc.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalendarDaysBetween counts whole calendar days from start to end in loc.
// The result is negative when end falls on an earlier day.
func CalendarDaysBetween(start, end time.Time, loc *time.Location) int {
	from := CalendarDate(start, loc)
	to := CalendarDate(end, loc)
	return int(to.Sub(from).Hours() / 24)
}

// DaysLate is CalendarDaysBetween clamped at zero.
func DaysLate(dueDate, endDate time.Time, loc *time.Location) int {
	days := CalendarDaysBetween(dueDate, endDate, loc)
	if days < 0 {
		return 0
	}
	return days
}

// CalculateFine returns daysLate * dailyRate rounded to cents.
func CalculateFine(daysLate int, dailyRate decimal.Decimal) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(daysLate))).Round(2)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

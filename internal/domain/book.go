package domain

import "time"

// Book is a catalog record keyed by ISBN.
//
// Available is only changed by the loan ledger, in lockstep with loan state.
type Book struct {
	ISBN      string    `json:"isbn" db:"isbn" validate:"required"`
	Title     string    `json:"title" db:"title" validate:"required"`
	Author    string    `json:"author" db:"author" validate:"required"`
	Publisher string    `json:"publisher" db:"publisher"`
	Year      int       `json:"year" db:"year" validate:"gte=0"`
	Category  string    `json:"category" db:"category"`
	PageCount int       `json:"page_count" db:"page_count" validate:"gte=0"`
	Available bool      `json:"available" db:"available"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BookFilter selects books; it never mutates them.
type BookFilter func(*Book) bool

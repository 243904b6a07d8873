package domain

import "fmt"

// PersonInfo is the contact data shared by members and librarians.
type PersonInfo struct {
	Name      string `json:"name" db:"name" validate:"required"`
	FirstName string `json:"first_name" db:"first_name"`
	Email     string `json:"email" db:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" db:"phone"`
}

// DisplayName renders "First Last (email)".
func (p PersonInfo) DisplayName() string {
	if p.FirstName == "" {
		return fmt.Sprintf("%s (%s)", p.Name, p.Email)
	}
	return fmt.Sprintf("%s %s (%s)", p.FirstName, p.Name, p.Email)
}

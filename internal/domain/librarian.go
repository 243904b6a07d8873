package domain

const (
	AccessLevelStandard = "standard"
	AccessLevelAdmin    = "admin"
)

// Librarian is a staff record; its matricule doubles as the account username.
type Librarian struct {
	Matricule string `json:"matricule" db:"matricule" validate:"required"`
	PersonInfo
	AccessLevel string `json:"access_level" db:"access_level" validate:"omitempty,oneof=standard admin"`
}

// Account holds a bcrypt password hash for a username.
type Account struct {
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
}

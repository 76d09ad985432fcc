package auth

import "time"

// Account represents a local user account. The role name points into the
// upstream catalog; the account record itself never carries permissions.
type Account struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

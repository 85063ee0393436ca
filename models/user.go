package models

import "time"

type UserRole string

const (
	RolePlayer   UserRole = "player"
	RoleOfficial UserRole = "tournament_official"
	RoleAdmin    UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RolePlayer, RoleOfficial, RoleAdmin:
		return true
	}
	return false
}

// CanOfficiate reports whether the role may create tournaments and take the official seat.
func (r UserRole) CanOfficiate() bool {
	return r == RoleOfficial || r == RoleAdmin
}

type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Role         UserRole  `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

package models

import (
	"time"
)

// Role is the coarse authorization level of a user
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

type User struct {
	ID            string
	Email         string
	PasswordHash  string // empty for OAuth-only users
	IsActive      bool
	IsVerified    bool
	Role          Role
	OAuthProvider string // "google", "github"
	OAuthID       string // subject id at the provider
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether the user can authenticate with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsFederated reports whether the user is linked to an OAuth provider
func (u *User) IsFederated() bool {
	return u.OAuthProvider != "" && u.OAuthID != ""
}

// UserStats aggregates user counts for the admin dashboard
type UserStats struct {
	Total     int64
	Active    int64
	Federated int64
	NewSince  int64
}

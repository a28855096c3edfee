package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes the purpose a signed token was minted for
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
	TokenKindReset   TokenKind = "reset"
)

func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindAccess, TokenKindRefresh, TokenKindReset:
		return true
	}
	return false
}

// TokenClaims is the payload carried by every signed token.
// The subject (user id) lives in RegisteredClaims.Subject.
type TokenClaims struct {
	Type TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the token subject
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// RefreshToken is the persisted record of an issued refresh token.
// Records are never deleted; IsRevoked only ever moves from false to true.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}

// PasswordResetToken is the persisted record of an issued reset token.
// IsUsed only ever moves from false to true.
type PasswordResetToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

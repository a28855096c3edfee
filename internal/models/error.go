package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Authentication errors. Messages are safe to return to clients.
var (
	// ErrInvalidCredentials is shared by unknown-email, wrong-password and
	// inactive-account failures so callers cannot enumerate accounts.
	ErrInvalidCredentials  = errors.New("Invalid email or password")
	ErrTokenExpired        = errors.New("token has expired")
	ErrTokenInvalid        = errors.New("token is invalid")
	ErrUserNotFound        = errors.New("User not found")
	ErrDuplicateEmail      = errors.New("Email already registered")
	ErrValidation          = errors.New("validation failed")
	ErrFederation          = errors.New("identity federation failed")
	ErrUnsupportedProvider = errors.New("Unsupported OAuth provider")
)

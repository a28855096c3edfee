package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey is the key for storing access-token claims in context
	ClaimsContextKey contextKey = "claims"
	// UserContextKey is the key for storing the loaded user in context
	UserContextKey contextKey = "user"
)

// AccessTokenVerifier validates access tokens. *TokenCodec satisfies it.
type AccessTokenVerifier interface {
	DecodeKind(token string, kind models.TokenKind) (*models.TokenClaims, error)
}

// UserRepository interface for fetching user data
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}

// Authenticate validates the bearer access token and injects its claims into
// the request context. Refresh and reset tokens are rejected.
func Authenticate(verifier AccessTokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := verifier.DecodeKind(tokenString, models.TokenKindAccess)
			if err != nil {
				if errors.Is(err, models.ErrTokenExpired) {
					pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeTokenExpired, "Token has expired")
					return
				}
				pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeTokenInvalid, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RolePredicate decides whether a role may access a resource
type RolePredicate func(models.Role) bool

// AnyOf allows any of the listed roles
func AnyOf(roles ...models.Role) RolePredicate {
	return func(role models.Role) bool {
		for _, allowed := range roles {
			if role == allowed {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate
func Not(pred RolePredicate) RolePredicate {
	return func(role models.Role) bool {
		return !pred(role)
	}
}

// And requires every predicate to hold
func And(preds ...RolePredicate) RolePredicate {
	return func(role models.Role) bool {
		for _, pred := range preds {
			if !pred(role) {
				return false
			}
		}
		return true
	}
}

// Authenticated admits every role
func Authenticated() RolePredicate {
	return func(models.Role) bool { return true }
}

// Require loads the current user (must run after Authenticate) and admits the
// request only if the user is active and its role satisfies pred.
// The user's role is read from storage on every request, so role changes and
// deactivation apply immediately to tokens already issued.
func Require(users UserRepository, pred RolePredicate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID())
			if err != nil {
				if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrUserNotFound) {
					pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeTokenInvalid, "Invalid token")
					return
				}
				pkghttp.WriteInternalError(w)
				return
			}

			if !user.IsActive {
				pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeTokenInvalid, "Invalid token")
				return
			}

			if !pred(user.Role) {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext extracts access-token claims from request context
func GetClaimsFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetUserFromContext extracts the user loaded by Require
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

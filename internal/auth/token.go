package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/authgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAlgorithm is used when no signing algorithm is configured
const DefaultAlgorithm = "HS256"

var hmacMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenCodec signs and verifies typed, expiring tokens with a symmetric secret.
// It is safe for concurrent use; all fields are read-only after construction.
type TokenCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// NewTokenCodec creates a codec for the given secret and HMAC algorithm name
func NewTokenCodec(secret, algorithm string) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	method, ok := hmacMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}

	return &TokenCodec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads time from now
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	clone := *c
	clone.now = now
	return &clone
}

// Encode mints a signed token of the given kind for subjectID, expiring after ttl
func (c *TokenCodec) Encode(subjectID string, kind models.TokenKind, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("token subject is required")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("unknown token kind: %q", kind)
	}

	now := c.now()
	claims := &models.TokenClaims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(), // unique even when minted in the same second
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return tokenString, nil
}

// Decode verifies a token and returns its claims.
// A correctly signed token past its expiry yields models.ErrTokenExpired; every
// other failure yields models.ErrTokenInvalid.
func (c *TokenCodec) Decode(tokenString string) (*models.TokenClaims, error) {
	if tokenString == "" {
		return nil, models.ErrTokenInvalid
	}

	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		// jwt/v5 checks the signature before claims, so an expiry error means the signature held
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", models.ErrTokenInvalid)
	}
	if !claims.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", models.ErrTokenInvalid, claims.Type)
	}

	return claims, nil
}

// DecodeKind decodes a token and additionally requires it to be of the given kind
func (c *TokenCodec) DecodeKind(tokenString string, kind models.TokenKind) (*models.TokenClaims, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %s", models.ErrTokenInvalid, kind, claims.Type)
	}

	return claims, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
)

// RefreshTokenRepository persists issued refresh tokens
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Consume(ctx context.Context, token string, now time.Time) (string, error)
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// PasswordResetRepository persists issued password reset tokens
type PasswordResetRepository interface {
	ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) error
	Consume(ctx context.Context, token string, now time.Time) (string, error)
}

// TokenTTLs holds the lifetime of each token kind
type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Reset   time.Duration
}

// TokenStore mints tokens and tracks the persisted ones. Refresh and reset
// tokens must pass two independent checks to be redeemed: the codec's
// signature and expiry, and a live record in storage.
type TokenStore struct {
	codec   *auth.TokenCodec
	refresh RefreshTokenRepository
	resets  PasswordResetRepository
	ttl     TokenTTLs
	logger  *slog.Logger
	now     func() time.Time
}

func NewTokenStore(codec *auth.TokenCodec, refresh RefreshTokenRepository, resets PasswordResetRepository, ttl TokenTTLs, logger *slog.Logger) *TokenStore {
	return &TokenStore{
		codec:   codec,
		refresh: refresh,
		resets:  resets,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// IssueAccess mints a stateless access token. Nothing is persisted.
func (s *TokenStore) IssueAccess(userID string) (string, error) {
	return s.codec.Encode(userID, models.TokenKindAccess, s.ttl.Access)
}

// IssueRefresh mints a refresh token and stores a live record for it
func (s *TokenStore) IssueRefresh(ctx context.Context, userID string) (string, error) {
	token, err := s.codec.Encode(userID, models.TokenKindRefresh, s.ttl.Refresh)
	if err != nil {
		return "", err
	}

	record := &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl.Refresh),
	}
	if err := s.refresh.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return token, nil
}

// RedeemRefresh verifies a refresh token and revokes its record in one
// conditional update. Of several concurrent redemptions of the same token at
// most one succeeds; the rest get models.ErrTokenExpired.
func (s *TokenStore) RedeemRefresh(ctx context.Context, token string) (string, error) {
	claims, err := s.codec.DecodeKind(token, models.TokenKindRefresh)
	if err != nil {
		return "", err
	}

	userID, err := s.refresh.Consume(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Unknown, revoked and store-expired are reported alike
			return "", models.ErrTokenExpired
		}
		return "", fmt.Errorf("failed to consume refresh token: %w", err)
	}

	if userID != claims.UserID() {
		s.logger.Warn("refresh token subject does not match stored owner", slog.String("user_id", userID))
		return "", models.ErrTokenInvalid
	}

	return userID, nil
}

// RevokeRefresh revokes one refresh token. Revoking an unknown or already
// revoked token is not an error.
func (s *TokenStore) RevokeRefresh(ctx context.Context, token string) error {
	if _, err := s.refresh.Revoke(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllRefresh revokes every live refresh token of userID
func (s *TokenStore) RevokeAllRefresh(ctx context.Context, userID string) (int64, error) {
	n, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return n, nil
}

// IssueReset marks every unused reset token of userID used and stores a new
// one, so at most one reset token per user is redeemable at a time.
func (s *TokenStore) IssueReset(ctx context.Context, userID string) (string, error) {
	var lastErr error

	// A concurrent issue for the same user can trip the one-unused-token
	// index; the second attempt supersedes whichever token won.
	for attempt := 0; attempt < 2; attempt++ {
		token, err := s.codec.Encode(userID, models.TokenKindReset, s.ttl.Reset)
		if err != nil {
			return "", err
		}

		record := &models.PasswordResetToken{
			Token:     token,
			UserID:    userID,
			ExpiresAt: s.now().Add(s.ttl.Reset),
		}
		lastErr = s.resets.ReplaceForUser(ctx, record)
		if lastErr == nil {
			return token, nil
		}
		if !errors.Is(lastErr, models.ErrConflict) {
			break
		}
	}

	return "", fmt.Errorf("failed to store reset token: %w", lastErr)
}

// RedeemReset verifies a reset token and marks its record used in one
// conditional update.
func (s *TokenStore) RedeemReset(ctx context.Context, token string) (string, error) {
	claims, err := s.codec.DecodeKind(token, models.TokenKindReset)
	if err != nil {
		return "", err
	}

	userID, err := s.resets.Consume(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrTokenExpired
		}
		return "", fmt.Errorf("failed to consume reset token: %w", err)
	}

	if userID != claims.UserID() {
		s.logger.Warn("reset token subject does not match stored owner", slog.String("user_id", userID))
		return "", models.ErrTokenInvalid
	}

	return userID, nil
}

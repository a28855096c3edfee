package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/federation"
	"github.com/BradenHooton/authgate/internal/models"
	pkgauth "github.com/BradenHooton/authgate/pkg/auth"
	pkglogger "github.com/BradenHooton/authgate/pkg/logger"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
)

var emailValidator = validator.New()

// TokenPair is the credential bundle returned by every successful sign-in
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AuthResult is a token pair plus the user it was issued to
type AuthResult struct {
	TokenPair
	User *models.User
}

// AuthService handles authentication business logic
type AuthService struct {
	users       UserRepository
	tokens      *TokenStore
	hasher      *pkgauth.Hasher
	providers   *federation.Registry
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	tokens *TokenStore,
	hasher *pkgauth.Hasher,
	providers *federation.Registry,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	if providers == nil {
		providers = federation.NewRegistry()
	}
	return &AuthService{
		users:       users,
		tokens:      tokens,
		hasher:      hasher,
		providers:   providers,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password user with role user and an unverified email
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if err := emailValidator.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrValidation)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventRegister,
			Email:         email,
			Success:       false,
			FailureReason: "duplicate_email",
		})
		return nil, models.ErrDuplicateEmail
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   false,
		Role:         models.RoleUser,
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same email
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegister,
		UserID:    user.ID,
		Success:   true,
	})

	return user, nil
}

// Login verifies a password and issues a token pair. Unknown email, wrong
// password, password-less account and inactive account all return
// models.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user by email: %w", err)
		}
		s.hasher.VerifyDummy(password)
		s.loginFailed(ctx, "", email, "unknown_email")
		return nil, models.ErrInvalidCredentials
	}

	if !user.HasPassword() {
		s.hasher.VerifyDummy(password)
		s.loginFailed(ctx, user.ID, email, "no_password")
		return nil, models.ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.loginFailed(ctx, user.ID, email, "invalid_password")
		return nil, models.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.loginFailed(ctx, user.ID, email, "inactive")
		return nil, models.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.ID,
		Success:   true,
	})

	return &AuthResult{TokenPair: *pair, User: user}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email, reason string) {
	s.logger.Info("login failed: invalid credentials")
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLogin,
		UserID:        userID,
		Email:         email,
		Success:       false,
		FailureReason: reason,
	})
}

// Refresh redeems a refresh token and rotates it. The presented token is
// revoked even if the new pair is never used.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokens.RedeemRefresh(ctx, refreshToken)
	if err != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventRefresh,
			Success:       false,
			FailureReason: failureReason(err),
		})
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, models.ErrTokenInvalid
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRefresh,
		UserID:    user.ID,
		Success:   true,
	})

	return pair, nil
}

// RequestPasswordReset issues a reset token for the account behind email.
// Delivering the token is left to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user by email: %w", err)
	}

	token, err := s.tokens.IssueReset(ctx, user.ID)
	if err != nil {
		return "", err
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordResetRequest,
		UserID:    user.ID,
		Success:   true,
	})

	return token, nil
}

// CompletePasswordReset redeems a reset token, stores the new password hash
// and ends every existing session of the user.
func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	userID, err := s.tokens.RedeemReset(ctx, token)
	if err != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventPasswordReset,
			Success:       false,
			FailureReason: failureReason(err),
		})
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTokenInvalid
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	revoked, err := s.tokens.RevokeAllRefresh(ctx, userID)
	if err != nil {
		// The password is already changed; surface the failure so the caller retries logout-all
		return err
	}

	s.logger.Info("password reset completed", slog.String("user_id", userID), slog.Int64("sessions_revoked", revoked))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordReset,
		UserID:    userID,
		Success:   true,
	})

	return nil
}

// OAuthAuthCodeURL returns the consent URL for provider carrying state
func (s *AuthService) OAuthAuthCodeURL(providerName, state string) (string, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	return provider.AuthCodeURL(state), nil
}

// OAuthLogin exchanges an authorization code with provider and signs the
// resulting identity in
func (s *AuthService) OAuthLogin(ctx context.Context, providerName, code string) (*AuthResult, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		s.oauthFailed(ctx, providerName, err)
		return nil, err
	}

	return s.oauthSignIn(ctx, provider, token)
}

// OAuthLoginWithToken signs in with a provider access token the caller already holds
func (s *AuthService) OAuthLoginWithToken(ctx context.Context, providerName string, token *oauth2.Token) (*AuthResult, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	return s.oauthSignIn(ctx, provider, token)
}

func (s *AuthService) oauthSignIn(ctx context.Context, provider federation.Provider, token *oauth2.Token) (*AuthResult, error) {
	identity, err := provider.FetchIdentity(ctx, token)
	if err != nil {
		s.oauthFailed(ctx, provider.Name(), err)
		return nil, err
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("%w by %s", federation.ErrMissingEmail, provider.Name())
	}

	user, err := s.findOrCreateFederatedUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		s.loginFailed(ctx, user.ID, identity.Email, "inactive")
		return nil, models.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventOAuthLogin,
		UserID:    user.ID,
		Provider:  provider.Name(),
		Success:   true,
	})

	return &AuthResult{TokenPair: *pair, User: user}, nil
}

// findOrCreateFederatedUser resolves identity to a user: first by the
// (provider, subject) pair, then by email, linking the provider to an existing
// account that has none, and otherwise by creating a verified password-less
// account.
func (s *AuthService) findOrCreateFederatedUser(ctx context.Context, identity *federation.Identity) (*models.User, error) {
	user, err := s.lookupFederatedUser(ctx, identity)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	created, err := s.users.Create(ctx, &models.User{
		Email:         NormalizeEmail(identity.Email),
		IsActive:      true,
		IsVerified:    true,
		Role:          models.RoleUser,
		OAuthProvider: identity.Provider,
		OAuthID:       identity.Subject,
	})
	if err != nil {
		if !errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("failed to create oauth user: %w", err)
		}
		// A concurrent sign-in took the email or the identity; use the winner's row
		user, err := s.lookupFederatedUser(ctx, identity)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s identity conflicts with an existing account", models.ErrFederation, identity.Provider)
		}
		return user, err
	}

	s.logger.Info("oauth user created", slog.String("user_id", created.ID), slog.String("provider", identity.Provider))
	return created, nil
}

// lookupFederatedUser returns models.ErrNotFound when neither the identity nor
// the email is known
func (s *AuthService) lookupFederatedUser(ctx context.Context, identity *federation.Identity) (*models.User, error) {
	user, err := s.users.GetByOAuthIdentity(ctx, identity.Provider, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user by oauth identity: %w", err)
	}

	user, err = s.users.GetByEmail(ctx, NormalizeEmail(identity.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if user.OAuthProvider != "" {
		return user, nil
	}

	user.OAuthProvider = identity.Provider
	user.OAuthID = identity.Subject
	linked, err := s.users.Update(ctx, user.ID, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: %s identity already linked to another account", models.ErrFederation, identity.Provider)
		}
		return nil, fmt.Errorf("failed to link %s identity: %w", identity.Provider, err)
	}

	s.logger.Info("linked oauth identity", slog.String("user_id", linked.ID), slog.String("provider", identity.Provider))
	return linked, nil
}

func (s *AuthService) oauthFailed(ctx context.Context, provider string, err error) {
	s.logger.Warn("oauth login failed", slog.String("provider", provider), slog.Any("error", err))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventOAuthLogin,
		Provider:      provider,
		Success:       false,
		FailureReason: failureReason(err),
	})
}

// Logout revokes a single refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.RevokeRefresh(ctx, refreshToken); err != nil {
		return err
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{EventType: pkglogger.EventLogout})
	return nil
}

// LogoutAll revokes every refresh token of userID. Access tokens already
// issued stay valid until they expire.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	revoked, err := s.tokens.RevokeAllRefresh(ctx, userID)
	if err != nil {
		return err
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogoutAll,
		UserID:    userID,
		Metadata:  map[string]string{"revoked": fmt.Sprint(revoked)},
	})
	return nil
}

// AuthenticateAccessToken validates an access token without touching storage
func (s *AuthService) AuthenticateAccessToken(token string) (*models.TokenClaims, error) {
	return s.tokens.codec.DecodeKind(token, models.TokenKindAccess)
}

// Codec exposes the token codec for request authentication middleware
func (s *AuthService) Codec() *auth.TokenCodec {
	return s.tokens.codec
}

func (s *AuthService) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefresh(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, models.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, models.ErrFederation):
		return "federation"
	default:
		return "internal"
	}
}

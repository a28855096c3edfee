package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/authgate/internal/models"
	pkglogger "github.com/BradenHooton/authgate/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOAuthIdentity(ctx context.Context, provider, subject string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// SessionRevoker ends every session of a user. *TokenStore satisfies it.
type SessionRevoker interface {
	RevokeAllRefresh(ctx context.Context, userID string) (int64, error)
}

// UserService handles user business logic
type UserService struct {
	repo        UserRepository
	sessions    SessionRevoker
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, sessions SessionRevoker, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		sessions:    sessions,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", id))
			return nil, models.ErrUserNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return user, nil
}

// ListUsers retrieves a list of users with pagination
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return users, nil
}

// UpdateRole changes the role of a user. The change applies to requests made
// with access tokens issued before it.
func (s *UserService) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrValidation, role)
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := user.Role
	user.Role = role

	updated, err := s.repo.Update(ctx, id, user)
	if err != nil {
		s.logger.Error("failed to update role", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user role updated", slog.String("user_id", id), slog.String("role", string(role)))
	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRoleChange,
		UserID:    id,
		Metadata:  map[string]string{"from": string(previous), "to": string(role)},
	})

	return updated, nil
}

// SetActive activates or deactivates a user. Deactivation also revokes every
// live refresh token of the user.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	user.IsActive = active

	updated, err := s.repo.Update(ctx, id, user)
	if err != nil {
		s.logger.Error("failed to update activation", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	metadata := map[string]string{"active": fmt.Sprint(active)}
	if !active {
		revoked, err := s.sessions.RevokeAllRefresh(ctx, id)
		if err != nil {
			s.logger.Error("failed to revoke sessions of deactivated user", slog.String("user_id", id), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		metadata["sessions_revoked"] = fmt.Sprint(revoked)
	}

	s.logger.Info("user activation updated", slog.String("user_id", id), slog.Bool("active", active))
	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventActivationChange,
		UserID:    id,
		Metadata:  metadata,
	})

	return updated, nil
}

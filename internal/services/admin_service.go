package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/models"
)

// AdminUserRepository is the subset of user storage needed by AdminService.
type AdminUserRepository interface {
	Stats(ctx context.Context, since time.Time) (*models.UserStats, error)
	CountByRole(ctx context.Context) (map[models.Role]int64, error)
}

// DashboardStatsResponse contains aggregate admin metrics.
type DashboardStatsResponse struct {
	TotalUsers     int64            `json:"total_users"`
	ActiveUsers    int64            `json:"active_users"`
	InactiveUsers  int64            `json:"inactive_users"`
	FederatedUsers int64            `json:"federated_users"`
	NewUsersToday  int64            `json:"new_users_today"`
	RoleBreakdown  map[string]int64 `json:"role_breakdown"`
}

// AdminService aggregates data for admin dashboard endpoints.
type AdminService struct {
	userRepo AdminUserRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(userRepo AdminUserRepository, logger *slog.Logger) *AdminService {
	return &AdminService{
		userRepo: userRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// GetDashboardStats returns aggregate user counts. Every known role appears in
// the breakdown, with zero when nobody holds it.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*DashboardStatsResponse, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)

	stats, err := s.userRepo.Stats(ctx, today)
	if err != nil {
		s.logger.Error("dashboard: failed to count users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	byRole, err := s.userRepo.CountByRole(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to count users by role", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	breakdown := map[string]int64{
		string(models.RoleAdmin): 0,
		string(models.RoleUser):  0,
		string(models.RoleGuest): 0,
	}
	for role, n := range byRole {
		breakdown[string(role)] = n
	}

	return &DashboardStatsResponse{
		TotalUsers:     stats.Total,
		ActiveUsers:    stats.Active,
		InactiveUsers:  stats.Total - stats.Active,
		FederatedUsers: stats.Federated,
		NewUsersToday:  stats.NewSince,
		RoleBreakdown:  breakdown,
	}, nil
}

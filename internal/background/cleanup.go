package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RefreshTokenSweeper marks refresh tokens past their expiry as revoked
type RefreshTokenSweeper interface {
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenSweeper marks unused reset tokens past their expiry as used
type ResetTokenSweeper interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// StatePurger drops expired OAuth state values
type StatePurger interface {
	Purge(ctx context.Context) (int, error)
}

// CleanupManager periodically retires expired refresh tokens, reset tokens
// and OAuth states. Rows are flagged, never deleted.
type CleanupManager struct {
	refresh  RefreshTokenSweeper
	resets   ResetTokenSweeper
	states   StatePurger
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	refresh RefreshTokenSweeper,
	resets ResetTokenSweeper,
	states StatePurger,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		refresh:  refresh,
		resets:   resets,
		states:   states,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single sweep. A failing step is logged and does not
// prevent the others from running.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := cm.now()

	if revoked, err := cm.refresh.RevokeExpired(cleanupCtx, now); err != nil {
		cm.logger.Error("failed to revoke expired refresh tokens", slog.Any("error", err))
	} else if revoked > 0 {
		cm.logger.Info("expired refresh tokens revoked", slog.Int64("count", revoked))
	}

	if expired, err := cm.resets.ExpireStale(cleanupCtx, now); err != nil {
		cm.logger.Error("failed to expire reset tokens", slog.Any("error", err))
	} else if expired > 0 {
		cm.logger.Info("stale reset tokens expired", slog.Int64("count", expired))
	}

	if cm.states == nil {
		return
	}
	if purged, err := cm.states.Purge(cleanupCtx); err != nil {
		cm.logger.Error("failed to purge oauth states", slog.Any("error", err))
	} else if purged > 0 {
		cm.logger.Debug("expired oauth states purged", slog.Int("count", purged))
	}
}

// Stop signals the cleanup manager to stop. It is safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

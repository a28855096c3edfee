package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PasswordResetRepository struct {
	db *database.DB
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// ReplaceForUser invalidates every unused reset token of the user and stores
// the new one in the same transaction, leaving exactly one unused token.
func (r *PasswordResetRepository) ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) error {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()
	token.IsUsed = false

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE password_reset_tokens SET is_used = true WHERE user_id = $1 AND is_used = false`,
			token.UserID,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO password_reset_tokens (id, token, user_id, expires_at, is_used, created_at)
			VALUES ($1, $2, $3, $4, false, $5)
		`, token.ID, token.Token, token.UserID, token.ExpiresAt, token.CreatedAt)
		return database.MapPostgresError(err)
	})
}

// Consume atomically marks a live reset token used and returns its owner.
// Unknown, used, and expired tokens all yield models.ErrNotFound.
func (r *PasswordResetRepository) Consume(ctx context.Context, token string, now time.Time) (string, error) {
	query := `
		UPDATE password_reset_tokens SET is_used = true
		WHERE token = $1 AND is_used = false AND expires_at > $2
		RETURNING user_id
	`

	var userID string
	if err := r.db.Pool.QueryRow(ctx, query, token, now).Scan(&userID); err != nil {
		return "", database.MapPostgresError(err)
	}

	return userID, nil
}

// ExpireStale marks unused tokens past their expiry as used
func (r *PasswordResetRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE password_reset_tokens SET is_used = true WHERE is_used = false AND expires_at <= $1`

	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// ListForUser returns all reset tokens of a user, newest first
func (r *PasswordResetRepository) ListForUser(ctx context.Context, userID string) ([]*models.PasswordResetToken, error) {
	query := `
		SELECT id, token, user_id, expires_at, is_used, created_at
		FROM password_reset_tokens WHERE user_id = $1 ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.PasswordResetToken, error) {
		var t models.PasswordResetToken
		err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.IsUsed, &t.CreatedAt)
		return &t, err
	})
}

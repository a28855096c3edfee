package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: db.Pool}
}

// Create stores a freshly issued refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()
	token.IsRevoked = false

	query := `
		INSERT INTO refresh_tokens (id, token, user_id, expires_at, is_revoked, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
	`

	_, err := r.pool.Exec(ctx, query, token.ID, token.Token, token.UserID, token.ExpiresAt, token.CreatedAt)
	return database.MapPostgresError(err)
}

// Consume atomically revokes a live token and returns its owner.
// Unknown, already revoked, and expired tokens all yield models.ErrNotFound,
// so of any number of concurrent calls with the same token at most one succeeds.
func (r *RefreshTokenRepository) Consume(ctx context.Context, token string, now time.Time) (string, error) {
	query := `
		UPDATE refresh_tokens SET is_revoked = true
		WHERE token = $1 AND is_revoked = false AND expires_at > $2
		RETURNING user_id
	`

	var userID string
	if err := r.pool.QueryRow(ctx, query, token, now).Scan(&userID); err != nil {
		return "", database.MapPostgresError(err)
	}

	return userID, nil
}

// Revoke marks a single token revoked. It reports whether a live token was found.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	query := `UPDATE refresh_tokens SET is_revoked = true WHERE token = $1 AND is_revoked = false`

	result, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// RevokeAllForUser revokes every unrevoked token belonging to userID
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE refresh_tokens SET is_revoked = true WHERE user_id = $1 AND is_revoked = false`

	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// RevokeExpired flags tokens whose expiry has passed. Rows are kept for audit.
func (r *RefreshTokenRepository) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE refresh_tokens SET is_revoked = true WHERE is_revoked = false AND expires_at <= $1`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// GetByToken returns the stored record for token
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, token, user_id, expires_at, is_revoked, created_at
		FROM refresh_tokens WHERE token = $1
	`

	var rt models.RefreshToken
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&rt.ID, &rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.IsRevoked, &rt.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &rt, nil
}

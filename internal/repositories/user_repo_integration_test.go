//go:build integration

package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/authgate/internal/models"
	"github.com/BradenHooton/authgate/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()

	user, err := repositories.NewUserRepository(testDB).Create(context.Background(), &models.User{
		Email:        email,
		PasswordHash: "$2a$04$abcdefghijklmnopqrstuuRandomHashForTestsOnly1234567890",
		IsActive:     true,
		Role:         role,
	})
	require.NoError(t, err)
	return user
}

func TestUserRepository_CreateAndFetch(t *testing.T) {
	cleanupTables(t)
	repo := repositories.NewUserRepository(testDB)
	ctx := context.Background()

	created := seedUser(t, "alice@example.com", "")
	assert.Equal(t, models.RoleUser, created.Role, "role defaults to user")

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)
	assert.True(t, byID.HasPassword())
	assert.False(t, byID.IsFederated())

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserRepository_DuplicateEmailConflicts(t *testing.T) {
	cleanupTables(t)
	seedUser(t, "dup@example.com", models.RoleUser)

	_, err := repositories.NewUserRepository(testDB).Create(context.Background(), &models.User{
		Email:        "dup@example.com",
		PasswordHash: "hash",
		IsActive:     true,
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUserRepository_FederatedUserWithoutPassword(t *testing.T) {
	cleanupTables(t)
	repo := repositories.NewUserRepository(testDB)
	ctx := context.Background()

	user, err := repo.Create(ctx, &models.User{
		Email:         "fed@example.com",
		IsActive:      true,
		IsVerified:    true,
		OAuthProvider: "github",
		OAuthID:       "12345",
	})
	require.NoError(t, err)
	assert.False(t, user.HasPassword())
	assert.True(t, user.IsFederated())

	// Neither a password nor a provider identity
	_, err = repo.Create(ctx, &models.User{Email: "nothing@example.com", IsActive: true})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserRepository_OAuthIdentityIsUnique(t *testing.T) {
	cleanupTables(t)
	repo := repositories.NewUserRepository(testDB)
	ctx := context.Background()

	linked, err := repo.Create(ctx, &models.User{
		Email:         "first@example.com",
		IsActive:      true,
		OAuthProvider: "github",
		OAuthID:       "42",
	})
	require.NoError(t, err)

	found, err := repo.GetByOAuthIdentity(ctx, "github", "42")
	require.NoError(t, err)
	assert.Equal(t, linked.ID, found.ID)

	_, err = repo.GetByOAuthIdentity(ctx, "google", "42")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// A second account cannot claim the same identity, by insert or by link
	_, err = repo.Create(ctx, &models.User{
		Email:         "second@example.com",
		IsActive:      true,
		OAuthProvider: "github",
		OAuthID:       "42",
	})
	assert.ErrorIs(t, err, models.ErrConflict)

	other := seedUser(t, "third@example.com", models.RoleUser)
	other.OAuthProvider = "github"
	other.OAuthID = "42"
	_, err = repo.Update(ctx, other.ID, other)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUserRepository_UpdateAndPassword(t *testing.T) {
	cleanupTables(t)
	repo := repositories.NewUserRepository(testDB)
	ctx := context.Background()
	user := seedUser(t, "bob@example.com", models.RoleUser)

	user.Role = models.RoleAdmin
	user.IsActive = false
	updated, err := repo.Update(ctx, user.ID, user)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.False(t, updated.IsActive)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))
	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", reloaded.PasswordHash)

	err = repo.UpdatePassword(ctx, "00000000-0000-0000-0000-000000000000", "x")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserRepository_ListAndStats(t *testing.T) {
	cleanupTables(t)
	repo := repositories.NewUserRepository(testDB)
	ctx := context.Background()

	seedUser(t, "a@example.com", models.RoleAdmin)
	seedUser(t, "b@example.com", models.RoleUser)
	guest := seedUser(t, "c@example.com", models.RoleGuest)
	guest.IsActive = false
	_, err := repo.Update(ctx, guest.ID, guest)
	require.NoError(t, err)

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := repo.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	stats, err := repo.Stats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, &models.UserStats{Total: 3, Active: 2, Federated: 0, NewSince: 3}, stats)

	byRole, err := repo.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.Role]int64{models.RoleAdmin: 1, models.RoleUser: 1, models.RoleGuest: 1}, byRole)
}

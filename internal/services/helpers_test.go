package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/authgate/internal/federation"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc            func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc         func(ctx context.Context, email string) (*models.User, error)
	GetByOAuthIdentityFunc func(ctx context.Context, provider, subject string) (*models.User, error)
	ListFunc               func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc             func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc             func(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdatePasswordFunc     func(ctx context.Context, id, passwordHash string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByOAuthIdentity(ctx context.Context, provider, subject string) (*models.User, error) {
	if m.GetByOAuthIdentityFunc != nil {
		return m.GetByOAuthIdentityFunc(ctx, provider, subject)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return models.ErrInternalServer
}

// MockProvider implements federation.Provider for testing
type MockProvider struct {
	NameValue         string
	ExchangeFunc      func(ctx context.Context, code string) (*oauth2.Token, error)
	FetchIdentityFunc func(ctx context.Context, token *oauth2.Token) (*federation.Identity, error)
}

func (m *MockProvider) Name() string {
	return m.NameValue
}

func (m *MockProvider) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (m *MockProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return &oauth2.Token{AccessToken: "provider-token"}, nil
}

func (m *MockProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*federation.Identity, error) {
	if m.FetchIdentityFunc != nil {
		return m.FetchIdentityFunc(ctx, token)
	}
	return nil, models.ErrFederation
}

// MemoryUserRepository is an in-memory UserRepository with unique email and
// (provider, subject) indexes
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryUserRepository) GetByOAuthIdentity(_ context.Context, provider, subject string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if provider != "" && user.OAuthProvider == provider && user.OAuthID == subject {
			copied := *user
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

// identityTaken reports whether another user already holds the identity of user
func (r *MemoryUserRepository) identityTaken(id string, user *models.User) bool {
	if user.OAuthProvider == "" {
		return false
	}
	for _, existing := range r.users {
		if existing.ID != id && existing.OAuthProvider == user.OAuthProvider && existing.OAuthID == user.OAuthID {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*models.User, 0, len(r.users))
	for _, user := range r.users {
		copied := *user
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })

	if offset >= len(all) {
		return []*models.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return nil, models.ErrConflict
		}
	}
	if r.identityTaken("", user) {
		return nil, models.ErrConflict
	}

	created := *user
	created.ID = uuid.New().String()
	if created.Role == "" {
		created.Role = models.RoleUser
	}
	now := time.Now()
	created.CreatedAt = now
	created.UpdatedAt = now
	r.users[created.ID] = &created

	result := created
	return &result, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id string, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if r.identityTaken(id, user) {
		return nil, models.ErrConflict
	}
	existing.IsActive = user.IsActive
	existing.IsVerified = user.IsVerified
	existing.Role = user.Role
	existing.OAuthProvider = user.OAuthProvider
	existing.OAuthID = user.OAuthID
	existing.UpdatedAt = time.Now()

	result := *existing
	return &result, nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[id]
	if !ok {
		return models.ErrNotFound
	}
	existing.PasswordHash = passwordHash
	existing.UpdatedAt = time.Now()
	return nil
}

// Count returns the number of stored users
func (r *MemoryUserRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// MemoryRefreshTokenRepository is an in-memory RefreshTokenRepository whose
// Consume behaves like the conditional UPDATE of the SQL repository
type MemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func NewMemoryRefreshTokenRepository() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{tokens: make(map[string]*models.RefreshToken)}
}

func (r *MemoryRefreshTokenRepository) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.Token]; ok {
		return models.ErrConflict
	}
	stored := *token
	stored.ID = uuid.New().String()
	stored.CreatedAt = time.Now()
	r.tokens[token.Token] = &stored
	return nil
}

func (r *MemoryRefreshTokenRepository) Consume(_ context.Context, token string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok || stored.IsRevoked || !stored.ExpiresAt.After(now) {
		return "", models.ErrNotFound
	}
	stored.IsRevoked = true
	return stored.UserID, nil
}

func (r *MemoryRefreshTokenRepository) Revoke(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok || stored.IsRevoked {
		return false, nil
	}
	stored.IsRevoked = true
	return true, nil
}

func (r *MemoryRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, stored := range r.tokens {
		if stored.UserID == userID && !stored.IsRevoked {
			stored.IsRevoked = true
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the stored record for token
func (r *MemoryRefreshTokenRepository) Get(token string) (models.RefreshToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok {
		return models.RefreshToken{}, false
	}
	return *stored, true
}

// Expire moves the expiry of the stored record for token into the past
func (r *MemoryRefreshTokenRepository) Expire(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.tokens[token]; ok {
		stored.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// Live returns the number of unrevoked records of userID
func (r *MemoryRefreshTokenRepository) Live(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, stored := range r.tokens {
		if stored.UserID == userID && !stored.IsRevoked {
			n++
		}
	}
	return n
}

// MemoryPasswordResetRepository is an in-memory PasswordResetRepository
type MemoryPasswordResetRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.PasswordResetToken

	// ReplaceErrs, when non-empty, are returned by successive ReplaceForUser calls
	ReplaceErrs []error
}

func NewMemoryPasswordResetRepository() *MemoryPasswordResetRepository {
	return &MemoryPasswordResetRepository{tokens: make(map[string]*models.PasswordResetToken)}
}

func (r *MemoryPasswordResetRepository) ReplaceForUser(_ context.Context, token *models.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ReplaceErrs) > 0 {
		err := r.ReplaceErrs[0]
		r.ReplaceErrs = r.ReplaceErrs[1:]
		if err != nil {
			return err
		}
	}

	for _, stored := range r.tokens {
		if stored.UserID == token.UserID && !stored.IsUsed {
			stored.IsUsed = true
		}
	}
	stored := *token
	stored.ID = uuid.New().String()
	stored.CreatedAt = time.Now()
	r.tokens[token.Token] = &stored
	return nil
}

func (r *MemoryPasswordResetRepository) Consume(_ context.Context, token string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok || stored.IsUsed || !stored.ExpiresAt.After(now) {
		return "", models.ErrNotFound
	}
	stored.IsUsed = true
	return stored.UserID, nil
}

// Expire moves the expiry of the stored record for token into the past
func (r *MemoryPasswordResetRepository) Expire(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.tokens[token]; ok {
		stored.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// Unused returns the number of unused records of userID
func (r *MemoryPasswordResetRepository) Unused(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, stored := range r.tokens {
		if stored.UserID == userID && !stored.IsUsed {
			n++
		}
	}
	return n
}

// NewTestUser creates an active, verified user with role user
func NewTestUser(id, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:         id,
		Email:      email,
		IsActive:   true,
		IsVerified: true,
		Role:       models.RoleUser,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewTestUserWithPassword creates a test user with a password hash
func NewTestUserWithPassword(id, email, passwordHash string) *models.User {
	user := NewTestUser(id, email)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserWithRole creates a test user with the given role
func NewTestUserWithRole(id, email string, role models.Role) *models.User {
	user := NewTestUser(id, email)
	user.Role = role
	return user
}

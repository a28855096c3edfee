package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/BradenHooton/authgate/internal/services"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds access-token claims for userID to the request context
func WithAuthContext(req *http.Request, userID string) *http.Request {
	claims := &models.TokenClaims{
		Type: models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// WithUserContext adds claims and the loaded user, as auth.Require would
func WithUserContext(req *http.Request, user *models.User) *http.Request {
	req = WithAuthContext(req, user.ID)
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	return req.WithContext(ctx)
}

// WithURLParams attaches chi route parameters to the request
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface and OAuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc              func(ctx context.Context, email, password string) (*models.User, error)
	LoginFunc                 func(ctx context.Context, email, password string) (*services.AuthResult, error)
	RefreshFunc               func(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	RequestPasswordResetFunc  func(ctx context.Context, email string) (string, error)
	CompletePasswordResetFunc func(ctx context.Context, token, newPassword string) error
	LogoutFunc                func(ctx context.Context, refreshToken string) error
	LogoutAllFunc             func(ctx context.Context, userID string) error
	OAuthAuthCodeURLFunc      func(provider, state string) (string, error)
	OAuthLoginFunc            func(ctx context.Context, provider, code string) (*services.AuthResult, error)
}

func (m *MockAuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrDuplicateEmail
	}
	return m.RegisterFunc(ctx, email, password)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrTokenInvalid
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if m.RequestPasswordResetFunc == nil {
		return "", models.ErrUserNotFound
	}
	return m.RequestPasswordResetFunc(ctx, email)
}

func (m *MockAuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if m.CompletePasswordResetFunc == nil {
		return models.ErrTokenInvalid
	}
	return m.CompletePasswordResetFunc(ctx, token, newPassword)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, refreshToken)
}

func (m *MockAuthService) LogoutAll(ctx context.Context, userID string) error {
	if m.LogoutAllFunc == nil {
		return nil
	}
	return m.LogoutAllFunc(ctx, userID)
}

func (m *MockAuthService) OAuthAuthCodeURL(provider, state string) (string, error) {
	if m.OAuthAuthCodeURLFunc == nil {
		return "", models.ErrUnsupportedProvider
	}
	return m.OAuthAuthCodeURLFunc(provider, state)
}

func (m *MockAuthService) OAuthLogin(ctx context.Context, provider, code string) (*services.AuthResult, error) {
	if m.OAuthLoginFunc == nil {
		return nil, models.ErrFederation
	}
	return m.OAuthLoginFunc(ctx, provider, code)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetUserFunc    func(ctx context.Context, id string) (*models.User, error)
	ListUsersFunc  func(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateRoleFunc func(ctx context.Context, id string, role models.Role) (*models.User, error)
	SetActiveFunc  func(ctx context.Context, id string, active bool) (*models.User, error)
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrUserNotFound
	}
	return m.GetUserFunc(ctx, id)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, limit, offset)
}

func (m *MockUserService) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if m.UpdateRoleFunc == nil {
		return nil, models.ErrUserNotFound
	}
	return m.UpdateRoleFunc(ctx, id, role)
}

func (m *MockUserService) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	if m.SetActiveFunc == nil {
		return nil, models.ErrUserNotFound
	}
	return m.SetActiveFunc(ctx, id, active)
}

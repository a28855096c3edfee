package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BradenHooton/authgate/internal/handlers"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/BradenHooton/authgate/internal/services"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	"github.com/stretchr/testify/assert"
)

func newAuthHandler(mock *handlers.MockAuthService) *handlers.AuthHandler {
	return handlers.NewAuthHandler(mock, slog.Default())
}

func testPair() services.TokenPair {
	return services.TokenPair{AccessToken: "access", RefreshToken: "refresh", TokenType: "bearer"}
}

func TestRegister_Success(t *testing.T) {
	var gotEmail, gotPassword string
	mock := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password string) (*models.User, error) {
			gotEmail, gotPassword = email, password
			return &models.User{ID: "user-1", Email: email}, nil
		},
	}

	req := handlers.NewTestRequest(t, http.MethodPost, "/register", map[string]string{
		"email": "user@example.com", "password": "SecurePassword123!",
	})
	w := httptest.NewRecorder()
	newAuthHandler(mock).Register(w, req)

	var resp handlers.RegisterResponse
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "user-1", resp.UserID)
	assert.Equal(t, "User registered successfully", resp.Message)
	assert.Equal(t, "user@example.com", gotEmail)
	assert.Equal(t, "SecurePassword123!", gotPassword)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"duplicate email", map[string]string{"email": "a@example.com", "password": "SecurePassword123!"}, models.ErrDuplicateEmail, http.StatusBadRequest, pkghttp.CodeDuplicateEmail},
		{"weak password", map[string]string{"email": "a@example.com", "password": "short"}, fmt.Errorf("%w: invalid password", models.ErrValidation), http.StatusBadRequest, pkghttp.CodeValidation},
		{"missing password", map[string]string{"email": "a@example.com"}, nil, http.StatusBadRequest, pkghttp.CodeValidation},
		{"malformed email", map[string]string{"email": "nope", "password": "SecurePassword123!"}, nil, http.StatusBadRequest, pkghttp.CodeValidation},
		{"internal failure", map[string]string{"email": "a@example.com", "password": "SecurePassword123!"}, errors.New("db exploded"), http.StatusInternalServerError, pkghttp.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mock := &handlers.MockAuthService{
				RegisterFunc: func(ctx context.Context, email, password string) (*models.User, error) {
					called = true
					return nil, tt.serviceErr
				},
			}

			w := httptest.NewRecorder()
			newAuthHandler(mock).Register(w, handlers.NewTestRequest(t, http.MethodPost, "/register", tt.body))

			resp := handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			assert.Equal(t, tt.serviceErr != nil, called)
			assert.NotContains(t, resp.Message, "db exploded")
		})
	}
}

func TestRegister_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	newAuthHandler(&handlers.MockAuthService{}).Register(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, pkghttp.CodeValidation)
}

func TestLogin_Success(t *testing.T) {
	mock := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*services.AuthResult, error) {
			return &services.AuthResult{TokenPair: testPair(), User: &models.User{ID: "user-1"}}, nil
		},
	}

	w := httptest.NewRecorder()
	newAuthHandler(mock).Login(w, handlers.NewTestRequest(t, http.MethodPost, "/login", map[string]string{
		"email": "user@example.com", "password": "SecurePassword123!",
	}))

	var body map[string]interface{}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &body)
	assert.Equal(t, map[string]interface{}{
		"access_token":  "access",
		"refresh_token": "refresh",
		"token_type":    "bearer",
	}, body)
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	mock := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string) (*services.AuthResult, error) {
			return nil, models.ErrInvalidCredentials
		},
	}
	h := newAuthHandler(mock)

	unknown := httptest.NewRecorder()
	h.Login(unknown, handlers.NewTestRequest(t, http.MethodPost, "/login", map[string]string{"email": "ghost@example.com", "password": "whatever1"}))
	wrong := httptest.NewRecorder()
	h.Login(wrong, handlers.NewTestRequest(t, http.MethodPost, "/login", map[string]string{"email": "user@example.com", "password": "whatever1"}))

	a := handlers.AssertErrorResponse(t, unknown, http.StatusUnauthorized, pkghttp.CodeInvalidCredentials)
	b := handlers.AssertErrorResponse(t, wrong, http.StatusUnauthorized, pkghttp.CodeInvalidCredentials)
	assert.Equal(t, a, b)
	assert.Equal(t, "Invalid email or password", a.Message)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"expired", models.ErrTokenExpired, http.StatusUnauthorized, pkghttp.CodeTokenExpired},
		{"invalid", fmt.Errorf("%w: bad signature", models.ErrTokenInvalid), http.StatusUnauthorized, pkghttp.CodeTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockAuthService{
				RefreshFunc: func(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			newAuthHandler(mock).Refresh(w, handlers.NewTestRequest(t, http.MethodPost, "/refresh", map[string]string{"refresh_token": "r"}))

			resp := handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			assert.NotContains(t, resp.Message, "signature")
		})
	}

	t.Run("success", func(t *testing.T) {
		var got string
		mock := &handlers.MockAuthService{
			RefreshFunc: func(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
				got = refreshToken
				pair := testPair()
				return &pair, nil
			},
		}
		w := httptest.NewRecorder()
		newAuthHandler(mock).Refresh(w, handlers.NewTestRequest(t, http.MethodPost, "/refresh", map[string]string{"refresh_token": "old"}))

		var pair services.TokenPair
		handlers.AssertJSONResponse(t, w, http.StatusOK, &pair)
		assert.Equal(t, "old", got)
		assert.Equal(t, testPair(), pair)
	})

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		newAuthHandler(&handlers.MockAuthService{}).Refresh(w, handlers.NewTestRequest(t, http.MethodPost, "/refresh", map[string]string{}))

		resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, pkghttp.CodeValidation)
		assert.Contains(t, resp.Message, "refresh_token")
	})
}

func TestForgotPassword(t *testing.T) {
	mock := &handlers.MockAuthService{
		RequestPasswordResetFunc: func(ctx context.Context, email string) (string, error) {
			if email == "user@example.com" {
				return "reset-token", nil
			}
			return "", models.ErrUserNotFound
		},
	}
	h := newAuthHandler(mock)

	w := httptest.NewRecorder()
	h.ForgotPassword(w, handlers.NewTestRequest(t, http.MethodPost, "/forgot-password", map[string]string{"email": "user@example.com"}))
	var resp handlers.ForgotPasswordResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "reset-token", resp.Token)

	w = httptest.NewRecorder()
	h.ForgotPassword(w, handlers.NewTestRequest(t, http.MethodPost, "/forgot-password", map[string]string{"email": "ghost@example.com"}))
	handlers.AssertErrorResponse(t, w, http.StatusNotFound, pkghttp.CodeUserNotFound)
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"expired token", models.ErrTokenExpired, http.StatusUnauthorized},
		{"invalid token", models.ErrTokenInvalid, http.StatusUnauthorized},
		{"weak password", fmt.Errorf("%w: invalid password", models.ErrValidation), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockAuthService{
				CompletePasswordResetFunc: func(ctx context.Context, token, newPassword string) error {
					assert.Equal(t, "reset-token", token)
					assert.Equal(t, "BrandNewPassword456!", newPassword)
					return tt.err
				},
			}
			w := httptest.NewRecorder()
			newAuthHandler(mock).ResetPassword(w, handlers.NewTestRequest(t, http.MethodPost, "/reset-password", map[string]string{
				"token": "reset-token", "new_password": "BrandNewPassword456!",
			}))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.err == nil {
				assert.Contains(t, w.Body.String(), "Password reset successfully")
			}
		})
	}
}

func TestLogout(t *testing.T) {
	var revoked string
	mock := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return nil
		},
	}

	w := httptest.NewRecorder()
	newAuthHandler(mock).Logout(w, handlers.NewTestRequest(t, http.MethodPost, "/logout", map[string]string{"refresh_token": "r-1"}))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "r-1", revoked)
}

func TestLogoutAll(t *testing.T) {
	var loggedOut string
	mock := &handlers.MockAuthService{
		LogoutAllFunc: func(ctx context.Context, userID string) error {
			loggedOut = userID
			return nil
		},
	}
	h := newAuthHandler(mock)

	w := httptest.NewRecorder()
	h.LogoutAll(w, handlers.WithAuthContext(httptest.NewRequest(http.MethodPost, "/logout-all", nil), "user-7"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user-7", loggedOut)

	w = httptest.NewRecorder()
	h.LogoutAll(w, httptest.NewRequest(http.MethodPost, "/logout-all", nil))
	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, pkghttp.CodeUnauthorized)
}

package routes_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/handlers"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/BradenHooton/authgate/internal/routes"
	"github.com/BradenHooton/authgate/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[string]*models.User

func (s stubUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type stubAdmin struct{}

func (stubAdmin) GetDashboardStats(context.Context) (*services.DashboardStatsResponse, error) {
	return &services.DashboardStatsResponse{RoleBreakdown: map[string]int64{}}, nil
}

type healthy struct{}

func (healthy) HealthCheck(context.Context) error { return nil }

func newRouter(t *testing.T) (chi.Router, *auth.TokenCodec) {
	t.Helper()

	codec, err := auth.NewTokenCodec("routes-test-secret-0123456789abcdef", "HS256")
	require.NoError(t, err)

	users := stubUsers{
		"admin":    {ID: "admin", Role: models.RoleAdmin, IsActive: true},
		"user":     {ID: "user", Role: models.RoleUser, IsActive: true},
		"guest":    {ID: "guest", Role: models.RoleGuest, IsActive: true},
		"disabled": {ID: "disabled", Role: models.RoleAdmin, IsActive: false},
	}

	logger := slog.Default()
	authService := &handlers.MockAuthService{}
	router := routes.NewRouter(routes.Options{Env: "development", Logger: logger}, routes.Dependencies{
		Auth:     handlers.NewAuthHandler(authService, logger),
		OAuth:    handlers.NewOAuthHandler(authService, auth.NewMemoryStateStore(time.Minute), logger),
		Users:    handlers.NewUserHandler(&handlers.MockUserService{}, logger),
		Admin:    handlers.NewAdminHandler(stubAdmin{}, logger),
		Health:   healthy{},
		Verifier: codec,
		UserRepo: users,
	})
	return router, codec
}

func bearer(t *testing.T, codec *auth.TokenCodec, userID string, kind models.TokenKind) string {
	t.Helper()
	token, err := codec.Encode(userID, kind, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRoleMatrix(t *testing.T) {
	router, codec := newRouter(t)

	tests := []struct {
		path  string
		admin int
		user  int
		guest int
	}{
		{"/user-info", http.StatusOK, http.StatusOK, http.StatusOK},
		{"/me", http.StatusOK, http.StatusOK, http.StatusOK},
		{"/admin-only", http.StatusOK, http.StatusForbidden, http.StatusForbidden},
		{"/user-and-admin", http.StatusOK, http.StatusOK, http.StatusForbidden},
		{"/no-guests", http.StatusOK, http.StatusOK, http.StatusForbidden},
		{"/admin/stats", http.StatusOK, http.StatusForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			for userID, want := range map[string]int{"admin": tt.admin, "user": tt.user, "guest": tt.guest} {
				req := httptest.NewRequest(http.MethodGet, routes.APIPrefix+tt.path, nil)
				req.Header.Set("Authorization", bearer(t, codec, userID, models.TokenKindAccess))
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				assert.Equal(t, want, w.Code, "%s as %s", tt.path, userID)
			}
		})
	}
}

func TestProtectedRoutesRejectBadCredentials(t *testing.T) {
	router, codec := newRouter(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"malformed header", "Token abc"},
		{"refresh token as bearer", bearer(t, codec, "admin", models.TokenKindRefresh)},
		{"reset token as bearer", bearer(t, codec, "admin", models.TokenKindReset)},
		{"unknown user", bearer(t, codec, "ghost", models.TokenKindAccess)},
		{"inactive user", bearer(t, codec, "disabled", models.TokenKindAccess)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, routes.APIPrefix+"/user-info", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestHealthAndHeaders(t *testing.T) {
	router, _ := newRouter(t)

	for _, path := range []string{"/health", routes.APIPrefix + "/health"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	}
}

func TestOAuthStartIsPublic(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, routes.APIPrefix+"/oauth/unknown", nil))

	// The default mock rejects every provider
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

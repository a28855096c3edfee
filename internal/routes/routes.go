package routes

import (
	"log/slog"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/handlers"
	middlewareCustom "github.com/BradenHooton/authgate/internal/middleware"
	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// APIPrefix is where the auth API is mounted
const APIPrefix = "/api/v1/auth"

// Options configures the global middleware stack
type Options struct {
	Env            string
	AllowedOrigins []string
	IPConfig       *pkghttp.IPConfig
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Dependencies are the handlers and collaborators the routes are wired to
type Dependencies struct {
	Auth     *handlers.AuthHandler
	OAuth    *handlers.OAuthHandler
	Users    *handlers.UserHandler
	Admin    *handlers.AdminHandler
	Health   handlers.HealthChecker
	Verifier auth.AccessTokenVerifier
	UserRepo auth.UserRepository
}

// NewRouter builds the chi router with the global middleware and every route
func NewRouter(opts Options, deps Dependencies) chi.Router {
	if opts.IPConfig == nil {
		opts.IPConfig = &pkghttp.IPConfig{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: opts.Env}))
	router.Use(middlewareCustom.CORS(opts.AllowedOrigins))
	router.Use(middlewareCustom.ClientContext(opts.IPConfig))
	router.Use(middlewareCustom.SecureLogger(opts.Logger, opts.IPConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.RequestTimeout))

	router.Get("/health", handlers.Health(deps.Health))
	router.Route(APIPrefix, func(r chi.Router) {
		RegisterRoutes(r, deps)
	})

	return router
}

// RegisterRoutes registers the auth API routes relative to its mount point
func RegisterRoutes(router chi.Router, deps Dependencies) {
	// Public routes - no authentication required
	router.Get("/health", handlers.Health(deps.Health))
	router.Post("/register", deps.Auth.Register)
	router.Post("/login", deps.Auth.Login)
	router.Post("/refresh", deps.Auth.Refresh)
	router.Post("/forgot-password", deps.Auth.ForgotPassword)
	router.Post("/reset-password", deps.Auth.ResetPassword)
	router.Post("/logout", deps.Auth.Logout)
	router.Get("/oauth/{provider}", deps.OAuth.Start)
	router.Get("/oauth/{provider}/callback", deps.OAuth.Callback)

	// Protected routes - access token required
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Verifier))

		r.Post("/logout-all", deps.Auth.LogoutAll)

		r.With(auth.Require(deps.UserRepo, auth.Authenticated())).Get("/me", deps.Users.Me)
		r.With(auth.Require(deps.UserRepo, auth.Authenticated())).
			Get("/user-info", handlers.Message("Hello authenticated user"))
		r.With(auth.Require(deps.UserRepo, auth.AnyOf(models.RoleUser, models.RoleAdmin))).
			Get("/user-and-admin", handlers.Message("Hello user or admin"))
		r.With(auth.Require(deps.UserRepo, auth.Not(auth.AnyOf(models.RoleGuest)))).
			Get("/no-guests", handlers.Message("Hello non-guest"))

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(deps.UserRepo, auth.AnyOf(models.RoleAdmin)))
			r.Get("/admin-only", handlers.Message("Hello admin"))
			r.Get("/admin/stats", deps.Admin.GetDashboardStats)
			r.Get("/admin/users", deps.Users.ListUsers)
			r.Get("/admin/users/{id}", deps.Users.GetUser)
			r.Put("/admin/users/{id}/role", deps.Users.UpdateRole)
			r.Put("/admin/users/{id}/active", deps.Users.SetActive)
		})
	})
}

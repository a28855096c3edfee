package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/background"
	"github.com/BradenHooton/authgate/internal/config"
	"github.com/BradenHooton/authgate/internal/database"
	"github.com/BradenHooton/authgate/internal/federation"
	"github.com/BradenHooton/authgate/internal/handlers"
	"github.com/BradenHooton/authgate/internal/models"
	"github.com/BradenHooton/authgate/internal/repositories"
	"github.com/BradenHooton/authgate/internal/routes"
	"github.com/BradenHooton/authgate/internal/services"
	pkgauth "github.com/BradenHooton/authgate/pkg/auth"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	pkglogger "github.com/BradenHooton/authgate/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshRepo := repositories.NewRefreshTokenRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	// Initialize token codec and store
	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm)
	if err != nil {
		logger.Error("failed to initialize token codec", slog.Any("error", err))
		os.Exit(1)
	}

	tokenStore := services.NewTokenStore(codec, refreshRepo, resetRepo, services.TokenTTLs{
		Access:  cfg.Auth.AccessTokenExpiry,
		Refresh: cfg.Auth.RefreshTokenExpiry,
		Reset:   cfg.Auth.ResetTokenExpiry,
	}, logger)

	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// OAuth providers and state
	registry := newFederationRegistry(cfg.OAuth, logger)

	states, closeStates, err := newStateStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize oauth state store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStates()

	// Initialize services
	authService := services.NewAuthService(userRepo, tokenStore, hasher, registry, logger, auditLogger)
	userService := services.NewUserService(userRepo, tokenStore, logger, auditLogger)
	adminService := services.NewAdminService(userRepo, logger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, hasher, cfg.Admin, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := routes.NewRouter(routes.Options{
		Env:            cfg.Server.Env,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IPConfig:       &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies},
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	}, routes.Dependencies{
		Auth:     handlers.NewAuthHandler(authService, logger),
		OAuth:    handlers.NewOAuthHandler(authService, states, logger),
		Users:    handlers.NewUserHandler(userService, logger),
		Admin:    handlers.NewAdminHandler(adminService, logger),
		Health:   db,
		Verifier: codec,
		UserRepo: userRepo,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(refreshRepo, resetRepo, states, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.Any("oauth_providers", registry.Names()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newFederationRegistry registers the providers that have client credentials
func newFederationRegistry(cfg config.OAuthConfig, logger *slog.Logger) *federation.Registry {
	registry := federation.NewRegistry()

	if cfg.Google.Enabled() {
		registry.Register(federation.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI))
	}
	if cfg.GitHub.Enabled() {
		registry.Register(federation.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURI))
	}

	if len(registry.Names()) == 0 {
		logger.Info("no oauth providers configured")
	}
	return registry
}

// newStateStore uses Redis when REDIS_URL is set so that several instances can
// share OAuth states, and an in-process store otherwise
func newStateStore(cfg *config.Config, logger *slog.Logger) (auth.StateStore, func(), error) {
	if cfg.Redis.URL == "" {
		return auth.NewMemoryStateStore(cfg.OAuth.StateTTL), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("oauth state store using redis", slog.String("addr", opts.Addr))

	return auth.NewRedisStateStore(client, cfg.OAuth.StateTTL), func() { _ = client.Close() }, nil
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, hasher *pkgauth.Hasher, cfg config.AdminConfig, logger *slog.Logger) error {
	if cfg.Email == "" || cfg.Password == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	email := services.NormalizeEmail(cfg.Email)

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(cfg.Password); err != nil {
		return fmt.Errorf("admin password rejected: %w", err)
	}

	hashedPassword, err := hasher.Hash(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
		IsActive:     true,
		IsVerified:   true,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

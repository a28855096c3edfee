package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the interface for user business logic
type UserService interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// Request/Response DTOs

// UpdateRoleRequest represents the request body for changing a user's role
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user guest"`
}

// SetActiveRequest represents the request body for (de)activating a user
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// UserResponse represents a user in the HTTP response. The password hash
// never leaves the service.
type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	IsActive      bool   `json:"is_active"`
	IsVerified    bool   `json:"is_verified"`
	OAuthProvider string `json:"oauth_provider,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ListUsersResponse represents a list of users
type ListUsersResponse struct {
	Users  []*UserResponse `json:"users"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Role:          string(user.Role),
		IsActive:      user.IsActive,
		IsVerified:    user.IsVerified,
		OAuthProvider: user.OAuthProvider,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
}

// Me returns the authenticated user (GET /me)
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// Message returns a handler answering with a fixed message. The role checks
// happen in the middleware in front of it.
func Message(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
	}
}

// ListUsers handles GET /admin/users?limit=&offset=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := intQueryParam(r, "limit", 20, 1, 100)
	if err != nil {
		pkghttp.WriteBadRequest(w, "limit: "+err.Error())
		return
	}
	offset, err := intQueryParam(r, "offset", 0, 0, 100000)
	if err != nil {
		pkghttp.WriteBadRequest(w, "offset: "+err.Error())
		return
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response := &ListUsersResponse{
		Users:  make([]*UserResponse, len(users)),
		Limit:  limit,
		Offset: offset,
	}
	for i, user := range users {
		response.Users[i] = userModelToResponse(user)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// GetUser handles GET /admin/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// UpdateRole handles PUT /admin/users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	userID := chi.URLParam(r, "id")
	if actor := auth.GetUserFromContext(r); actor != nil && actor.ID == userID && req.Role != string(models.RoleAdmin) {
		pkghttp.WriteForbidden(w, "Admins cannot demote themselves")
		return
	}

	user, err := h.service.UpdateRole(r.Context(), userID, models.Role(req.Role))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// SetActive handles PUT /admin/users/{id}/active
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	userID := chi.URLParam(r, "id")
	if actor := auth.GetUserFromContext(r); actor != nil && actor.ID == userID && !*req.IsActive {
		pkghttp.WriteForbidden(w, "Admins cannot deactivate themselves")
		return
	}

	user, err := h.service.SetActive(r.Context(), userID, *req.IsActive)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

var errOutOfRange = errors.New("out of range")

// intQueryParam parses an optional integer query parameter within [min, max]
func intQueryParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < min || n > max {
		return 0, errOutOfRange
	}
	return n, nil
}

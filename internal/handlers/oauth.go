package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/authgate/internal/auth"
	"github.com/BradenHooton/authgate/internal/services"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
	"github.com/go-chi/chi/v5"
)

// OAuthServiceInterface defines the federation operations used by OAuthHandler
type OAuthServiceInterface interface {
	OAuthAuthCodeURL(provider, state string) (string, error)
	OAuthLogin(ctx context.Context, provider, code string) (*services.AuthResult, error)
}

// OAuthHandler drives the authorization-code flow against external providers
type OAuthHandler struct {
	service OAuthServiceInterface
	states  auth.StateStore
	logger  *slog.Logger
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(service OAuthServiceInterface, states auth.StateStore, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		service: service,
		states:  states,
		logger:  logger,
	}
}

// Start handles GET /oauth/{provider} by redirecting to the provider's consent
// page with a fresh single-use state
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := h.states.Issue(r.Context(), provider)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	consentURL, err := h.service.OAuthAuthCodeURL(provider, state)
	if err != nil {
		// Drop the state we just issued for a provider we cannot serve
		_, _ = h.states.Consume(r.Context(), state, provider)
		writeServiceError(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, consentURL, http.StatusFound)
}

// Callback handles GET /oauth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Info("oauth consent denied", slog.String("provider", provider), slog.String("reason", providerErr))
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeFederation, "Authorization was denied by the provider")
		return
	}

	state := query.Get("state")
	if state == "" {
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeFederation, "Missing OAuth state")
		return
	}

	ok, err := h.states.Consume(r.Context(), state, provider)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if !ok {
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeFederation, "Invalid or expired OAuth state")
		return
	}

	code := query.Get("code")
	if code == "" {
		pkghttp.WriteBadRequest(w, "code: this field is required")
		return
	}

	result, err := h.service.OAuthLogin(r.Context(), provider, code)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result.TokenPair)
}

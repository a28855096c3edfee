package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/authgate/internal/federation"
	"github.com/BradenHooton/authgate/internal/models"
	pkghttp "github.com/BradenHooton/authgate/pkg/http"
)

// writeServiceError maps a service error to its status and error category.
// Unexpected errors are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeInvalidCredentials, models.ErrInvalidCredentials.Error())
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeTokenExpired, "Token has expired")
	case errors.Is(err, models.ErrTokenInvalid):
		pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeTokenInvalid, "Invalid token")
	case errors.Is(err, models.ErrUserNotFound):
		pkghttp.WriteError(w, http.StatusNotFound, pkghttp.CodeUserNotFound, models.ErrUserNotFound.Error())
	case errors.Is(err, models.ErrDuplicateEmail):
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeDuplicateEmail, models.ErrDuplicateEmail.Error())
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeValidation, clientMessage(err, models.ErrValidation))
	case errors.Is(err, models.ErrUnsupportedProvider):
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeUnsupportedProvider, models.ErrUnsupportedProvider.Error())
	case errors.Is(err, federation.ErrMissingEmail):
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeFederation, clientMessage(err, models.ErrFederation))
	case errors.Is(err, models.ErrFederation):
		// Provider responses can carry URLs and upstream detail; log them only
		logger.Warn("identity federation failed", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeFederation, models.ErrFederation.Error())
	default:
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		pkghttp.WriteInternalError(w)
	}
}

// clientMessage returns the detail wrapped around sentinel ("sentinel: detail"),
// or the sentinel's own text. Errors wrapped any deeper are not exposed.
func clientMessage(err, sentinel error) string {
	prefix := sentinel.Error() + ": "
	if msg := err.Error(); strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return sentinel.Error()
}

package http

import (
	"encoding/json"
	"net/http"
)

// Error categories carried in the "error" field of every error body
const (
	CodeInvalidCredentials  = "InvalidCredentialsError"
	CodeTokenExpired        = "TokenExpiredError"
	CodeTokenInvalid        = "TokenInvalidError"
	CodeUserNotFound        = "UserNotFoundError"
	CodeDuplicateEmail      = "DuplicateEmailError"
	CodeValidation          = "ValidationError"
	CodeFederation          = "FederationError"
	CodeUnsupportedProvider = "UnsupportedProviderError"
	CodeUnauthorized        = "UnauthorizedError"
	CodeForbidden           = "ForbiddenError"
	CodeNotFound            = "NotFoundError"
	CodeInternal            = "InternalError"
)

// GenericInternalMessage is the only message clients see for unexpected failures
const GenericInternalMessage = "An unexpected error occurred"

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error category
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidation, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// WriteInternalError never echoes the underlying failure
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, GenericInternalMessage)
}

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/session"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tollgate.ErrNotFound):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusNotFound, "not_found", "Not found")

	case errors.Is(err, tollgate.ErrInvalidInput):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid input")

	case errors.Is(err, session.ErrUnsupportedProvider):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusBadRequest, "unsupported_provider", "Unsupported identity provider")

	case errors.Is(err, ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")

	case errors.Is(err, ErrForbidden):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusForbidden, "forbidden", "Forbidden")

	case errors.Is(err, tollgate.ErrUnauthorized):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusUnauthorized, "unauthorized", err.Error())

	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

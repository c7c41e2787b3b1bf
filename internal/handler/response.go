package handler

// Response helpers: every handler sends JSON through writeJSON and maps
// domain errors through writeError, so the wire format stays uniform:
//
//	{"error": "conflict", "message": "email already registered"}
//
// Error-to-status mapping lives here and only here. The service layer
// returns apperror values and knows nothing about HTTP; a gRPC or CLI
// front end would map the same errors its own way.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/identity-service/internal/apperror"
)

// ErrorResponse is the standard error body returned by all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "conflict"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code. Headers
// and status must be set before the first body write; this helper keeps
// that ordering in one place.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// errors.Is walks the wrapped chain, so services are free to annotate
// with fmt.Errorf("...: %w", err) on the way up. Anything that doesn't
// match the taxonomy — including apperror.ErrUnavailable — becomes a
// generic 500 whose body never exposes internals.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"
		message := appErr.Message

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrInvalidToken):
			// The reset token, not the session token: a bad session is 401,
			// a bad reset token is a 400 on the reset form.
			status = http.StatusBadRequest
			errorType = "invalid_token"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUnavailable):
			message = "An internal error occurred"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the wire format
// stays identical across endpoints:
//
//	writeJSON(w, r, http.StatusOK, map[string]any{"grades": grades})
//	writeError(w, r, h.logger, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response has the same shape:
//
//	{"error": "forbidden", "message": "Alleen admins hebben toegang"}
//
// "error" is a stable machine code the frontend switches on (redirect to
// login on "unauthorized", show a message on "forbidden"); "message" is the
// Dutch text shown to the user.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/edulearn/portal/internal/apperror"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

const (
	msgInvalidJSON = "Ongeldige JSON"
	msgInternal    = "Er is een interne fout opgetreden"
)

// writeJSON sends data as JSON with the given status.
// render.Status stores the code in the request context; render.JSON writes
// headers, status and body in that order.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

// errorStatus maps an apperror sentinel to its HTTP status and machine code.
//
// THE 401/403 SPLIT:
//
//	ErrUnauthorized, ErrInvalidCredentials → 401 (log in, or log in again)
//	ErrForbidden                           → 403 (logging in won't help)
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to its HTTP response.
//
// Anything that is not an *apperror.AppError is an unexpected failure: it is
// logged with the request id and answered with a generic 500, so SQL, file
// paths or provider responses never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("requestID", requestID(r)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: msgInternal})
		return
	}

	status, code := errorStatus(err)
	if appErr.Cause != nil {
		logger.Warn("upstream failure",
			slog.String("path", r.URL.Path),
			slog.String("requestID", requestID(r)),
			slog.String("error", appErr.Cause.Error()),
		)
	}
	writeJSON(w, r, status, ErrorResponse{Error: code, Message: appErr.Message, Field: appErr.Field})
}

// decodeJSON reads the request body into dst. An empty or malformed body is
// a validation error.
func decodeJSON(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return apperror.ValidationFailed("", msgInvalidJSON)
	}
	return nil
}

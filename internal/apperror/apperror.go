// Package apperror defines the typed errors shared by every layer of the portal.
//
// Services return these; the HTTP layer (handler/response.go) is the only place
// that turns them into status codes. Anything that is NOT an *AppError is treated
// as an unexpected failure and answered with a generic 500.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUpstream           = errors.New("upstream unavailable")
)

// invalidCredentialsMessage is deliberately identical for "unknown user" and
// "wrong password".
const invalidCredentialsMessage = "Ongeldige gebruikersnaam of wachtwoord"

type AppError struct {
	Err     error  // sentinel, used with errors.Is
	Message string // user-facing message (Dutch)
	Field   string // optional: input field that caused the error
	Cause   error  // optional: underlying failure, logged but never sent to clients
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s niet gevonden met id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s bestaat al: %s", resource, value),
	}
}

// Forbidden returns an AppError indicating the caller is known but lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means no identity is present where one is required (401).
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidCredentials is the single login failure. It never says which half
// of the username/password pair was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: invalidCredentialsMessage,
	}
}

// Upstream wraps a failure of an external provider (the AI completion API).
// cause is kept for logging only.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}

package handler

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/service"
)

// AuthHandler serves /auth/*: register, login, logout, me and the password
// lifecycle.
//
// COOKIE OWNERSHIP:
// The service issues and revokes sessions; only this handler touches the
// cookie. secureCookies is true in production so the cookie is HTTPS-only.
type AuthHandler struct {
	svc           *service.AuthService
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, secureCookies: secureCookies, logger: logger}
}

// userResponse is {"user": {...}} or {"user": null}.
type userResponse struct {
	User *model.PublicUser `json:"user"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HandleRegister creates a student account and logs it in.
//
// HTTP: POST /auth/register {username, password}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.Credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, res.Session, h.secureCookies)
	writeJSON(w, r, http.StatusOK, userResponse{User: res.User.Public()})
}

// HandleLogin verifies credentials and sets a fresh session cookie.
//
// HTTP: POST /auth/login {username, password}
//
// Every failure (unknown user, wrong password, empty fields, even a broken
// body) answers the same 401, so the response never tells whether the
// username exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.Credentials
	if err := decodeJSON(r, &in); err != nil {
		in = service.Credentials{}
	}

	res, err := h.svc.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, res.Session, h.secureCookies)
	writeJSON(w, r, http.StatusOK, userResponse{User: res.User.Public()})
}

// HandleLogout revokes the session and clears the cookie.
//
// HTTP: POST /auth/logout
//
// Never fails from the client's point of view: a storage error is logged, the
// cookie is still cleared and the answer is still 200 {}.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), auth.SessionToken(r)); err != nil {
		h.logger.Error("logout: revoking session",
			slog.String("requestID", requestID(r)),
			slog.String("error", err.Error()),
		)
	}
	auth.ClearSessionCookie(w, h.secureCookies)
	writeJSON(w, r, http.StatusOK, struct{}{})
}

// HandleMe returns the current user or {"user": null}. Never 401: the
// frontend calls it on every page load to decide what to render.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, userResponse{User: auth.UserFromContext(r.Context()).Public()})
}

// HandleForgotPassword always answers {success: true} once an email is given.
//
// HTTP: POST /auth/forgot-password {email}
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), in.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{
		Success: true,
		Message: "Als dit email adres bij ons bekend is, ontvang je een reset link",
	})
}

// HandleResetPassword redeems a reset token.
//
// HTTP: POST /auth/reset-password {token, password}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ResetInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	// Any cookie this browser still holds was revoked with the rest.
	auth.ClearSessionCookie(w, h.secureCookies)
	writeJSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Wachtwoord gewijzigd"})
}

// HandleChangePassword replaces the password of the logged-in user and
// re-issues the cookie; all other sessions are logged out.
//
// HTTP: POST /auth/change-password {currentPassword, newPassword}
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in service.ChangePasswordInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	issued, err := h.svc.ChangePassword(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	auth.SetSessionCookie(w, issued, h.secureCookies)
	writeJSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Wachtwoord gewijzigd"})
}

// requestID returns the chi request id, or "" outside the router.
func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}

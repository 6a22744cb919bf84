package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/service"
)

// AccountHandler serves site settings, the user's email address and the
// admin user overview.
type AccountHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

// HandleGetSettings returns {settings: {key: value}}.
//
// HTTP: GET /api/settings
func (h *AccountHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"settings": settings})
}

// HTTP: POST /api/settings {key, value}
func (h *AccountHandler) HandleSaveSetting(w http.ResponseWriter, r *http.Request) {
	var in service.SettingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	setting, err := h.svc.SaveSetting(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"setting": setting})
}

// HTTP: POST /api/settings/email {email}
func (h *AccountHandler) HandleSetEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.SetEmail(r.Context(), auth.UserFromContext(r.Context()), in.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Email opgeslagen"})
}

// HTTP: GET /api/users
func (h *AccountHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users": users})
}

// HandleRevokeSessions logs a user out of every browser (account lockout).
//
// HTTP: POST /api/users/{id}/revoke-sessions
func (h *AccountHandler) HandleRevokeSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RevokeSessions(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "revoked": n})
}

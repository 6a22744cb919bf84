package handler

import (
	"log/slog"
	"net/http"

	"github.com/edulearn/portal/internal/service"
)

type SetupHandler struct {
	svc    *service.SetupService
	logger *slog.Logger
}

func NewSetupHandler(svc *service.SetupService, logger *slog.Logger) *SetupHandler {
	return &SetupHandler{svc: svc, logger: logger}
}

type setupResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	AdminUsername string `json:"adminUsername"`
	AdminCreated  bool   `json:"adminCreated"`
	Subjects      int    `json:"subjects"`
}

// HandleSetup bootstraps the admin account and reference data.
//
// HTTP: POST /setup {secret}
//
// The admin password is never part of the response; it lives only in
// ADMIN_BOOTSTRAP_PASSWORD.
func (h *SetupHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Secret string `json:"secret"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.Run(r.Context(), in.Secret)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg := "Admin wachtwoord opnieuw ingesteld en vakken bijgewerkt"
	if res.AdminCreated {
		msg = "Admin account aangemaakt en vakken toegevoegd"
	}
	writeJSON(w, r, http.StatusOK, setupResponse{
		Success:       true,
		Message:       msg,
		AdminUsername: res.AdminUsername,
		AdminCreated:  res.AdminCreated,
		Subjects:      res.SubjectsSeeded,
	})
}

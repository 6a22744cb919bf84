package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/service"
)

// ProHandler serves Pro upgrade requests.
type ProHandler struct {
	svc    *service.ProService
	logger *slog.Logger
}

func NewProHandler(svc *service.ProService, logger *slog.Logger) *ProHandler {
	return &ProHandler{svc: svc, logger: logger}
}

// HTTP: POST /api/pro/request {message?}
func (h *ProHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var in service.ProRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.svc.Request(r.Context(), auth.UserFromContext(r.Context()), in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true, Message: "Aanvraag verstuurd!"})
}

// HTTP: GET /api/pro/requests?status=pending
func (h *ProHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), auth.UserFromContext(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"requests": list})
}

// HTTP: PATCH /api/pro/requests/{id} {status: approved|rejected}
func (h *ProHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	var in service.ProDecisionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req, err := h.svc.Decide(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"request": req})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/service"
)

// FeedbackHandler serves /api/support and /api/bugs.
type FeedbackHandler struct {
	svc    *service.FeedbackService
	logger *slog.Logger
}

func NewFeedbackHandler(svc *service.FeedbackService, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{svc: svc, logger: logger}
}

// GET /api/support
func (h *FeedbackHandler) HandleListSupport(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.ListSupport(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"messages": msgs})
}

// POST /api/support {message, type?}
func (h *FeedbackHandler) HandleSendSupport(w http.ResponseWriter, r *http.Request) {
	var in service.SupportInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msg, err := h.svc.SendSupport(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"message": msg})
}

// PATCH /api/support/{id} {status}
func (h *FeedbackHandler) HandleUpdateSupport(w http.ResponseWriter, r *http.Request) {
	var in service.SupportStatusInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msg, err := h.svc.UpdateSupportStatus(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"message": msg})
}

// GET /api/bugs
func (h *FeedbackHandler) HandleListBugs(w http.ResponseWriter, r *http.Request) {
	bugs, err := h.svc.ListBugs(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"bugReports": bugs})
}

// HandleReportBug accepts reports from anyone; a logged-in reporter is
// linked to the report.
//
// HTTP: POST /api/bugs {title, description, priority?, reporterName?}
func (h *FeedbackHandler) HandleReportBug(w http.ResponseWriter, r *http.Request) {
	var in service.BugInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bug, err := h.svc.ReportBug(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"bugReport": bug})
}

// PATCH /api/bugs/{id} {status?, priority?}
func (h *FeedbackHandler) HandleUpdateBug(w http.ResponseWriter, r *http.Request) {
	var in service.BugPatch
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bug, err := h.svc.UpdateBug(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"bugReport": bug})
}

// DELETE /api/bugs/{id}
func (h *FeedbackHandler) HandleDeleteBug(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBug(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

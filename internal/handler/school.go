package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/service"
)

// SchoolHandler serves subjects, grades and the agenda.
//
// Every method follows the same three steps: decode, call the service with
// the current user (nil when anonymous), write the result. Permission
// decisions happen in the service.
type SchoolHandler struct {
	svc    *service.SchoolService
	logger *slog.Logger
}

func NewSchoolHandler(svc *service.SchoolService, logger *slog.Logger) *SchoolHandler {
	return &SchoolHandler{svc: svc, logger: logger}
}

// ===== SUBJECTS =====

// GET /api/subjects
func (h *SchoolHandler) HandleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.svc.ListSubjects(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"subjects": subjects})
}

// POST /api/subjects {name, displayName, icon?, color?}
func (h *SchoolHandler) HandleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var in service.SubjectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	subject, err := h.svc.CreateSubject(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"subject": subject})
}

// PUT /api/subjects/{id}
func (h *SchoolHandler) HandleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	var in service.SubjectPatch
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	subject, err := h.svc.UpdateSubject(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"subject": subject})
}

// DELETE /api/subjects/{id}
func (h *SchoolHandler) HandleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSubject(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

// ===== GRADES =====

// GET /api/grades?studentId=
func (h *SchoolHandler) HandleListGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := h.svc.ListGrades(r.Context(), auth.UserFromContext(r.Context()), r.URL.Query().Get("studentId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"grades": grades})
}

// POST /api/grades {subject, testName, grade, maxGrade?, date?, comment?, studentId?}
func (h *SchoolHandler) HandleCreateGrade(w http.ResponseWriter, r *http.Request) {
	var in service.GradeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	grade, err := h.svc.CreateGrade(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"grade": grade})
}

// DELETE /api/grades/{id}
func (h *SchoolHandler) HandleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteGrade(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

// ===== AGENDA =====

// GET /api/agenda?subject=
func (h *SchoolHandler) HandleListAgenda(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAgenda(r.Context(), auth.UserFromContext(r.Context()), r.URL.Query().Get("subject"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"agenda": items})
}

// POST /api/agenda {title, testDate, subject, type?, description?}
func (h *SchoolHandler) HandleCreateAgendaItem(w http.ResponseWriter, r *http.Request) {
	var in service.AgendaInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.svc.CreateAgendaItem(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"agenda": item})
}

// DELETE /api/agenda/{id}
func (h *SchoolHandler) HandleDeleteAgendaItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAgendaItem(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

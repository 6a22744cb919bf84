package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/service"
)

// TimetableHandler serves the weekly schedule ("rooster") and the electives
// ("keuzelessen").
type TimetableHandler struct {
	schedule  *service.ScheduleService
	electives *service.ElectiveService
	logger    *slog.Logger
}

func NewTimetableHandler(schedule *service.ScheduleService, electives *service.ElectiveService, logger *slog.Logger) *TimetableHandler {
	return &TimetableHandler{schedule: schedule, electives: electives, logger: logger}
}

// ===== SCHEDULE =====

// GET /api/schedule
func (h *TimetableHandler) HandleListSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := h.schedule.List(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"schedule": entries})
}

// POST /api/schedule {day, period, subject, room?, teacher?, startTime?, endTime?}
func (h *TimetableHandler) HandleCreateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	var in service.ScheduleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.schedule.Create(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"item": item})
}

// PUT /api/schedule/{id}
func (h *TimetableHandler) HandleUpdateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	var in service.SchedulePatch
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.schedule.Update(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"item": item})
}

// DELETE /api/schedule/{id}
func (h *TimetableHandler) HandleDeleteScheduleEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.schedule.Delete(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

// ===== ELECTIVES =====

// GET /api/keuzelessen?withStudents=true
func (h *TimetableHandler) HandleListElectives(w http.ResponseWriter, r *http.Request) {
	withStudents := r.URL.Query().Get("withStudents") == "true"
	list, err := h.electives.List(r.Context(), auth.UserFromContext(r.Context()), withStudents)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// POST /api/keuzelessen
//
// Two request shapes share this route: {selectKeuzeles: id} toggles the
// caller's enrollment, anything else creates an elective (admin only).
func (h *TimetableHandler) HandleCreateElective(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SelectKeuzeles string `json:"selectKeuzeles"`
		service.ElectiveInput
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor := auth.UserFromContext(r.Context())

	if id := strings.TrimSpace(in.SelectKeuzeles); id != "" {
		h.writeToggle(w, r, id)
		return
	}

	elective, err := h.electives.Create(r.Context(), actor, in.ElectiveInput)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"keuzeles": elective})
}

// POST /api/keuzelessen/{id}/toggle
func (h *TimetableHandler) HandleToggleEnrollment(w http.ResponseWriter, r *http.Request) {
	h.writeToggle(w, r, chi.URLParam(r, "id"))
}

func (h *TimetableHandler) writeToggle(w http.ResponseWriter, r *http.Request, electiveID string) {
	selected, err := h.electives.ToggleEnrollment(r.Context(), auth.UserFromContext(r.Context()), electiveID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"selected": selected})
}

// PUT /api/keuzelessen/{id}
func (h *TimetableHandler) HandleUpdateElective(w http.ResponseWriter, r *http.Request) {
	var in service.ElectivePatch
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	elective, err := h.electives.Update(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"keuzeles": elective})
}

// DELETE /api/keuzelessen/{id}
func (h *TimetableHandler) HandleDeleteElective(w http.ResponseWriter, r *http.Request) {
	if err := h.electives.Delete(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

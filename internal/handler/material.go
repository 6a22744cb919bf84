package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/service"
)

// MaterialHandler serves /api/files. The path keeps its historical name; the
// entries are study materials with text content and an optional external link.
type MaterialHandler struct {
	svc    *service.MaterialService
	logger *slog.Logger
}

func NewMaterialHandler(svc *service.MaterialService, logger *slog.Logger) *MaterialHandler {
	return &MaterialHandler{svc: svc, logger: logger}
}

// HandleList returns {files}, newest first.
//
// HTTP: GET /api/files?subject=
func (h *MaterialHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.List(r.Context(), auth.UserFromContext(r.Context()), r.URL.Query().Get("subject"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"files": files})
}

// HTTP: GET /api/files/{id}
func (h *MaterialHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	file, err := h.svc.Get(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"file": file})
}

// HTTP: POST /api/files {title, description, content, subject?, fileUrl?}
func (h *MaterialHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.MaterialInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	file, err := h.svc.Create(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"file": file})
}

// HTTP: PUT /api/files/{id}
func (h *MaterialHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.MaterialPatch
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	file, err := h.svc.Update(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"file": file})
}

// HTTP: DELETE /api/files/{id}
func (h *MaterialHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Bestand succesvol verwijderd"})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/service"
)

// ChatHandler serves the study assistant and the saved conversations.
type ChatHandler struct {
	chat      *service.ChatService
	histories *service.ChatHistoryService
	logger    *slog.Logger
}

func NewChatHandler(chat *service.ChatService, histories *service.ChatHistoryService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, histories: histories, logger: logger}
}

// HandleAsk forwards a question to the AI provider.
//
// HTTP: POST /api/chat {message, model?, fileId?, agendaId?, subject?, history?}
// Success: {message, model} where model is the one that actually answered.
// When every configured model fails: 502 upstream_error with a retry hint.
func (h *ChatHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var in service.ChatInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	reply, err := h.chat.Ask(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, reply)
}

// HandleModels lists the allow-listed models, default first.
//
// HTTP: GET /api/chat/models
func (h *ChatHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	models := h.chat.Models()
	writeJSON(w, r, http.StatusOK, map[string]any{"models": models, "default": models[0]})
}

// HTTP: GET /api/chat-history
func (h *ChatHandler) HandleListHistories(w http.ResponseWriter, r *http.Request) {
	list, err := h.histories.List(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"histories": list})
}

// HTTP: GET /api/chat-history/{id}
func (h *ChatHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.histories.Get(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"history": hist})
}

// HandleSaveHistory creates a history, or updates the caller's own when the
// body carries an id.
//
// HTTP: POST /api/chat-history {id?, subject?, model?, messages}
func (h *ChatHandler) HandleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var in service.ChatHistoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hist, err := h.histories.Save(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"history": hist})
}

// HTTP: DELETE /api/chat-history/{id}
func (h *ChatHandler) HandleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.histories.Delete(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

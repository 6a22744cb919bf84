package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

const (
	// ChatHistoryLimit caps the sidebar list of saved conversations.
	ChatHistoryLimit = 50

	defaultChatModel = "glm-4.5-air:free"
)

// ChatHistoryService stores conversations with the assistant.
//
// PRIVACY:
// A history belongs to exactly one user. Reading or overwriting someone
// else's history answers NotFound, not Forbidden, so ids of other users'
// conversations are indistinguishable from ids that never existed.
// Deleting follows the self-or-admin gate so admins can clean up.
type ChatHistoryService struct {
	histories repository.ChatHistoryRepository
	logger    *slog.Logger
}

func NewChatHistoryService(histories repository.ChatHistoryRepository, logger *slog.Logger) *ChatHistoryService {
	return &ChatHistoryService{histories: histories, logger: logger}
}

func (s *ChatHistoryService) List(ctx context.Context, actor *model.User) ([]model.ChatHistory, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	list, err := s.histories.ListChatHistories(ctx, actor.ID, ChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("service/chathistory: listing: %w", err)
	}
	return list, nil
}

func (s *ChatHistoryService) Get(ctx context.Context, actor *model.User, id string) (*model.ChatHistory, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	return s.loadOwn(ctx, actor, id)
}

// loadOwn returns the history only when actor owns it.
func (s *ChatHistoryService) loadOwn(ctx context.Context, actor *model.User, id string) (*model.ChatHistory, error) {
	h, err := s.histories.GetChatHistory(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, historyNotFound(id)
		}
		return nil, fmt.Errorf("service/chathistory: loading %s: %w", id, err)
	}
	if h.UserID != actor.ID {
		return nil, historyNotFound(id)
	}
	return h, nil
}

func historyNotFound(id string) error {
	return apperror.NotFound("Chat geschiedenis", id)
}

type ChatHistoryInput struct {
	ID       string              `json:"id"`
	Subject  *string             `json:"subject"`
	Model    string              `json:"model"`
	Messages []model.ChatMessage `json:"messages" validate:"required,min=1" msg:"Berichten zijn vereist"`
}

// Save creates a new history, or replaces the messages of the actor's
// existing one when ID is set.
func (s *ChatHistoryService) Save(ctx context.Context, actor *model.User, in ChatHistoryInput) (*model.ChatHistory, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}

	if id := strings.TrimSpace(in.ID); id != "" {
		h, err := s.loadOwn(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		h.Messages = in.Messages
		h.Subject = optional(in.Subject)
		h.Model = orDefault(in.Model, h.Model)
		if err := s.histories.UpdateChatHistory(ctx, h); err != nil {
			return nil, fmt.Errorf("service/chathistory: updating %s: %w", id, err)
		}
		return h, nil
	}

	h := &model.ChatHistory{
		UserID:   actor.ID,
		Subject:  optional(in.Subject),
		Model:    orDefault(in.Model, defaultChatModel),
		Messages: in.Messages,
	}
	if err := s.histories.CreateChatHistory(ctx, h); err != nil {
		return nil, fmt.Errorf("service/chathistory: creating: %w", err)
	}
	return h, nil
}

// Delete removes a history. Non-admins get Forbidden both for foreign and for
// missing ids.
func (s *ChatHistoryService) Delete(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireUser(actor); err != nil {
		return err
	}

	h, err := s.histories.GetChatHistory(ctx, id)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		if !actor.IsAdmin() {
			return auth.RequireSelfOrAdmin(actor, "")
		}
		return err
	case err != nil:
		return fmt.Errorf("service/chathistory: loading %s: %w", id, err)
	}

	if err := auth.RequireSelfOrAdmin(actor, h.UserID); err != nil {
		return err
	}
	if err := s.histories.DeleteChatHistory(ctx, id); err != nil {
		return fmt.Errorf("service/chathistory: deleting %s: %w", id, err)
	}
	return nil
}

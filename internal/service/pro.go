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

// ProService handles upgrade requests to a Pro account. A student files a
// request; an admin approves or rejects it.
type ProService struct {
	requests repository.ProRequestRepository
	logger   *slog.Logger
}

func NewProService(requests repository.ProRequestRepository, logger *slog.Logger) *ProService {
	return &ProService{requests: requests, logger: logger}
}

type ProRequestInput struct {
	Message *string `json:"message" validate:"omitempty,max=2000" msg:"Bericht is te lang"`
}

// Request files a pending request for the actor. Pro accounts and users
// with a pending request are turned away.
func (s *ProService) Request(ctx context.Context, actor *model.User, in ProRequestInput) (*model.ProRequest, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	if actor.IsPro {
		return nil, apperror.ValidationFailed("", "Je hebt al Pro!")
	}
	if err := check(in); err != nil {
		return nil, err
	}

	r := &model.ProRequest{UserID: actor.ID, Message: optional(in.Message)}
	if err := s.requests.CreateProRequest(ctx, r); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("", "Je hebt al een aanvraag ingediend")
		}
		return nil, fmt.Errorf("service/pro: creating request: %w", err)
	}
	s.logger.Info("pro upgrade requested", slog.String("userID", actor.ID), slog.String("requestID", r.ID))
	return r, nil
}

// List returns requests newest first, filtered by status when not empty.
func (s *ProService) List(ctx context.Context, actor *model.User, status string) ([]model.ProRequest, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.requests.ListProRequests(ctx, strings.TrimSpace(status))
	if err != nil {
		return nil, fmt.Errorf("service/pro: listing requests: %w", err)
	}
	return list, nil
}

type ProDecisionInput struct {
	Status string `json:"status" validate:"required" msg:"Status is vereist"`
}

// Decide approves or rejects a pending request. Approval upgrades the owner.
func (s *ProService) Decide(ctx context.Context, actor *model.User, id string, in ProDecisionInput) (*model.ProRequest, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := check(in); err != nil {
		return nil, err
	}
	if in.Status != model.ProRequestApproved && in.Status != model.ProRequestRejected {
		return nil, apperror.ValidationFailed("status", "Status moet approved of rejected zijn")
	}

	r, err := s.requests.DecideProRequest(ctx, id, in.Status)
	if err != nil {
		return nil, fmt.Errorf("service/pro: deciding request %s: %w", id, err)
	}
	s.logger.Info("pro request decided",
		slog.String("requestID", id),
		slog.String("userID", r.UserID),
		slog.String("status", r.Status),
		slog.String("by", actor.ID),
	)
	return r, nil
}

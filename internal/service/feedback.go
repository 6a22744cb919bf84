package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

const (
	defaultSupportType = "suggestion"
	defaultBugPriority = "medium"
)

// FeedbackService handles support messages and bug reports.
//
// Support messages need an account. Bug reports do not: a visitor who cannot
// log in is exactly who needs to report a bug.
type FeedbackService struct {
	support repository.SupportRepository
	bugs    repository.BugRepository
	logger  *slog.Logger
}

func NewFeedbackService(support repository.SupportRepository, bugs repository.BugRepository, logger *slog.Logger) *FeedbackService {
	return &FeedbackService{support: support, bugs: bugs, logger: logger}
}

// ListSupport returns every message for admins and the actor's own otherwise.
func (s *FeedbackService) ListSupport(ctx context.Context, actor *model.User) ([]model.SupportMessage, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	owner := actor.ID
	if actor.IsAdmin() {
		owner = ""
	}
	list, err := s.support.ListSupportMessages(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("service/feedback: listing support messages: %w", err)
	}
	return list, nil
}

type SupportInput struct {
	Message string `json:"message" validate:"required,max=5000" msg:"Bericht is vereist"`
	Type    string `json:"type" validate:"omitempty,max=32" msg:"Ongeldig type"`
}

func (s *FeedbackService) SendSupport(ctx context.Context, actor *model.User, in SupportInput) (*model.SupportMessage, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	in.Message = strings.TrimSpace(in.Message)
	in.Type = strings.TrimSpace(in.Type)
	if err := check(in); err != nil {
		return nil, err
	}

	m := &model.SupportMessage{
		UserID:  actor.ID,
		Message: in.Message,
		Type:    orDefault(in.Type, defaultSupportType),
	}
	if err := s.support.CreateSupportMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("service/feedback: creating support message: %w", err)
	}
	return m, nil
}

type SupportStatusInput struct {
	Status string `json:"status" validate:"required,max=32" msg:"Status is vereist"`
}

func (s *FeedbackService) UpdateSupportStatus(ctx context.Context, actor *model.User, id string, in SupportStatusInput) (*model.SupportMessage, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Status = strings.TrimSpace(in.Status)
	if err := check(in); err != nil {
		return nil, err
	}
	m, err := s.support.UpdateSupportStatus(ctx, id, in.Status)
	if err != nil {
		return nil, fmt.Errorf("service/feedback: updating support message %s: %w", id, err)
	}
	return m, nil
}

func (s *FeedbackService) ListBugs(ctx context.Context, actor *model.User) ([]model.BugReport, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.bugs.ListBugReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/feedback: listing bug reports: %w", err)
	}
	return list, nil
}

type BugInput struct {
	Title        string  `json:"title" validate:"required,max=200" msg:"Titel en beschrijving zijn vereist"`
	Description  string  `json:"description" validate:"required,max=10000" msg:"Titel en beschrijving zijn vereist"`
	Priority     string  `json:"priority" validate:"omitempty,max=32" msg:"Ongeldige prioriteit"`
	ReporterName *string `json:"reporterName"`
}

// ReportBug files a bug. actor may be nil; when present the report is linked
// to the account.
func (s *FeedbackService) ReportBug(ctx context.Context, actor *model.User, in BugInput) (*model.BugReport, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Priority = strings.TrimSpace(in.Priority)
	if err := check(in); err != nil {
		return nil, err
	}

	b := &model.BugReport{
		Title:        in.Title,
		Description:  in.Description,
		Priority:     orDefault(in.Priority, defaultBugPriority),
		ReporterName: optional(in.ReporterName),
	}
	if actor != nil {
		id := actor.ID
		b.UserID = &id
	}
	if err := s.bugs.CreateBugReport(ctx, b); err != nil {
		return nil, fmt.Errorf("service/feedback: creating bug report: %w", err)
	}
	s.logger.Info("bug reported", slog.String("bugID", b.ID), slog.String("priority", b.Priority))
	return b, nil
}

// BugPatch changes status and/or priority; blank fields keep their value.
type BugPatch struct {
	Status   string `json:"status" validate:"omitempty,max=32" msg:"Ongeldige status"`
	Priority string `json:"priority" validate:"omitempty,max=32" msg:"Ongeldige prioriteit"`
}

func (s *FeedbackService) UpdateBug(ctx context.Context, actor *model.User, id string, p BugPatch) (*model.BugReport, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	p.Status = strings.TrimSpace(p.Status)
	p.Priority = strings.TrimSpace(p.Priority)
	if err := check(p); err != nil {
		return nil, err
	}
	b, err := s.bugs.UpdateBugReport(ctx, id, p.Status, p.Priority)
	if err != nil {
		return nil, fmt.Errorf("service/feedback: updating bug report %s: %w", id, err)
	}
	return b, nil
}

func (s *FeedbackService) DeleteBug(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.bugs.DeleteBugReport(ctx, id); err != nil {
		return fmt.Errorf("service/feedback: deleting bug report %s: %w", id, err)
	}
	return nil
}

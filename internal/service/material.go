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

const defaultMaterialSubject = "algemeen"

// MaterialService manages study materials ("bestanden"). Every logged-in user
// can read them; only admins publish, edit or remove them.
type MaterialService struct {
	materials repository.MaterialRepository
	logger    *slog.Logger
}

func NewMaterialService(materials repository.MaterialRepository, logger *slog.Logger) *MaterialService {
	return &MaterialService{materials: materials, logger: logger}
}

func (s *MaterialService) List(ctx context.Context, actor *model.User, subject string) ([]model.Material, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	list, err := s.materials.ListMaterials(ctx, strings.TrimSpace(subject))
	if err != nil {
		return nil, fmt.Errorf("service/material: listing: %w", err)
	}
	return list, nil
}

func (s *MaterialService) Get(ctx context.Context, actor *model.User, id string) (*model.Material, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	m, err := s.materials.GetMaterial(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/material: loading %s: %w", id, err)
	}
	return m, nil
}

type MaterialInput struct {
	Title       string  `json:"title" validate:"required" msg:"Titel, beschrijving en inhoud zijn vereist"`
	Description string  `json:"description" validate:"required" msg:"Titel, beschrijving en inhoud zijn vereist"`
	Content     string  `json:"content" validate:"required" msg:"Titel, beschrijving en inhoud zijn vereist"`
	Subject     string  `json:"subject"`
	FileURL     *string `json:"fileUrl"`
}

func (s *MaterialService) Create(ctx context.Context, actor *model.User, in MaterialInput) (*model.Material, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if strings.TrimSpace(in.Content) == "" {
		in.Content = ""
	}
	if err := check(in); err != nil {
		return nil, err
	}

	m := &model.Material{
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		FileURL:     optional(in.FileURL),
		Subject:     orDefault(in.Subject, defaultMaterialSubject),
		AuthorID:    actor.ID,
		Author:      &model.Author{ID: actor.ID, Username: actor.Username},
	}
	if err := s.materials.CreateMaterial(ctx, m); err != nil {
		return nil, fmt.Errorf("service/material: creating: %w", err)
	}
	s.logger.Info("material created", slog.String("materialID", m.ID), slog.String("subject", m.Subject))
	return m, nil
}

// MaterialPatch is a partial update; nil fields keep their value.
type MaterialPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	Subject     *string `json:"subject"`
	FileURL     *string `json:"fileUrl"`
}

func (s *MaterialService) Update(ctx context.Context, actor *model.User, id string, p MaterialPatch) (*model.Material, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	m, err := s.materials.GetMaterial(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/material: loading %s: %w", id, err)
	}
	if v := optional(p.Title); v != nil {
		m.Title = *v
	}
	if v := optional(p.Description); v != nil {
		m.Description = *v
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) != "" {
		m.Content = *p.Content
	}
	if v := optional(p.Subject); v != nil {
		m.Subject = *v
	}
	// An explicit empty fileUrl clears the link.
	if p.FileURL != nil {
		m.FileURL = optional(p.FileURL)
	}

	if err := s.materials.UpdateMaterial(ctx, m); err != nil {
		return nil, fmt.Errorf("service/material: updating %s: %w", id, err)
	}
	return m, nil
}

func (s *MaterialService) Delete(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.materials.DeleteMaterial(ctx, id); err != nil {
		return fmt.Errorf("service/material: deleting %s: %w", id, err)
	}
	s.logger.Info("material deleted", slog.String("materialID", id), slog.String("by", actor.ID))
	return nil
}

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
	defaultMaxStudents = 30
	msgElectiveFull    = "Deze keuzeles is vol"
)

// ElectiveService manages electives ("keuzelessen"). Admins maintain the
// catalogue; students enroll and unenroll themselves.
type ElectiveService struct {
	electives repository.ElectiveRepository
	logger    *slog.Logger
}

func NewElectiveService(electives repository.ElectiveRepository, logger *slog.Logger) *ElectiveService {
	return &ElectiveService{electives: electives, logger: logger}
}

// ElectiveList is the catalogue plus the ids the actor is enrolled in.
type ElectiveList struct {
	Electives []model.Elective `json:"keuzelessen"`
	Enrolled  []string         `json:"userKeuzelessen"`
}

// List returns the active electives. Admins also see retired ones and may
// ask for the enrolled students; the roster is ignored for students.
func (s *ElectiveService) List(ctx context.Context, actor *model.User, withStudents bool) (*ElectiveList, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	admin := actor.IsAdmin()

	electives, err := s.electives.ListElectives(ctx, !admin, admin && withStudents)
	if err != nil {
		return nil, fmt.Errorf("service/elective: listing: %w", err)
	}
	enrolled, err := s.electives.ListEnrollments(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("service/elective: listing enrollments: %w", err)
	}
	return &ElectiveList{Electives: electives, Enrolled: enrolled}, nil
}

type ElectiveInput struct {
	Name        string    `json:"name" validate:"required,max=200" msg:"Naam is vereist"`
	Description *string   `json:"description"`
	Teacher     *string   `json:"teacher"`
	MaxStudents *looseInt `json:"maxStudents"`
	Day         *string   `json:"day"`
	Period      *looseInt `json:"period"`
}

func (s *ElectiveService) Create(ctx context.Context, actor *model.User, in ElectiveInput) (*model.Elective, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return nil, err
	}

	e := &model.Elective{
		Name:        in.Name,
		Description: optional(in.Description),
		Teacher:     optional(in.Teacher),
		MaxStudents: defaultMaxStudents,
		Day:         lowerOptional(in.Day),
		Period:      in.Period.intPtr(),
		IsActive:    true,
	}
	if in.MaxStudents != nil {
		e.MaxStudents = int(*in.MaxStudents)
	}
	if err := validateElective(e); err != nil {
		return nil, err
	}
	if err := s.electives.CreateElective(ctx, e); err != nil {
		return nil, fmt.Errorf("service/elective: creating: %w", err)
	}
	return e, nil
}

// ElectivePatch is a partial update; nil fields keep their value.
type ElectivePatch struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Teacher     *string   `json:"teacher"`
	MaxStudents *looseInt `json:"maxStudents"`
	Day         *string   `json:"day"`
	Period      *looseInt `json:"period"`
	IsActive    *bool     `json:"isActive"`
}

func (s *ElectiveService) Update(ctx context.Context, actor *model.User, id string, p ElectivePatch) (*model.Elective, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	e, err := s.electives.GetElective(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/elective: loading: %w", err)
	}
	if v := optional(p.Name); v != nil {
		e.Name = *v
	}
	if p.Description != nil {
		e.Description = optional(p.Description)
	}
	if p.Teacher != nil {
		e.Teacher = optional(p.Teacher)
	}
	if p.MaxStudents != nil {
		e.MaxStudents = int(*p.MaxStudents)
	}
	if p.Day != nil {
		e.Day = lowerOptional(p.Day)
	}
	if p.Period != nil {
		e.Period = p.Period.intPtr()
	}
	if p.IsActive != nil {
		e.IsActive = *p.IsActive
	}

	if err := validateElective(e); err != nil {
		return nil, err
	}
	if err := s.electives.UpdateElective(ctx, e); err != nil {
		return nil, fmt.Errorf("service/elective: updating: %w", err)
	}
	return e, nil
}

func (s *ElectiveService) Delete(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.electives.DeleteElective(ctx, id); err != nil {
		return fmt.Errorf("service/elective: deleting: %w", err)
	}
	s.logger.Info("elective deleted", slog.String("electiveID", id), slog.String("by", actor.ID))
	return nil
}

// ToggleEnrollment enrolls the actor, or unenrolls when already enrolled, and
// reports the new state. Admins enroll like anyone else.
func (s *ElectiveService) ToggleEnrollment(ctx context.Context, actor *model.User, electiveID string) (bool, error) {
	if err := auth.RequireUser(actor); err != nil {
		return false, err
	}
	electiveID = strings.TrimSpace(electiveID)
	if electiveID == "" {
		return false, apperror.ValidationFailed("selectKeuzeles", "Keuzeles is vereist")
	}

	enrolled, err := s.electives.ToggleEnrollment(ctx, actor.ID, electiveID)
	if errors.Is(err, repository.ErrElectiveFull) {
		return false, apperror.ValidationFailed("selectKeuzeles", msgElectiveFull)
	}
	if err != nil {
		return false, fmt.Errorf("service/elective: toggling enrollment: %w", err)
	}
	return enrolled, nil
}

func validateElective(e *model.Elective) error {
	if e.MaxStudents <= 0 {
		return apperror.ValidationFailed("maxStudents", "Maximaal aantal leerlingen moet groter dan 0 zijn")
	}
	if e.Period != nil && *e.Period <= 0 {
		return apperror.ValidationFailed("period", "Periode moet groter dan 0 zijn")
	}
	return nil
}

// lowerOptional is optional plus lowercasing, for day names.
func lowerOptional(s *string) *string {
	v := optional(s)
	if v == nil {
		return nil
	}
	l := strings.ToLower(*v)
	return &l
}

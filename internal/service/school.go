package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

// SchoolService covers the shared school data: subjects, grades and the agenda.
// Reading is open to every logged-in user; changing shared data is admin-only.
type SchoolService struct {
	users    repository.UserRepository
	subjects repository.SubjectRepository
	grades   repository.GradeRepository
	agenda   repository.AgendaRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewSchoolService(
	users repository.UserRepository,
	subjects repository.SubjectRepository,
	grades repository.GradeRepository,
	agenda repository.AgendaRepository,
	logger *slog.Logger,
) *SchoolService {
	return &SchoolService{
		users:    users,
		subjects: subjects,
		grades:   grades,
		agenda:   agenda,
		logger:   logger,
		now:      time.Now,
	}
}

const (
	defaultSubjectIcon  = "📚"
	defaultSubjectColor = "#6B7280"
	defaultMaxGrade     = 10.0
	defaultAgendaType   = "toets"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeSubjectName turns "Wiskunde B" into "wiskunde-b".
func NormalizeSubjectName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// =========================================================================
// SUBJECTS
// =========================================================================

func (s *SchoolService) ListSubjects(ctx context.Context, actor *model.User) ([]model.Subject, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/school: listing subjects: %w", err)
	}
	return subjects, nil
}

type SubjectInput struct {
	Name        string `json:"name" validate:"required" msg:"Naam en weergavenaam zijn vereist"`
	DisplayName string `json:"displayName" validate:"required" msg:"Naam en weergavenaam zijn vereist"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

func (s *SchoolService) CreateSubject(ctx context.Context, actor *model.User, in SubjectInput) (*model.Subject, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Name = NormalizeSubjectName(in.Name)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := check(in); err != nil {
		return nil, err
	}

	sub := &model.Subject{
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Icon:        orDefault(in.Icon, defaultSubjectIcon),
		Color:       orDefault(in.Color, defaultSubjectColor),
	}
	if err := s.subjects.CreateSubject(ctx, sub); err != nil {
		return nil, fmt.Errorf("service/school: creating subject: %w", err)
	}
	return sub, nil
}

// SubjectPatch is a partial update; nil fields keep their value.
type SubjectPatch struct {
	Name        *string `json:"name"`
	DisplayName *string `json:"displayName"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

func (s *SchoolService) UpdateSubject(ctx context.Context, actor *model.User, id string, p SubjectPatch) (*model.Subject, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	sub, err := s.subjects.GetSubject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/school: loading subject: %w", err)
	}
	if v := optional(p.Name); v != nil {
		sub.Name = NormalizeSubjectName(*v)
	}
	if v := optional(p.DisplayName); v != nil {
		sub.DisplayName = *v
	}
	if v := optional(p.Icon); v != nil {
		sub.Icon = *v
	}
	if v := optional(p.Color); v != nil {
		sub.Color = *v
	}

	if err := s.subjects.UpdateSubject(ctx, sub); err != nil {
		return nil, fmt.Errorf("service/school: updating subject: %w", err)
	}
	return sub, nil
}

func (s *SchoolService) DeleteSubject(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.subjects.DeleteSubject(ctx, id); err != nil {
		return fmt.Errorf("service/school: deleting subject: %w", err)
	}
	s.logger.Info("subject deleted", slog.String("subjectID", id), slog.String("by", actor.ID))
	return nil
}

// =========================================================================
// GRADES
// =========================================================================

// ListGrades returns the actor's own grades. Admins may pass studentID to
// look at someone else's; for students the parameter is ignored.
func (s *SchoolService) ListGrades(ctx context.Context, actor *model.User, studentID string) ([]model.Grade, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	target := actor.ID
	if actor.IsAdmin() && studentID != "" {
		target = studentID
	}
	grades, err := s.grades.ListGradesByStudent(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("service/school: listing grades: %w", err)
	}
	return grades, nil
}

type GradeInput struct {
	StudentID string   `json:"studentId"`
	Subject   string   `json:"subject" validate:"required" msg:"Vak, toetsnaam en cijfer zijn vereist"`
	TestName  string   `json:"testName" validate:"required" msg:"Vak, toetsnaam en cijfer zijn vereist"`
	Grade     *float64 `json:"grade"`
	MaxGrade  *float64 `json:"maxGrade"`
	Date      string   `json:"date"`
	Comment   *string  `json:"comment"`
}

// CreateGrade records a grade.
//
// An admin passing StudentID writes for that student (admin-owned grade).
// Everyone else writes for themselves, and the grade is marked student-added
// so they may delete it later.
func (s *SchoolService) CreateGrade(ctx context.Context, actor *model.User, in GradeInput) (*model.Grade, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}

	in.Subject = strings.TrimSpace(in.Subject)
	in.TestName = strings.TrimSpace(in.TestName)
	if err := check(in); err != nil {
		return nil, err
	}
	if in.Grade == nil {
		return nil, apperror.ValidationFailed("grade", "Vak, toetsnaam en cijfer zijn vereist")
	}

	g := &model.Grade{
		StudentID:      actor.ID,
		Subject:        in.Subject,
		TestName:       in.TestName,
		Grade:          *in.Grade,
		MaxGrade:       defaultMaxGrade,
		Comment:        optional(in.Comment),
		IsStudentAdded: true,
	}
	if in.MaxGrade != nil && *in.MaxGrade > 0 {
		g.MaxGrade = *in.MaxGrade
	}

	date, err := parseDateOr(in.Date, s.now())
	if err != nil {
		return nil, apperror.ValidationFailed("date", "Ongeldige datum")
	}
	g.Date = date

	if studentID := strings.TrimSpace(in.StudentID); actor.IsAdmin() && studentID != "" {
		if _, err := s.users.GetUserByID(ctx, studentID); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Leerling niet gevonden"}
			}
			return nil, fmt.Errorf("service/school: loading student: %w", err)
		}
		g.StudentID = studentID
		g.IsStudentAdded = false
	}

	if err := s.grades.CreateGrade(ctx, g); err != nil {
		return nil, fmt.Errorf("service/school: creating grade: %w", err)
	}
	return g, nil
}

// DeleteGrade lets admins delete any grade and students only their own
// student-added ones.
//
// A student gets the same Forbidden for a missing id as for someone else's
// grade, so grade ids cannot be probed.
func (s *SchoolService) DeleteGrade(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireUser(actor); err != nil {
		return err
	}

	g, err := s.grades.GetGrade(ctx, id)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		if !actor.IsAdmin() {
			return apperror.Forbidden("Je hebt geen toegang tot dit item")
		}
		return err
	case err != nil:
		return fmt.Errorf("service/school: loading grade: %w", err)
	}

	if err := auth.RequireSelfOrAdmin(actor, g.StudentID); err != nil {
		return err
	}
	if !actor.IsAdmin() && !g.IsStudentAdded {
		return apperror.Forbidden("Je hebt geen toegang tot dit item")
	}

	if err := s.grades.DeleteGrade(ctx, id); err != nil {
		return fmt.Errorf("service/school: deleting grade: %w", err)
	}
	return nil
}

// =========================================================================
// AGENDA
// =========================================================================

func (s *SchoolService) ListAgenda(ctx context.Context, actor *model.User, subject string) ([]model.AgendaItem, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	items, err := s.agenda.ListAgenda(ctx, strings.TrimSpace(subject))
	if err != nil {
		return nil, fmt.Errorf("service/school: listing agenda: %w", err)
	}
	return items, nil
}

type AgendaInput struct {
	Title       string  `json:"title" validate:"required" msg:"Titel, datum en vak zijn vereist"`
	Description *string `json:"description"`
	TestDate    string  `json:"testDate" validate:"required" msg:"Titel, datum en vak zijn vereist"`
	Subject     string  `json:"subject" validate:"required" msg:"Titel, datum en vak zijn vereist"`
	Type        string  `json:"type"`
}

func (s *SchoolService) CreateAgendaItem(ctx context.Context, actor *model.User, in AgendaInput) (*model.AgendaItem, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.TestDate = strings.TrimSpace(in.TestDate)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := check(in); err != nil {
		return nil, err
	}

	date, err := parseDate(in.TestDate)
	if err != nil {
		return nil, apperror.ValidationFailed("testDate", "Ongeldige datum")
	}

	item := &model.AgendaItem{
		Title:       in.Title,
		Description: optional(in.Description),
		TestDate:    date,
		Subject:     in.Subject,
		Type:        orDefault(in.Type, defaultAgendaType),
	}
	if err := s.agenda.CreateAgendaItem(ctx, item); err != nil {
		return nil, fmt.Errorf("service/school: creating agenda item: %w", err)
	}
	return item, nil
}

func (s *SchoolService) DeleteAgendaItem(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.agenda.DeleteAgendaItem(ctx, id); err != nil {
		return fmt.Errorf("service/school: deleting agenda item: %w", err)
	}
	return nil
}

// dateLayouts are tried in order; browsers send either a full timestamp or
// the value of an <input type="date">.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseDateOr parses s, or returns def when s is blank.
func parseDateOr(s string, def time.Time) (time.Time, error) {
	if s = strings.TrimSpace(s); s == "" {
		return def.UTC(), nil
	}
	return parseDate(s)
}

// Package repository declares the storage contracts the services depend on.
//
// Services only ever see these interfaces; internal/repository/sqlite and
// internal/repository/redis provide the implementations. Every "get one"
// method returns an apperror.ErrNotFound error when nothing matches, and every
// uniqueness violation surfaces as apperror.ErrConflict.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/edulearn/portal/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateEmail(ctx context.Context, userID, email string) error
	// UpsertAdmin creates username as admin or promotes and re-keys the existing account.
	UpsertAdmin(ctx context.Context, username, hash string) (user *model.User, created bool, err error)
	ListUsersWithCounts(ctx context.Context) ([]model.UserWithCounts, error)
}

// PasswordResetRepository keeps the "at most one active token per user" rule.
type PasswordResetRepository interface {
	// ReplaceReset deletes every token of r.UserID and inserts r, atomically.
	ReplaceReset(ctx context.Context, r *model.PasswordReset) error
	// ConsumeReset deletes an unexpired token and stores newHash on its owner in
	// one transaction, returning the owner id. Unknown or expired tokens yield
	// apperror.ErrNotFound.
	ConsumeReset(ctx context.Context, token, newHash string, now time.Time) (string, error)
	DeleteExpiredResets(ctx context.Context, now time.Time) (int64, error)
}

type SubjectRepository interface {
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	GetSubject(ctx context.Context, id string) (*model.Subject, error)
	CreateSubject(ctx context.Context, s *model.Subject) error
	UpdateSubject(ctx context.Context, s *model.Subject) error
	DeleteSubject(ctx context.Context, id string) error
	// UpsertSubject inserts or refreshes by Name.
	UpsertSubject(ctx context.Context, s *model.Subject) error
}

type GradeRepository interface {
	ListGradesByStudent(ctx context.Context, studentID string) ([]model.Grade, error)
	GetGrade(ctx context.Context, id string) (*model.Grade, error)
	CreateGrade(ctx context.Context, g *model.Grade) error
	DeleteGrade(ctx context.Context, id string) error
}

type AgendaRepository interface {
	ListAgenda(ctx context.Context, subject string) ([]model.AgendaItem, error)
	GetAgendaItem(ctx context.Context, id string) (*model.AgendaItem, error)
	CreateAgendaItem(ctx context.Context, a *model.AgendaItem) error
	DeleteAgendaItem(ctx context.Context, id string) error
}

type ScheduleRepository interface {
	// ListSchedule returns the week in order: by weekday, then period.
	ListSchedule(ctx context.Context) ([]model.ScheduleEntry, error)
	GetScheduleEntry(ctx context.Context, id string) (*model.ScheduleEntry, error)
	CreateScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error
	UpdateScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error
	DeleteScheduleEntry(ctx context.Context, id string) error
}

// ErrElectiveFull is returned by ToggleEnrollment when every seat is taken.
var ErrElectiveFull = errors.New("elective is full")

type ElectiveRepository interface {
	// ListElectives returns electives by name with Enrolled filled in.
	// activeOnly hides retired electives; withStudents also loads the roster.
	ListElectives(ctx context.Context, activeOnly, withStudents bool) ([]model.Elective, error)
	GetElective(ctx context.Context, id string) (*model.Elective, error)
	CreateElective(ctx context.Context, e *model.Elective) error
	UpdateElective(ctx context.Context, e *model.Elective) error
	DeleteElective(ctx context.Context, id string) error
	// ListEnrollments returns the ids of the electives userID is enrolled in.
	ListEnrollments(ctx context.Context, userID string) ([]string, error)
	// ToggleEnrollment unenrolls userID when enrolled and enrolls otherwise,
	// checking capacity in the same transaction. It reports the new state.
	// Enrolling in a full elective yields ErrElectiveFull; an unknown or
	// inactive one yields apperror.ErrNotFound.
	ToggleEnrollment(ctx context.Context, userID, electiveID string) (enrolled bool, err error)
}

type ProRequestRepository interface {
	// CreateProRequest stores a pending request. A second pending request of
	// the same user is apperror.ErrConflict.
	CreateProRequest(ctx context.Context, r *model.ProRequest) error
	// ListProRequests returns newest first; status "" means every status.
	ListProRequests(ctx context.Context, status string) ([]model.ProRequest, error)
	// DecideProRequest closes a pending request with status. Approval marks
	// the owner as pro in the same transaction. A request that is no longer
	// pending is apperror.ErrConflict.
	DecideProRequest(ctx context.Context, id, status string) (*model.ProRequest, error)
}

type MaterialRepository interface {
	// ListMaterials returns newest first; subject "" means all subjects.
	ListMaterials(ctx context.Context, subject string) ([]model.Material, error)
	GetMaterial(ctx context.Context, id string) (*model.Material, error)
	CreateMaterial(ctx context.Context, m *model.Material) error
	UpdateMaterial(ctx context.Context, m *model.Material) error
	DeleteMaterial(ctx context.Context, id string) error
}

type ChatHistoryRepository interface {
	ListChatHistories(ctx context.Context, userID string, limit int) ([]model.ChatHistory, error)
	GetChatHistory(ctx context.Context, id string) (*model.ChatHistory, error)
	CreateChatHistory(ctx context.Context, h *model.ChatHistory) error
	UpdateChatHistory(ctx context.Context, h *model.ChatHistory) error
	DeleteChatHistory(ctx context.Context, id string) error
}

type SupportRepository interface {
	// ListSupportMessages returns newest first; userID "" means every user.
	ListSupportMessages(ctx context.Context, userID string) ([]model.SupportMessage, error)
	CreateSupportMessage(ctx context.Context, m *model.SupportMessage) error
	UpdateSupportStatus(ctx context.Context, id, status string) (*model.SupportMessage, error)
}

type BugRepository interface {
	ListBugReports(ctx context.Context) ([]model.BugReport, error)
	CreateBugReport(ctx context.Context, b *model.BugReport) error
	// UpdateBugReport changes status and/or priority; empty strings keep the current value.
	UpdateBugReport(ctx context.Context, id, status, priority string) (*model.BugReport, error)
	DeleteBugReport(ctx context.Context, id string) error
}

type SettingRepository interface {
	ListSettings(ctx context.Context) ([]model.Setting, error)
	UpsertSetting(ctx context.Context, key, value string) (*model.Setting, error)
}

// ExpiredSessionSweeper is implemented by session stores that do not expire
// rows on their own (SQLite). Redis relies on key TTLs instead.
type ExpiredSessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

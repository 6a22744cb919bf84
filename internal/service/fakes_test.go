package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/edulearn/portal/internal/ai"
	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory implementation of every repository interface
// plus auth.SessionStore. Plain maps behind one mutex; failErr, when set,
// is returned by every method to simulate a broken database.
type fakeStore struct {
	mu sync.Mutex

	users     map[string]*model.User
	sessions  map[string]*model.Session
	resets    map[string]*model.PasswordReset
	subjects  map[string]*model.Subject
	grades    map[string]*model.Grade
	agenda    map[string]*model.AgendaItem
	materials map[string]*model.Material
	histories map[string]*model.ChatHistory
	support   map[string]*model.SupportMessage
	bugs      map[string]*model.BugReport
	settings  map[string]*model.Setting
	schedule  map[string]*model.ScheduleEntry
	electives map[string]*model.Elective
	enrolled  map[string]map[string]bool // electiveID → userIDs
	pro       map[string]*model.ProRequest

	seq     int
	failErr error
}

var (
	_ repository.UserRepository          = (*fakeStore)(nil)
	_ repository.PasswordResetRepository = (*fakeStore)(nil)
	_ repository.SubjectRepository       = (*fakeStore)(nil)
	_ repository.GradeRepository         = (*fakeStore)(nil)
	_ repository.AgendaRepository        = (*fakeStore)(nil)
	_ repository.MaterialRepository      = (*fakeStore)(nil)
	_ repository.ChatHistoryRepository   = (*fakeStore)(nil)
	_ repository.SupportRepository       = (*fakeStore)(nil)
	_ repository.BugRepository           = (*fakeStore)(nil)
	_ repository.SettingRepository       = (*fakeStore)(nil)
	_ repository.ScheduleRepository      = (*fakeStore)(nil)
	_ repository.ElectiveRepository      = (*fakeStore)(nil)
	_ repository.ProRequestRepository    = (*fakeStore)(nil)
	_ auth.SessionStore                  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*model.User),
		sessions:  make(map[string]*model.Session),
		resets:    make(map[string]*model.PasswordReset),
		subjects:  make(map[string]*model.Subject),
		grades:    make(map[string]*model.Grade),
		agenda:    make(map[string]*model.AgendaItem),
		materials: make(map[string]*model.Material),
		histories: make(map[string]*model.ChatHistory),
		support:   make(map[string]*model.SupportMessage),
		bugs:      make(map[string]*model.BugReport),
		settings:  make(map[string]*model.Setting),
		schedule:  make(map[string]*model.ScheduleEntry),
		electives: make(map[string]*model.Elective),
		enrolled:  make(map[string]map[string]bool),
		pro:       make(map[string]*model.ProRequest),
	}
}

// nextID returns increasing ids so map iteration can be sorted by creation order.
func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

// ----- users -----

func (f *fakeStore) CreateUser(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperror.Conflict("Gebruikersnaam", u.Username)
		}
	}
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	u.ID = f.nextID("user")
	u.CreatedAt = time.Now().UTC()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("Gebruiker", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("Gebruiker", username)
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, u := range f.users {
		if u.Email != nil && *u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("Gebruiker", email)
}

func (f *fakeStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("Gebruiker", userID)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) UpdateEmail(ctx context.Context, userID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if id != userID && u.Email != nil && *u.Email == email {
			return apperror.Conflict("Email", email)
		}
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("Gebruiker", userID)
	}
	u.Email = &email
	return nil
}

func (f *fakeStore) UpsertAdmin(ctx context.Context, username, hash string) (*model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, false, f.failErr
	}
	for _, u := range f.users {
		if u.Username == username {
			u.Role = model.RoleAdmin
			u.PasswordHash = hash
			cp := *u
			return &cp, false, nil
		}
	}
	u := &model.User{ID: f.nextID("user"), Username: username, PasswordHash: hash, Role: model.RoleAdmin, CreatedAt: time.Now().UTC()}
	f.users[u.ID] = u
	cp := *u
	return &cp, true, nil
}

func (f *fakeStore) ListUsersWithCounts(ctx context.Context) ([]model.UserWithCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserWithCounts
	for _, u := range f.users {
		row := model.UserWithCounts{PublicUser: *u.Public()}
		for _, g := range f.grades {
			if g.StudentID == u.ID {
				row.Count.Grades++
			}
		}
		for _, m := range f.support {
			if m.UserID == u.ID {
				row.Count.SupportMessages++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ----- sessions -----

func (f *fakeStore) CreateSession(ctx context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("Sessie", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) sessionCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// ----- password resets -----

func (f *fakeStore) ReplaceReset(ctx context.Context, r *model.PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok, existing := range f.resets {
		if existing.UserID == r.UserID {
			delete(f.resets, tok)
		}
	}
	cp := *r
	f.resets[r.Token] = &cp
	return nil
}

func (f *fakeStore) ConsumeReset(ctx context.Context, token, newHash string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resets[token]
	if !ok {
		return "", apperror.NotFound("Reset token", "")
	}
	delete(f.resets, token)
	if !now.Before(r.ExpiresAt) {
		return "", apperror.NotFound("Reset token", "")
	}
	if u, ok := f.users[r.UserID]; ok {
		u.PasswordHash = newHash
	}
	return r.UserID, nil
}

func (f *fakeStore) DeleteExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for tok, r := range f.resets {
		if !now.Before(r.ExpiresAt) {
			delete(f.resets, tok)
			n++
		}
	}
	return n, nil
}

// resetFor returns the active token of userID, or "".
func (f *fakeStore) resetFor(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok, r := range f.resets {
		if r.UserID == userID {
			return tok
		}
	}
	return ""
}

// ----- subjects -----

func (f *fakeStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([]model.Subject, 0, len(f.subjects))
	for _, s := range f.subjects {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[id]
	if !ok {
		return nil, apperror.NotFound("Vak", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) CreateSubject(ctx context.Context, s *model.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.subjects {
		if existing.Name == s.Name {
			return apperror.Conflict("Vak", s.Name)
		}
	}
	s.ID = f.nextID("subject")
	s.CreatedAt = time.Now().UTC()
	cp := *s
	f.subjects[s.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateSubject(ctx context.Context, s *model.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subjects[s.ID]; !ok {
		return apperror.NotFound("Vak", s.ID)
	}
	cp := *s
	f.subjects[s.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteSubject(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subjects[id]; !ok {
		return apperror.NotFound("Vak", id)
	}
	delete(f.subjects, id)
	return nil
}

func (f *fakeStore) UpsertSubject(ctx context.Context, s *model.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.subjects {
		if existing.Name == s.Name {
			existing.DisplayName, existing.Icon, existing.Color = s.DisplayName, s.Icon, s.Color
			*s = *existing
			return nil
		}
	}
	s.ID = f.nextID("subject")
	cp := *s
	f.subjects[s.ID] = &cp
	return nil
}

// ----- grades -----

func (f *fakeStore) ListGradesByStudent(ctx context.Context, studentID string) ([]model.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Grade
	for _, g := range f.grades {
		if g.StudentID == studentID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeStore) GetGrade(ctx context.Context, id string) (*model.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grades[id]
	if !ok {
		return nil, apperror.NotFound("Cijfer", id)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) CreateGrade(ctx context.Context, g *model.Grade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ID = f.nextID("grade")
	cp := *g
	f.grades[g.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteGrade(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.grades[id]; !ok {
		return apperror.NotFound("Cijfer", id)
	}
	delete(f.grades, id)
	return nil
}

// ----- agenda -----

func (f *fakeStore) ListAgenda(ctx context.Context, subject string) ([]model.AgendaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AgendaItem
	for _, a := range f.agenda {
		if subject == "" || a.Subject == subject {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestDate.Before(out[j].TestDate) })
	return out, nil
}

func (f *fakeStore) GetAgendaItem(ctx context.Context, id string) (*model.AgendaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agenda[id]
	if !ok {
		return nil, apperror.NotFound("Agenda item", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateAgendaItem(ctx context.Context, a *model.AgendaItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.nextID("agenda")
	cp := *a
	f.agenda[a.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteAgendaItem(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.agenda[id]; !ok {
		return apperror.NotFound("Agenda item", id)
	}
	delete(f.agenda, id)
	return nil
}

// ----- materials -----

func (f *fakeStore) ListMaterials(ctx context.Context, subject string) ([]model.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	var out []model.Material
	for _, m := range f.materials {
		if subject == "" || m.Subject == subject {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) GetMaterial(ctx context.Context, id string) (*model.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	m, ok := f.materials[id]
	if !ok {
		return nil, apperror.NotFound("Bestand", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) CreateMaterial(ctx context.Context, m *model.Material) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.nextID("file")
	cp := *m
	f.materials[m.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateMaterial(ctx context.Context, m *model.Material) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.materials[m.ID]; !ok {
		return apperror.NotFound("Bestand", m.ID)
	}
	cp := *m
	f.materials[m.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteMaterial(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.materials[id]; !ok {
		return apperror.NotFound("Bestand", id)
	}
	delete(f.materials, id)
	return nil
}

// ----- chat histories -----

func (f *fakeStore) ListChatHistories(ctx context.Context, userID string, limit int) ([]model.ChatHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ChatHistory
	for _, h := range f.histories {
		if h.UserID == userID {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetChatHistory(ctx context.Context, id string) (*model.ChatHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.histories[id]
	if !ok {
		return nil, apperror.NotFound("Chat geschiedenis", id)
	}
	cp := *h
	return &cp, nil
}

func (f *fakeStore) CreateChatHistory(ctx context.Context, h *model.ChatHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = f.nextID("chat")
	cp := *h
	f.histories[h.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateChatHistory(ctx context.Context, h *model.ChatHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.histories[h.ID]; !ok {
		return apperror.NotFound("Chat geschiedenis", h.ID)
	}
	cp := *h
	f.histories[h.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteChatHistory(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.histories[id]; !ok {
		return apperror.NotFound("Chat geschiedenis", id)
	}
	delete(f.histories, id)
	return nil
}

// ----- support and bugs -----

func (f *fakeStore) ListSupportMessages(ctx context.Context, userID string) ([]model.SupportMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SupportMessage
	for _, m := range f.support {
		if userID == "" || m.UserID == userID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateSupportMessage(ctx context.Context, m *model.SupportMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.nextID("support")
	if m.Status == "" {
		m.Status = "open"
	}
	cp := *m
	f.support[m.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateSupportStatus(ctx context.Context, id, status string) (*model.SupportMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.support[id]
	if !ok {
		return nil, apperror.NotFound("Bericht", id)
	}
	m.Status = status
	cp := *m
	return &cp, nil
}

func (f *fakeStore) ListBugReports(ctx context.Context) ([]model.BugReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BugReport
	for _, b := range f.bugs {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateBugReport(ctx context.Context, b *model.BugReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = f.nextID("bug")
	if b.Status == "" {
		b.Status = "open"
	}
	cp := *b
	f.bugs[b.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateBugReport(ctx context.Context, id, status, priority string) (*model.BugReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bugs[id]
	if !ok {
		return nil, apperror.NotFound("Bug report", id)
	}
	if status != "" {
		b.Status = status
	}
	if priority != "" {
		b.Priority = priority
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) DeleteBugReport(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bugs[id]; !ok {
		return apperror.NotFound("Bug report", id)
	}
	delete(f.bugs, id)
	return nil
}

// ----- settings -----

func (f *fakeStore) ListSettings(ctx context.Context) ([]model.Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Setting
	for _, s := range f.settings {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) UpsertSetting(ctx context.Context, key, value string) (*model.Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &model.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	f.settings[key] = s
	cp := *s
	return &cp, nil
}

// ----- schedule -----

func (f *fakeStore) ListSchedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ScheduleEntry{}
	for _, e := range f.schedule {
		out = append(out, *e)
	}
	day := func(d string) int { return slices.Index(model.Weekdays, d) }
	sort.Slice(out, func(i, j int) bool {
		if day(out[i].Day) != day(out[j].Day) {
			return day(out[i].Day) < day(out[j].Day)
		}
		return out[i].Period < out[j].Period
	})
	return out, nil
}

func (f *fakeStore) GetScheduleEntry(ctx context.Context, id string) (*model.ScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.schedule[id]
	if !ok {
		return nil, apperror.NotFound("Rooster item", id)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) CreateScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	e.ID = f.nextID("schedule")
	cp := *e
	f.schedule[e.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedule[e.ID]; !ok {
		return apperror.NotFound("Rooster item", e.ID)
	}
	cp := *e
	f.schedule[e.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteScheduleEntry(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedule[id]; !ok {
		return apperror.NotFound("Rooster item", id)
	}
	delete(f.schedule, id)
	return nil
}

// ----- electives -----

// electiveCopy returns e with Enrolled filled in. Callers hold f.mu.
func (f *fakeStore) electiveCopy(e *model.Elective) model.Elective {
	cp := *e
	cp.Enrolled = len(f.enrolled[e.ID])
	return cp
}

func (f *fakeStore) ListElectives(ctx context.Context, activeOnly, withStudents bool) ([]model.Elective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Elective{}
	for _, e := range f.electives {
		if activeOnly && !e.IsActive {
			continue
		}
		cp := f.electiveCopy(e)
		if withStudents {
			cp.Students = []model.Author{}
			for userID := range f.enrolled[e.ID] {
				cp.Students = append(cp.Students, model.Author{ID: userID, Username: f.users[userID].Username})
			}
			sort.Slice(cp.Students, func(i, j int) bool { return cp.Students[i].Username < cp.Students[j].Username })
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) GetElective(ctx context.Context, id string) (*model.Elective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.electives[id]
	if !ok {
		return nil, apperror.NotFound("Keuzeles", id)
	}
	cp := f.electiveCopy(e)
	return &cp, nil
}

func (f *fakeStore) CreateElective(ctx context.Context, e *model.Elective) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = f.nextID("elective")
	cp := *e
	f.electives[e.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateElective(ctx context.Context, e *model.Elective) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.electives[e.ID]; !ok {
		return apperror.NotFound("Keuzeles", e.ID)
	}
	cp := *e
	f.electives[e.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteElective(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.electives[id]; !ok {
		return apperror.NotFound("Keuzeles", id)
	}
	delete(f.electives, id)
	delete(f.enrolled, id)
	return nil
}

func (f *fakeStore) ListEnrollments(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for electiveID, users := range f.enrolled {
		if users[userID] {
			ids = append(ids, electiveID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) ToggleEnrollment(ctx context.Context, userID, electiveID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrolled[electiveID][userID] {
		delete(f.enrolled[electiveID], userID)
		return false, nil
	}
	e, ok := f.electives[electiveID]
	if !ok || !e.IsActive {
		return false, apperror.NotFound("Keuzeles", electiveID)
	}
	if len(f.enrolled[electiveID]) >= e.MaxStudents {
		return false, repository.ErrElectiveFull
	}
	if f.enrolled[electiveID] == nil {
		f.enrolled[electiveID] = make(map[string]bool)
	}
	f.enrolled[electiveID][userID] = true
	return true, nil
}

// ----- pro requests -----

func (f *fakeStore) CreateProRequest(ctx context.Context, r *model.ProRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.pro {
		if existing.UserID == r.UserID && existing.Status == model.ProRequestPending {
			return apperror.Conflict("Pro aanvraag", r.UserID)
		}
	}
	r.ID = f.nextID("pro")
	r.Status = model.ProRequestPending
	cp := *r
	f.pro[r.ID] = &cp
	return nil
}

func (f *fakeStore) ListProRequests(ctx context.Context, status string) ([]model.ProRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ProRequest{}
	for _, r := range f.pro {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) DecideProRequest(ctx context.Context, id, status string) (*model.ProRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pro[id]
	if !ok {
		return nil, apperror.NotFound("Pro aanvraag", id)
	}
	if r.Status != model.ProRequestPending {
		return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "Deze aanvraag is al afgehandeld"}
	}
	now := time.Now().UTC()
	r.Status = status
	r.DecidedAt = &now
	if status == model.ProRequestApproved {
		if u, ok := f.users[r.UserID]; ok {
			u.IsPro = true
		}
	}
	cp := *r
	return &cp, nil
}

// =========================================================================
// FAKE COMPLETER
// =========================================================================

// fakeCompleter answers from a per-model table. Models missing from replies
// fail with errModelDown. Every call is recorded.
type fakeCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []completerCall
}

type completerCall struct {
	model    string
	messages []ai.Message
}

var errModelDown = errors.New("fake: model unavailable")

func (c *fakeCompleter) Complete(ctx context.Context, model string, messages []ai.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, completerCall{model: model, messages: messages})
	reply, ok := c.replies[model]
	if !ok {
		return "", errModelDown
	}
	return reply, nil
}

func (c *fakeCompleter) models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = call.model
	}
	return out
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

const testSessionSecret = "service-test-secret-at-least-32-chars!"

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSessions(t *testing.T, store *fakeStore) *auth.SessionManager {
	t.Helper()
	m, err := auth.NewSessionManager(testSessionSecret, store)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return m
}

// seedUser inserts a user directly into the store and returns it.
func seedUser(t *testing.T, store *fakeStore, username string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Username: username, Role: role, PasswordHash: "unused"}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding %s: %v", username, err)
	}
	return u
}

// assertKind fails unless err wraps the sentinel want.
func assertKind(t *testing.T, err, want error) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %v", want)
	}
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want kind %v", err, want)
	}
}

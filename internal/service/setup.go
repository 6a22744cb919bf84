package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

// AdminUsername is the account created or reset by /setup.
const AdminUsername = "admin"

// DefaultSubjects are seeded by /setup. Re-running setup refreshes their
// display data but keeps their ids.
var DefaultSubjects = []model.Subject{
	{Name: "wiskunde", DisplayName: "Wiskunde", Icon: "📐", Color: "#3B82F6"},
	{Name: "engels", DisplayName: "Engels", Icon: "🇬🇧", Color: "#10B981"},
	{Name: "nederlands", DisplayName: "Nederlands", Icon: "🇳🇱", Color: "#F59E0B"},
	{Name: "geschiedenis", DisplayName: "Geschiedenis", Icon: "📜", Color: "#8B5CF6"},
	{Name: "aardrijkskunde", DisplayName: "Aardrijkskunde", Icon: "🌍", Color: "#06B6D4"},
	{Name: "biologie", DisplayName: "Biologie", Icon: "🧬", Color: "#22C55E"},
	{Name: "natuurkunde", DisplayName: "Natuurkunde", Icon: "⚛️", Color: "#EF4444"},
	{Name: "scheikunde", DisplayName: "Scheikunde", Icon: "🧪", Color: "#F97316"},
	{Name: "frans", DisplayName: "Frans", Icon: "🇫🇷", Color: "#EC4899"},
	{Name: "duits", DisplayName: "Duits", Icon: "🇩🇪", Color: "#6366F1"},
	{Name: "economie", DisplayName: "Economie", Icon: "📊", Color: "#14B8A6"},
	{Name: "maatschappijleer", DisplayName: "Maatschappijleer", Icon: "🏛️", Color: "#A855F7"},
	{Name: "algemeen", DisplayName: "Algemeen", Icon: "📚", Color: "#6B7280"},
}

// DefaultSettings are written only when the key does not exist yet.
var DefaultSettings = map[string]string{
	"siteName": "EduLearn AI",
	"logo":     "/logo.svg",
}

// SetupService bootstraps a fresh installation.
//
// The shared secret and the admin password both come from configuration.
// With either one empty, setup is disabled entirely.
type SetupService struct {
	users     repository.UserRepository
	subjects  repository.SubjectRepository
	settings  repository.SettingRepository
	sessions  *auth.SessionManager
	passwords *auth.PasswordService
	secret    string
	adminPass string
	logger    *slog.Logger
}

func NewSetupService(
	users repository.UserRepository,
	subjects repository.SubjectRepository,
	settings repository.SettingRepository,
	sessions *auth.SessionManager,
	passwords *auth.PasswordService,
	secret, adminPassword string,
	logger *slog.Logger,
) *SetupService {
	return &SetupService{
		users:     users,
		subjects:  subjects,
		settings:  settings,
		sessions:  sessions,
		passwords: passwords,
		secret:    secret,
		adminPass: adminPassword,
		logger:    logger,
	}
}

type SetupResult struct {
	AdminUsername  string
	AdminCreated   bool
	SubjectsSeeded int
}

// Run creates or resets the admin account and seeds reference data.
//
// The secret comparison is constant time. Resetting an existing admin also
// revokes its sessions, so a leaked admin cookie dies with the old password.
func (s *SetupService) Run(ctx context.Context, secret string) (*SetupResult, error) {
	if s.secret == "" || s.adminPass == "" {
		return nil, apperror.Forbidden("Setup is uitgeschakeld")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) != 1 {
		s.logger.Warn("setup called with invalid secret")
		return nil, apperror.Forbidden("Ongeldig secret")
	}

	hash, err := s.passwords.Hash(s.adminPass)
	if err != nil {
		return nil, fmt.Errorf("service/setup: hashing admin password: %w", err)
	}

	admin, created, err := s.users.UpsertAdmin(ctx, AdminUsername, hash)
	if err != nil {
		return nil, fmt.Errorf("service/setup: upserting admin: %w", err)
	}
	if !created {
		if _, err := s.sessions.RevokeAll(ctx, admin.ID); err != nil {
			return nil, fmt.Errorf("service/setup: revoking admin sessions: %w", err)
		}
	}

	for _, def := range DefaultSubjects {
		sub := def
		if err := s.subjects.UpsertSubject(ctx, &sub); err != nil {
			return nil, fmt.Errorf("service/setup: seeding subject %q: %w", def.Name, err)
		}
	}

	if err := s.seedSettings(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("setup completed",
		slog.String("adminID", admin.ID),
		slog.Bool("adminCreated", created),
		slog.Int("subjects", len(DefaultSubjects)),
	)
	return &SetupResult{
		AdminUsername:  admin.Username,
		AdminCreated:   created,
		SubjectsSeeded: len(DefaultSubjects),
	}, nil
}

func (s *SetupService) seedSettings(ctx context.Context) error {
	existing, err := s.settings.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("service/setup: listing settings: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, st := range existing {
		have[st.Key] = true
	}
	for key, value := range DefaultSettings {
		if have[key] {
			continue
		}
		if _, err := s.settings.UpsertSetting(ctx, key, value); err != nil {
			return fmt.Errorf("service/setup: seeding setting %q: %w", key, err)
		}
	}
	return nil
}

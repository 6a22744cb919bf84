package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/metrics"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6

	// ResetTokenTTL is how long a forgot-password link stays usable.
	ResetTokenTTL = time.Hour

	resetTokenBytes = 32
)

// ResetNotifier delivers a password reset link to the account owner.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, user *model.User, token string) error
}

// LogResetNotifier writes the reset URL to the log. It is the default until
// outgoing mail exists.
type LogResetNotifier struct {
	PublicURL string
	Logger    *slog.Logger
}

func (n *LogResetNotifier) NotifyReset(_ context.Context, user *model.User, token string) error {
	n.Logger.Info("password reset requested",
		slog.String("userID", user.ID),
		slog.String("resetURL", n.PublicURL+"/reset-password?token="+token),
	)
	return nil
}

// AuthService implements register, login, logout, currentUser and the
// password lifecycle.
//
//	AuthHandler (HTTP) → AuthService → UserRepository / PasswordResetRepository
//	                                 ↘ SessionManager (signed cookie + session row)
type AuthService struct {
	users     repository.UserRepository
	resets    repository.PasswordResetRepository
	sessions  *auth.SessionManager
	passwords *auth.PasswordService
	notifier  ResetNotifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	sessions *auth.SessionManager,
	passwords *auth.PasswordService,
	notifier ResetNotifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		resets:    resets,
		sessions:  sessions,
		passwords: passwords,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles the user and the freshly issued session so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Session *auth.IssuedSession
}

type Credentials struct {
	Username string `json:"username" validate:"required,min=3" msg:"Gebruikersnaam moet minimaal 3 tekens zijn"`
	Password string `json:"password" validate:"required,min=6" msg:"Wachtwoord moet minimaal 6 tekens zijn"`
}

// Register creates a student account and logs it in.
//
// Self-registered accounts are never admins. A duplicate username surfaces as
// apperror.ErrConflict from the UNIQUE index; there is no check-then-insert race.
func (s *AuthService) Register(ctx context.Context, in Credentials) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := check(in); err != nil {
		s.metrics.AuthEvent("register", metrics.OutcomeFailure)
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		s.metrics.AuthEvent("register", metrics.OutcomeFailure)
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Wachtwoord mag maximaal %d bytes zijn", auth.MaxPasswordBytes))
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         model.RoleStudent,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		s.metrics.AuthEvent("register", metrics.OutcomeFailure)
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("Gebruikersnaam", in.Username)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	sess, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session: %w", err)
	}

	s.metrics.AuthEvent("register", metrics.OutcomeSuccess)
	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", user.Username))
	return &AuthResult{User: user, Session: sess}, nil
}

// Login verifies credentials and issues a new session.
//
// USERNAME ENUMERATION:
// Unknown user and wrong password return the same apperror.InvalidCredentials,
// and an unknown user still pays for one bcrypt comparison (Burn) so the
// response time does not give the answer away either.
func (s *AuthService) Login(ctx context.Context, in Credentials) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return nil, apperror.InvalidCredentials()
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		s.passwords.Burn(in.Password)
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return nil, apperror.InvalidCredentials()
	case err != nil:
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if !s.passwords.Verify(in.Password, user.PasswordHash) {
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return nil, apperror.InvalidCredentials()
	}

	sess, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session: %w", err)
	}

	s.metrics.AuthEvent("login", metrics.OutcomeSuccess)
	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Session: sess}, nil
}

// Logout revokes the session behind token. It is idempotent; the returned
// error only reports a storage failure and the caller still clears the cookie.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("service/auth: revoking session: %w", err)
	}
	s.metrics.AuthEvent("logout", metrics.OutcomeSuccess)
	return nil
}

// CurrentUser resolves token to a user, or nil. It never fails: storage errors
// are logged and the request is treated as anonymous.
//
// Implements auth.UserResolver for the LoadUser middleware.
func (s *AuthService) CurrentUser(ctx context.Context, token string) *model.User {
	userID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			s.logger.Error("resolving session", slog.String("error", err.Error()))
		}
		return nil
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		// A deleted account is just "not logged in".
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("loading session user", slog.String("userID", userID), slog.String("error", err.Error()))
		}
		return nil
	}
	return user
}

var _ auth.UserResolver = (*AuthService)(nil)

// ForgotPassword issues a reset token for the account owning email.
//
// ANTI-ENUMERATION:
// The result is identical whether or not the address is registered. Only a
// missing email is reported back.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperror.ValidationFailed("email", "Email is vereist")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service/auth: looking up email: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("service/auth: generating reset token: %w", err)
	}

	now := s.now().UTC()
	reset := &model.PasswordReset{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ResetTokenTTL),
	}
	if err := s.resets.ReplaceReset(ctx, reset); err != nil {
		return fmt.Errorf("service/auth: storing reset token: %w", err)
	}

	if err := s.notifier.NotifyReset(ctx, user, token); err != nil {
		s.logger.Error("sending reset notification", slog.String("userID", user.ID), slog.String("error", err.Error()))
	}
	s.metrics.AuthEvent("forgot_password", metrics.OutcomeSuccess)
	return nil
}

// newResetToken returns 32 random bytes, hex encoded.
func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type ResetInput struct {
	Token    string `json:"token" validate:"required" msg:"Reset token is vereist"`
	Password string `json:"password" validate:"required,min=6" msg:"Wachtwoord moet minimaal 6 tekens zijn"`
}

// ResetPassword redeems a reset token and logs the account out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if err := check(in); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Wachtwoord mag maximaal %d bytes zijn", auth.MaxPasswordBytes))
	}

	userID, err := s.resets.ConsumeReset(ctx, in.Token, hash, s.now())
	if errors.Is(err, apperror.ErrNotFound) {
		s.metrics.AuthEvent("reset_password", metrics.OutcomeFailure)
		return apperror.ValidationFailed("token", "Ongeldige of verlopen reset link")
	}
	if err != nil {
		return fmt.Errorf("service/auth: consuming reset token: %w", err)
	}

	if n, err := s.sessions.RevokeAll(ctx, userID); err != nil {
		s.logger.Error("revoking sessions after reset", slog.String("userID", userID), slog.String("error", err.Error()))
	} else {
		s.logger.Info("password reset", slog.String("userID", userID), slog.Int64("revokedSessions", n))
	}
	s.metrics.AuthEvent("reset_password", metrics.OutcomeSuccess)
	return nil
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required" msg:"Huidig wachtwoord is vereist"`
	NewPassword     string `json:"newPassword" validate:"required,min=6" msg:"Nieuw wachtwoord moet minimaal 6 tekens zijn"`
}

// ChangePassword replaces the actor's password, revokes every existing session
// and returns a fresh one for the current browser.
func (s *AuthService) ChangePassword(ctx context.Context, actor *model.User, in ChangePasswordInput) (*auth.IssuedSession, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}
	if !s.passwords.Verify(in.CurrentPassword, actor.PasswordHash) {
		return nil, apperror.InvalidCredentials()
	}

	hash, err := s.passwords.Hash(in.NewPassword)
	if err != nil {
		return nil, apperror.ValidationFailed("newPassword",
			fmt.Sprintf("Wachtwoord mag maximaal %d bytes zijn", auth.MaxPasswordBytes))
	}
	if err := s.users.UpdatePasswordHash(ctx, actor.ID, hash); err != nil {
		return nil, fmt.Errorf("service/auth: updating password: %w", err)
	}
	if _, err := s.sessions.RevokeAll(ctx, actor.ID); err != nil {
		return nil, fmt.Errorf("service/auth: revoking sessions: %w", err)
	}

	sess, err := s.sessions.Issue(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session: %w", err)
	}
	s.metrics.AuthEvent("change_password", metrics.OutcomeSuccess)
	return sess, nil
}

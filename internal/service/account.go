package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AccountService groups the account-level admin tools with site settings:
// the user overview, forced logout and the key/value site configuration.
type AccountService struct {
	users    repository.UserRepository
	settings repository.SettingRepository
	sessions *auth.SessionManager
	logger   *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	settings repository.SettingRepository,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{users: users, settings: settings, sessions: sessions, logger: logger}
}

// =========================================================================
// SETTINGS
// =========================================================================

// Settings returns the site configuration as a key → value map.
func (s *AccountService) Settings(ctx context.Context, actor *model.User) (map[string]string, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	list, err := s.settings.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing settings: %w", err)
	}
	out := make(map[string]string, len(list))
	for _, st := range list {
		out[st.Key] = st.Value
	}
	return out, nil
}

// SettingInput allows an empty value (clearing the logo) but not a missing one.
type SettingInput struct {
	Key   string  `json:"key" validate:"required,max=64" msg:"Key en value zijn vereist"`
	Value *string `json:"value"`
}

func (s *AccountService) SaveSetting(ctx context.Context, actor *model.User, in SettingInput) (*model.Setting, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Key = strings.TrimSpace(in.Key)
	if err := check(in); err != nil {
		return nil, err
	}
	if in.Value == nil {
		return nil, apperror.ValidationFailed("value", "Key en value zijn vereist")
	}

	st, err := s.settings.UpsertSetting(ctx, in.Key, *in.Value)
	if err != nil {
		return nil, fmt.Errorf("service/account: saving setting %q: %w", in.Key, err)
	}
	return st, nil
}

// SetEmail stores the actor's email address, used for password resets.
func (s *AccountService) SetEmail(ctx context.Context, actor *model.User, email string) error {
	if err := auth.RequireUser(actor); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return apperror.ValidationFailed("email", "Email is vereist")
	}
	if !emailPattern.MatchString(email) {
		return apperror.ValidationFailed("email", "Ongeldig email formaat")
	}

	if err := s.users.UpdateEmail(ctx, actor.ID, email); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "Dit email adres is al in gebruik", Field: "email"}
		}
		return fmt.Errorf("service/account: updating email: %w", err)
	}
	return nil
}

// =========================================================================
// USERS (admin)
// =========================================================================

func (s *AccountService) ListUsers(ctx context.Context, actor *model.User) ([]model.UserWithCounts, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsersWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing users: %w", err)
	}
	return users, nil
}

// RevokeSessions logs userID out of every browser. Returns how many sessions
// were removed.
func (s *AccountService) RevokeSessions(ctx context.Context, actor *model.User, userID string) (int64, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return 0, err
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return 0, fmt.Errorf("service/account: loading user %s: %w", userID, err)
	}

	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service/account: revoking sessions of %s: %w", userID, err)
	}
	s.logger.Info("sessions revoked by admin",
		slog.String("userID", userID),
		slog.String("by", actor.ID),
		slog.Int64("count", n),
	)
	return n, nil
}

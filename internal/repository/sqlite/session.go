package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

var (
	_ auth.SessionStore                = (*DB)(nil)
	_ repository.ExpiredSessionSweeper = (*DB)(nil)
)

// CreateSession stores s. expires_at is written as unix seconds.
func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, s.ExpiresAt.Unix(), s.CreatedAt.UTC().Truncate(time.Second),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting session for user %s: %w", s.UserID, err)
	}
	return nil
}

// GetSession does not filter on expiry; the session manager decides.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s       model.Session
		expires int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &expires, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Sessie", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}
	s.ExpiresAt = time.Unix(expires, 0).UTC()
	return &s, nil
}

// DeleteSession is idempotent: deleting a missing row is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

func (db *DB) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting sessions of user %s: %w", userID, err)
	}
	return res.RowsAffected()
}

// DeleteExpiredSessions is called by the janitor.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}

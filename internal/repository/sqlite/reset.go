package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

var _ repository.PasswordResetRepository = (*DB)(nil)

// ReplaceReset deletes every earlier token of r.UserID and inserts r in one
// transaction. The UNIQUE(user_id) index backs this up: even a buggy caller
// cannot leave two live tokens for one account.
func (db *DB) ReplaceReset(ctx context.Context, r *model.PasswordReset) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = db.now()
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM password_resets WHERE user_id = ?`, r.UserID); err != nil {
			return fmt.Errorf("sqlite: clearing reset tokens of user %s: %w", r.UserID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO password_resets (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
			r.Token, r.UserID, r.ExpiresAt.Unix(), r.CreatedAt.UTC().Truncate(time.Second),
		); err != nil {
			return fmt.Errorf("sqlite: inserting reset token for user %s: %w", r.UserID, err)
		}
		return nil
	})
}

// ConsumeReset redeems token: the row is deleted and the owner's password hash
// replaced atomically. A token is usable exactly once.
func (db *DB) ConsumeReset(ctx context.Context, token, newHash string, now time.Time) (string, error) {
	var userID string

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var expires int64
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, expires_at FROM password_resets WHERE token = ?`, token,
		).Scan(&userID, &expires)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("Reset token", "")
		}
		if err != nil {
			return fmt.Errorf("sqlite: looking up reset token: %w", err)
		}

		// Expired tokens are removed as a side effect; the tx still commits below.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM password_resets WHERE token = ?`, token); err != nil {
			return fmt.Errorf("sqlite: deleting reset token: %w", err)
		}
		if now.Unix() >= expires {
			userID = ""
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ? WHERE id = ?`, newHash, userID); err != nil {
			return fmt.Errorf("sqlite: storing new password of user %s: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", apperror.NotFound("Reset token", "")
	}
	return userID, nil
}

func (db *DB) DeleteExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM password_resets WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired reset tokens: %w", err)
	}
	return res.RowsAffected()
}

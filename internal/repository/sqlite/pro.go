package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

var _ repository.ProRequestRepository = (*DB)(nil)

const proRequestSelect = `
	SELECT p.id, p.user_id, u.username, p.message, p.status, p.created_at, p.decided_at
	FROM pro_requests p
	LEFT JOIN users u ON u.id = p.user_id`

func scanProRequest(s scanner) (*model.ProRequest, error) {
	var (
		r        model.ProRequest
		username sql.NullString
		message  sql.NullString
		decided  sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.UserID, &username, &message, &r.Status, &r.CreatedAt, &decided); err != nil {
		return nil, err
	}
	if username.Valid {
		r.User = &model.Author{ID: r.UserID, Username: username.String}
	}
	r.Message = stringPtr(message)
	if decided.Valid {
		t := decided.Time
		r.DecidedAt = &t
	}
	return &r, nil
}

func (db *DB) CreateProRequest(ctx context.Context, r *model.ProRequest) error {
	r.ID = xid.New().String()
	r.CreatedAt = db.now()
	r.Status = model.ProRequestPending
	r.DecidedAt = nil

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO pro_requests (id, user_id, message, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, nullString(r.Message), r.Status, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Pro aanvraag", r.UserID)
		}
		return fmt.Errorf("sqlite: inserting pro request of user %s: %w", r.UserID, err)
	}
	return nil
}

func (db *DB) ListProRequests(ctx context.Context, status string) ([]model.ProRequest, error) {
	query := proRequestSelect
	var args []any
	if status != "" {
		query += ` WHERE p.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY p.created_at DESC, p.rowid DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pro requests: %w", err)
	}
	defer rows.Close()

	requests := []model.ProRequest{}
	for rows.Next() {
		r, err := scanProRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning pro request: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating pro requests: %w", err)
	}
	return requests, nil
}

// DecideProRequest closes a pending request. The status change and, on
// approval, the users.is_pro flag are written in one transaction.
func (db *DB) DecideProRequest(ctx context.Context, id, status string) (*model.ProRequest, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var userID, current string
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, status FROM pro_requests WHERE id = ?`, id,
		).Scan(&userID, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("Pro aanvraag", id)
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading pro request %s: %w", id, err)
		}
		if current != model.ProRequestPending {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "Deze aanvraag is al afgehandeld"}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE pro_requests SET status = ?, decided_at = ? WHERE id = ?`, status, db.now(), id,
		); err != nil {
			return fmt.Errorf("sqlite: deciding pro request %s: %w", id, err)
		}
		if status == model.ProRequestApproved {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET is_pro = 1 WHERE id = ?`, userID,
			); err != nil {
				return fmt.Errorf("sqlite: upgrading user %s: %w", userID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r, err := scanProRequest(db.conn.QueryRowContext(ctx, proRequestSelect+` WHERE p.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading pro request %s: %w", id, err)
	}
	return r, nil
}

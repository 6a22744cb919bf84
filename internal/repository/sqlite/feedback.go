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

var (
	_ repository.SupportRepository = (*DB)(nil)
	_ repository.BugRepository     = (*DB)(nil)
)

// =========================================================================
// SUPPORT MESSAGES
// =========================================================================

const supportSelect = `
	SELECT s.id, s.user_id, u.username, s.message, s.type, s.status, s.created_at
	FROM support_messages s
	LEFT JOIN users u ON u.id = s.user_id`

func scanSupportMessage(s scanner) (*model.SupportMessage, error) {
	var (
		m        model.SupportMessage
		username sql.NullString
	)
	if err := s.Scan(&m.ID, &m.UserID, &username, &m.Message, &m.Type, &m.Status, &m.CreatedAt); err != nil {
		return nil, err
	}
	if username.Valid {
		m.User = &model.Author{ID: m.UserID, Username: username.String}
	}
	return &m, nil
}

// ListSupportMessages returns newest first; userID "" means every user.
func (db *DB) ListSupportMessages(ctx context.Context, userID string) ([]model.SupportMessage, error) {
	query := supportSelect
	var args []any
	if userID != "" {
		query += ` WHERE s.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY s.created_at DESC, s.rowid DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing support messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.SupportMessage{}
	for rows.Next() {
		m, err := scanSupportMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning support message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating support messages: %w", err)
	}
	return msgs, nil
}

func (db *DB) CreateSupportMessage(ctx context.Context, m *model.SupportMessage) error {
	m.ID = xid.New().String()
	m.CreatedAt = db.now()
	if m.Status == "" {
		m.Status = "open"
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO support_messages (id, user_id, message, type, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Message, m.Type, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting support message: %w", err)
	}
	return nil
}

func (db *DB) UpdateSupportStatus(ctx context.Context, id, status string) (*model.SupportMessage, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE support_messages SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating support message %s: %w", id, err)
	}
	if err := requireAffected(res, "Bericht", id); err != nil {
		return nil, err
	}

	m, err := scanSupportMessage(db.conn.QueryRowContext(ctx, supportSelect+` WHERE s.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading support message %s: %w", id, err)
	}
	return m, nil
}

// =========================================================================
// BUG REPORTS
// =========================================================================

const bugSelect = `
	SELECT b.id, b.title, b.description, b.priority, b.status, b.reporter_name,
	       b.user_id, u.username, b.created_at
	FROM bug_reports b
	LEFT JOIN users u ON u.id = b.user_id`

func scanBugReport(s scanner) (*model.BugReport, error) {
	var (
		b        model.BugReport
		reporter sql.NullString
		userID   sql.NullString
		uname    sql.NullString
	)
	if err := s.Scan(
		&b.ID, &b.Title, &b.Description, &b.Priority, &b.Status, &reporter,
		&userID, &uname, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.ReporterName = stringPtr(reporter)
	b.UserID = stringPtr(userID)
	if userID.Valid && uname.Valid {
		b.User = &model.Author{ID: userID.String, Username: uname.String}
	}
	return &b, nil
}

// ListBugReports returns every report, newest first.
func (db *DB) ListBugReports(ctx context.Context) ([]model.BugReport, error) {
	rows, err := db.conn.QueryContext(ctx, bugSelect+` ORDER BY b.created_at DESC, b.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing bug reports: %w", err)
	}
	defer rows.Close()

	bugs := []model.BugReport{}
	for rows.Next() {
		b, err := scanBugReport(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning bug report: %w", err)
		}
		bugs = append(bugs, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating bug reports: %w", err)
	}
	return bugs, nil
}

func (db *DB) CreateBugReport(ctx context.Context, b *model.BugReport) error {
	b.ID = xid.New().String()
	b.CreatedAt = db.now()
	if b.Priority == "" {
		b.Priority = "medium"
	}
	if b.Status == "" {
		b.Status = "open"
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO bug_reports (id, title, description, priority, status, reporter_name, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Description, b.Priority, b.Status,
		nullString(b.ReporterName), nullString(b.UserID), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting bug report %q: %w", b.Title, err)
	}
	return nil
}

// UpdateBugReport changes status and/or priority; empty strings keep the current value.
func (db *DB) UpdateBugReport(ctx context.Context, id, status, priority string) (*model.BugReport, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE bug_reports
		 SET status   = COALESCE(NULLIF(?, ''), status),
		     priority = COALESCE(NULLIF(?, ''), priority)
		 WHERE id = ?`, status, priority, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating bug report %s: %w", id, err)
	}
	if err := requireAffected(res, "Bug report", id); err != nil {
		return nil, err
	}

	b, err := scanBugReport(db.conn.QueryRowContext(ctx, bugSelect+` WHERE b.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Bug report", id)
		}
		return nil, fmt.Errorf("sqlite: reading bug report %s: %w", id, err)
	}
	return b, nil
}

func (db *DB) DeleteBugReport(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM bug_reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting bug report %s: %w", id, err)
	}
	return requireAffected(res, "Bug report", id)
}

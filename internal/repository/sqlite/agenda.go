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

var _ repository.AgendaRepository = (*DB)(nil)

const agendaColumns = `id, title, description, test_date, subject, type, created_at`

func scanAgendaItem(s scanner) (*model.AgendaItem, error) {
	var (
		a    model.AgendaItem
		desc sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Title, &desc, &a.TestDate, &a.Subject, &a.Type, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Description = stringPtr(desc)
	return &a, nil
}

// ListAgenda returns agenda items soonest first. subject "" means all subjects.
func (db *DB) ListAgenda(ctx context.Context, subject string) ([]model.AgendaItem, error) {
	query := `SELECT ` + agendaColumns + ` FROM agenda_items`
	var args []any
	if subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY test_date ASC, rowid ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing agenda: %w", err)
	}
	defer rows.Close()

	items := []model.AgendaItem{}
	for rows.Next() {
		a, err := scanAgendaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning agenda item: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating agenda: %w", err)
	}
	return items, nil
}

func (db *DB) GetAgendaItem(ctx context.Context, id string) (*model.AgendaItem, error) {
	a, err := scanAgendaItem(db.conn.QueryRowContext(ctx,
		`SELECT `+agendaColumns+` FROM agenda_items WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Agenda item", id)
		}
		return nil, fmt.Errorf("sqlite: getting agenda item %s: %w", id, err)
	}
	return a, nil
}

func (db *DB) CreateAgendaItem(ctx context.Context, a *model.AgendaItem) error {
	a.ID = xid.New().String()
	a.CreatedAt = db.now()
	a.TestDate = dbTime(a.TestDate)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO agenda_items (`+agendaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, nullString(a.Description), a.TestDate, a.Subject, a.Type, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting agenda item %q: %w", a.Title, err)
	}
	return nil
}

func (db *DB) DeleteAgendaItem(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM agenda_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting agenda item %s: %w", id, err)
	}
	return requireAffected(res, "Agenda item", id)
}

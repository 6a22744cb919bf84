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

var _ repository.SubjectRepository = (*DB)(nil)

const subjectColumns = `id, name, display_name, icon, color, created_at`

func scanSubject(s scanner) (*model.Subject, error) {
	var sub model.Subject
	if err := s.Scan(&sub.ID, &sub.Name, &sub.DisplayName, &sub.Icon, &sub.Color, &sub.CreatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubjects returns every subject ordered by name.
func (db *DB) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing subjects: %w", err)
	}
	defer rows.Close()

	subjects := []model.Subject{}
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning subject: %w", err)
		}
		subjects = append(subjects, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating subjects: %w", err)
	}
	return subjects, nil
}

func (db *DB) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	s, err := scanSubject(db.conn.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Vak", id)
		}
		return nil, fmt.Errorf("sqlite: getting subject %s: %w", id, err)
	}
	return s, nil
}

func (db *DB) CreateSubject(ctx context.Context, s *model.Subject) error {
	s.ID = xid.New().String()
	s.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subjects (`+subjectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.DisplayName, s.Icon, s.Color, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Vak", s.Name)
		}
		return fmt.Errorf("sqlite: inserting subject %q: %w", s.Name, err)
	}
	return nil
}

// UpdateSubject overwrites every mutable column of s.
func (db *DB) UpdateSubject(ctx context.Context, s *model.Subject) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE subjects SET name = ?, display_name = ?, icon = ?, color = ? WHERE id = ?`,
		s.Name, s.DisplayName, s.Icon, s.Color, s.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Vak", s.Name)
		}
		return fmt.Errorf("sqlite: updating subject %s: %w", s.ID, err)
	}
	return requireAffected(res, "Vak", s.ID)
}

func (db *DB) DeleteSubject(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting subject %s: %w", id, err)
	}
	return requireAffected(res, "Vak", id)
}

// UpsertSubject inserts s or refreshes the row with the same name. Used by
// /setup to seed the default subjects; repeated runs keep the original ids.
func (db *DB) UpsertSubject(ctx context.Context, s *model.Subject) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subjects (`+subjectColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     display_name = excluded.display_name,
		     icon         = excluded.icon,
		     color        = excluded.color`,
		xid.New().String(), s.Name, s.DisplayName, s.Icon, s.Color, db.now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting subject %q: %w", s.Name, err)
	}

	stored, err := scanSubject(db.conn.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE name = ?`, s.Name))
	if err != nil {
		return fmt.Errorf("sqlite: reading upserted subject %q: %w", s.Name, err)
	}
	*s = *stored
	return nil
}

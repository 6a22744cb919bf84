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

var _ repository.MaterialRepository = (*DB)(nil)

// materialSelect joins the author so list and detail views can show who wrote it.
const materialSelect = `
	SELECT m.id, m.title, m.description, m.content, m.file_url, m.subject,
	       m.author_id, u.username, m.created_at, m.updated_at
	FROM materials m
	LEFT JOIN users u ON u.id = m.author_id`

func scanMaterial(s scanner) (*model.Material, error) {
	var (
		m        model.Material
		fileURL  sql.NullString
		username sql.NullString
	)
	if err := s.Scan(
		&m.ID, &m.Title, &m.Description, &m.Content, &fileURL, &m.Subject,
		&m.AuthorID, &username, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.FileURL = stringPtr(fileURL)
	if username.Valid {
		m.Author = &model.Author{ID: m.AuthorID, Username: username.String}
	}
	return &m, nil
}

// ListMaterials returns newest first; subject "" means all subjects.
func (db *DB) ListMaterials(ctx context.Context, subject string) ([]model.Material, error) {
	query := materialSelect
	var args []any
	if subject != "" {
		query += ` WHERE m.subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY m.created_at DESC, m.rowid DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing materials: %w", err)
	}
	defer rows.Close()

	materials := []model.Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning material: %w", err)
		}
		materials = append(materials, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating materials: %w", err)
	}
	return materials, nil
}

func (db *DB) GetMaterial(ctx context.Context, id string) (*model.Material, error) {
	m, err := scanMaterial(db.conn.QueryRowContext(ctx, materialSelect+` WHERE m.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Bestand", id)
		}
		return nil, fmt.Errorf("sqlite: getting material %s: %w", id, err)
	}
	return m, nil
}

func (db *DB) CreateMaterial(ctx context.Context, m *model.Material) error {
	now := db.now()
	m.ID = xid.New().String()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO materials (id, title, description, content, file_url, subject, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Description, m.Content, nullString(m.FileURL), m.Subject, m.AuthorID, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting material %q: %w", m.Title, err)
	}
	return nil
}

// UpdateMaterial writes every mutable column and bumps UpdatedAt. Partial
// updates are merged by the service before calling this.
func (db *DB) UpdateMaterial(ctx context.Context, m *model.Material) error {
	m.UpdatedAt = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE materials SET title = ?, description = ?, content = ?, file_url = ?, subject = ?, updated_at = ?
		 WHERE id = ?`,
		m.Title, m.Description, m.Content, nullString(m.FileURL), m.Subject, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating material %s: %w", m.ID, err)
	}
	return requireAffected(res, "Bestand", m.ID)
}

func (db *DB) DeleteMaterial(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM materials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting material %s: %w", id, err)
	}
	return requireAffected(res, "Bestand", id)
}

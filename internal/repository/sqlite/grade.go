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

var _ repository.GradeRepository = (*DB)(nil)

const gradeColumns = `id, student_id, subject, test_name, grade, max_grade, date, comment, is_student_added, created_at`

func scanGrade(s scanner) (*model.Grade, error) {
	var (
		g       model.Grade
		comment sql.NullString
	)
	if err := s.Scan(
		&g.ID, &g.StudentID, &g.Subject, &g.TestName, &g.Grade, &g.MaxGrade,
		&g.Date, &comment, &g.IsStudentAdded, &g.CreatedAt,
	); err != nil {
		return nil, err
	}
	g.Comment = stringPtr(comment)
	return &g, nil
}

// ListGradesByStudent returns the grades of one student, most recent test first.
func (db *DB) ListGradesByStudent(ctx context.Context, studentID string) ([]model.Grade, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+gradeColumns+` FROM grades WHERE student_id = ?
		 ORDER BY date DESC, rowid DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing grades of %s: %w", studentID, err)
	}
	defer rows.Close()

	grades := []model.Grade{}
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning grade: %w", err)
		}
		grades = append(grades, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating grades: %w", err)
	}
	return grades, nil
}

func (db *DB) GetGrade(ctx context.Context, id string) (*model.Grade, error) {
	g, err := scanGrade(db.conn.QueryRowContext(ctx,
		`SELECT `+gradeColumns+` FROM grades WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Cijfer", id)
		}
		return nil, fmt.Errorf("sqlite: getting grade %s: %w", id, err)
	}
	return g, nil
}

func (db *DB) CreateGrade(ctx context.Context, g *model.Grade) error {
	g.ID = xid.New().String()
	g.CreatedAt = db.now()
	g.Date = dbTime(g.Date)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO grades (`+gradeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.StudentID, g.Subject, g.TestName, g.Grade, g.MaxGrade,
		g.Date, nullString(g.Comment), g.IsStudentAdded, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting grade for %s: %w", g.StudentID, err)
	}
	return nil
}

func (db *DB) DeleteGrade(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM grades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting grade %s: %w", id, err)
	}
	return requireAffected(res, "Cijfer", id)
}

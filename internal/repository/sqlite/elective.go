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

var _ repository.ElectiveRepository = (*DB)(nil)

const electiveSelect = `
	SELECT e.id, e.name, e.description, e.teacher, e.max_students, e.day, e.period,
	       e.is_active, e.created_at,
	       (SELECT COUNT(*) FROM elective_enrollments x WHERE x.elective_id = e.id)
	FROM electives e`

func scanElective(s scanner) (*model.Elective, error) {
	var (
		e       model.Elective
		desc    sql.NullString
		teacher sql.NullString
		day     sql.NullString
		period  sql.NullInt64
	)
	if err := s.Scan(
		&e.ID, &e.Name, &desc, &teacher, &e.MaxStudents, &day, &period,
		&e.IsActive, &e.CreatedAt, &e.Enrolled,
	); err != nil {
		return nil, err
	}
	e.Description = stringPtr(desc)
	e.Teacher = stringPtr(teacher)
	e.Day = stringPtr(day)
	if period.Valid {
		p := int(period.Int64)
		e.Period = &p
	}
	return &e, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// ListElectives returns electives by name. The roster is read in a second
// query after the first result set is closed; the pool has one connection.
func (db *DB) ListElectives(ctx context.Context, activeOnly, withStudents bool) ([]model.Elective, error) {
	electives, err := db.listElectives(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if !withStudents || len(electives) == 0 {
		return electives, nil
	}

	rosters, err := db.electiveRosters(ctx)
	if err != nil {
		return nil, err
	}
	for i := range electives {
		electives[i].Students = rosters[electives[i].ID]
		if electives[i].Students == nil {
			electives[i].Students = []model.Author{}
		}
	}
	return electives, nil
}

func (db *DB) listElectives(ctx context.Context, activeOnly bool) ([]model.Elective, error) {
	query := electiveSelect
	if activeOnly {
		query += ` WHERE e.is_active = 1`
	}
	query += ` ORDER BY e.name ASC, e.rowid ASC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing electives: %w", err)
	}
	defer rows.Close()

	electives := []model.Elective{}
	for rows.Next() {
		e, err := scanElective(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning elective: %w", err)
		}
		electives = append(electives, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating electives: %w", err)
	}
	return electives, nil
}

// electiveRosters maps elective id to its enrolled students, by username.
func (db *DB) electiveRosters(ctx context.Context) (map[string][]model.Author, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT x.elective_id, u.id, u.username
		 FROM elective_enrollments x
		 JOIN users u ON u.id = x.user_id
		 ORDER BY u.username ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing elective rosters: %w", err)
	}
	defer rows.Close()

	rosters := make(map[string][]model.Author)
	for rows.Next() {
		var electiveID string
		var a model.Author
		if err := rows.Scan(&electiveID, &a.ID, &a.Username); err != nil {
			return nil, fmt.Errorf("sqlite: scanning enrollment: %w", err)
		}
		rosters[electiveID] = append(rosters[electiveID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating enrollments: %w", err)
	}
	return rosters, nil
}

func (db *DB) GetElective(ctx context.Context, id string) (*model.Elective, error) {
	e, err := scanElective(db.conn.QueryRowContext(ctx, electiveSelect+` WHERE e.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Keuzeles", id)
		}
		return nil, fmt.Errorf("sqlite: getting elective %s: %w", id, err)
	}
	return e, nil
}

func (db *DB) CreateElective(ctx context.Context, e *model.Elective) error {
	e.ID = xid.New().String()
	e.CreatedAt = db.now()
	e.Enrolled = 0

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO electives (id, name, description, teacher, max_students, day, period, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, nullString(e.Description), nullString(e.Teacher), e.MaxStudents,
		nullString(e.Day), nullInt(e.Period), e.IsActive, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting elective %q: %w", e.Name, err)
	}
	return nil
}

// UpdateElective overwrites every mutable column of e. Lowering MaxStudents
// below the current enrollment keeps everyone enrolled; it only stops new
// enrollments.
func (db *DB) UpdateElective(ctx context.Context, e *model.Elective) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE electives
		 SET name = ?, description = ?, teacher = ?, max_students = ?, day = ?, period = ?, is_active = ?
		 WHERE id = ?`,
		e.Name, nullString(e.Description), nullString(e.Teacher), e.MaxStudents,
		nullString(e.Day), nullInt(e.Period), e.IsActive, e.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating elective %s: %w", e.ID, err)
	}
	return requireAffected(res, "Keuzeles", e.ID)
}

// DeleteElective removes the elective; enrollments go with it (ON DELETE CASCADE).
func (db *DB) DeleteElective(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM electives WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting elective %s: %w", id, err)
	}
	return requireAffected(res, "Keuzeles", id)
}

func (db *DB) ListEnrollments(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT elective_id FROM elective_enrollments WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing enrollments of user %s: %w", userID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning enrollment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating enrollments: %w", err)
	}
	return ids, nil
}

// ToggleEnrollment flips the enrollment of userID in one transaction, so two
// students racing for the last seat cannot both get it.
func (db *DB) ToggleEnrollment(ctx context.Context, userID, electiveID string) (bool, error) {
	var enrolled bool

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM elective_enrollments WHERE user_id = ? AND elective_id = ?`, userID, electiveID)
		if err != nil {
			return fmt.Errorf("sqlite: unenrolling user %s: %w", userID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: reading affected rows: %w", err)
		} else if n > 0 {
			enrolled = false
			return nil
		}

		var (
			maxStudents, taken int
			active             bool
		)
		err = tx.QueryRowContext(ctx,
			`SELECT e.max_students, e.is_active,
			        (SELECT COUNT(*) FROM elective_enrollments x WHERE x.elective_id = e.id)
			 FROM electives e WHERE e.id = ?`, electiveID,
		).Scan(&maxStudents, &active, &taken)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
			return apperror.NotFound("Keuzeles", electiveID)
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading elective %s: %w", electiveID, err)
		}
		if taken >= maxStudents {
			return repository.ErrElectiveFull
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO elective_enrollments (user_id, elective_id, created_at) VALUES (?, ?, ?)`,
			userID, electiveID, db.now(),
		); err != nil {
			return fmt.Errorf("sqlite: enrolling user %s: %w", userID, err)
		}
		enrolled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return enrolled, nil
}

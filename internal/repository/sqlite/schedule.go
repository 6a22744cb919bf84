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

var _ repository.ScheduleRepository = (*DB)(nil)

const scheduleColumns = `id, day, period, subject, room, teacher, start_time, end_time, created_at`

// weekdayOrder sorts day names in week order instead of alphabetically.
const weekdayOrder = `CASE day
	WHEN 'maandag'   THEN 1
	WHEN 'dinsdag'   THEN 2
	WHEN 'woensdag'  THEN 3
	WHEN 'donderdag' THEN 4
	WHEN 'vrijdag'   THEN 5
	ELSE 6 END`

func scanScheduleEntry(s scanner) (*model.ScheduleEntry, error) {
	var (
		e       model.ScheduleEntry
		room    sql.NullString
		teacher sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Day, &e.Period, &e.Subject, &room, &teacher, &e.StartTime, &e.EndTime, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Room = stringPtr(room)
	e.Teacher = stringPtr(teacher)
	return &e, nil
}

func (db *DB) ListSchedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedule_entries
		 ORDER BY `+weekdayOrder+`, period ASC, start_time ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing schedule: %w", err)
	}
	defer rows.Close()

	entries := []model.ScheduleEntry{}
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning schedule entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating schedule: %w", err)
	}
	return entries, nil
}

func (db *DB) GetScheduleEntry(ctx context.Context, id string) (*model.ScheduleEntry, error) {
	e, err := scanScheduleEntry(db.conn.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedule_entries WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Rooster item", id)
		}
		return nil, fmt.Errorf("sqlite: getting schedule entry %s: %w", id, err)
	}
	return e, nil
}

func (db *DB) CreateScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	e.ID = xid.New().String()
	e.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO schedule_entries (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Day, e.Period, e.Subject, nullString(e.Room), nullString(e.Teacher), e.StartTime, e.EndTime, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting schedule entry %s/%d: %w", e.Day, e.Period, err)
	}
	return nil
}

// UpdateScheduleEntry overwrites every mutable column of e.
func (db *DB) UpdateScheduleEntry(ctx context.Context, e *model.ScheduleEntry) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE schedule_entries
		 SET day = ?, period = ?, subject = ?, room = ?, teacher = ?, start_time = ?, end_time = ?
		 WHERE id = ?`,
		e.Day, e.Period, e.Subject, nullString(e.Room), nullString(e.Teacher), e.StartTime, e.EndTime, e.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating schedule entry %s: %w", e.ID, err)
	}
	return requireAffected(res, "Rooster item", e.ID)
}

func (db *DB) DeleteScheduleEntry(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting schedule entry %s: %w", id, err)
	}
	return requireAffected(res, "Rooster item", id)
}

package sqlite

import (
	"context"
	"fmt"

	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

var _ repository.SettingRepository = (*DB)(nil)

func (db *DB) ListSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing settings: %w", err)
	}
	defer rows.Close()

	settings := []model.Setting{}
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning setting: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating settings: %w", err)
	}
	return settings, nil
}

// UpsertSetting writes key=value, creating the key on first use.
func (db *DB) UpsertSetting(ctx context.Context, key, value string) (*model.Setting, error) {
	s := &model.Setting{Key: key, Value: value, UpdatedAt: db.now()}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.Key, s.Value, s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting setting %q: %w", key, err)
	}
	return s, nil
}

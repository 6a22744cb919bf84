package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

var _ repository.ChatHistoryRepository = (*DB)(nil)

const chatColumns = `id, user_id, subject, model, messages, created_at, updated_at`

// MESSAGES AS JSON:
// A conversation is always read and written as a whole, never queried by
// message, so the turns live in one TEXT column instead of a child table.
func scanChatHistory(s scanner) (*model.ChatHistory, error) {
	var (
		h        model.ChatHistory
		subject  sql.NullString
		messages string
	)
	if err := s.Scan(&h.ID, &h.UserID, &subject, &h.Model, &messages, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	h.Subject = stringPtr(subject)
	if err := json.Unmarshal([]byte(messages), &h.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages of chat %s: %w", h.ID, err)
	}
	if h.Messages == nil {
		h.Messages = []model.ChatMessage{}
	}
	return &h, nil
}

func encodeMessages(msgs []model.ChatMessage) (string, error) {
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding chat messages: %w", err)
	}
	return string(b), nil
}

// ListChatHistories returns the limit most recently updated conversations of userID.
func (db *DB) ListChatHistories(ctx context.Context, userID string, limit int) ([]model.ChatHistory, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chat_histories WHERE user_id = ?
		 ORDER BY updated_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing chat histories of %s: %w", userID, err)
	}
	defer rows.Close()

	histories := []model.ChatHistory{}
	for rows.Next() {
		h, err := scanChatHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning chat history: %w", err)
		}
		histories = append(histories, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating chat histories: %w", err)
	}
	return histories, nil
}

func (db *DB) GetChatHistory(ctx context.Context, id string) (*model.ChatHistory, error) {
	h, err := scanChatHistory(db.conn.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chat_histories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Chat geschiedenis", id)
		}
		return nil, fmt.Errorf("sqlite: getting chat history %s: %w", id, err)
	}
	return h, nil
}

func (db *DB) CreateChatHistory(ctx context.Context, h *model.ChatHistory) error {
	msgs, err := encodeMessages(h.Messages)
	if err != nil {
		return err
	}
	now := db.now()
	h.ID = xid.New().String()
	h.CreatedAt = now
	h.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO chat_histories (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, nullString(h.Subject), h.Model, msgs, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting chat history for %s: %w", h.UserID, err)
	}
	return nil
}

// UpdateChatHistory replaces subject, model and messages and bumps UpdatedAt.
func (db *DB) UpdateChatHistory(ctx context.Context, h *model.ChatHistory) error {
	msgs, err := encodeMessages(h.Messages)
	if err != nil {
		return err
	}
	h.UpdatedAt = db.now()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE chat_histories SET subject = ?, model = ?, messages = ?, updated_at = ? WHERE id = ?`,
		nullString(h.Subject), h.Model, msgs, h.UpdatedAt, h.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating chat history %s: %w", h.ID, err)
	}
	return requireAffected(res, "Chat geschiedenis", h.ID)
}

func (db *DB) DeleteChatHistory(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM chat_histories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting chat history %s: %w", id, err)
	}
	return requireAffected(res, "Chat geschiedenis", id)
}

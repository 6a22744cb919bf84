package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
)

func countResets(t *testing.T, db *DB, userID string) int {
	t.Helper()
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM password_resets WHERE user_id = ?`, userID).Scan(&n); err != nil {
		t.Fatalf("counting resets: %v", err)
	}
	return n
}

func TestReplaceReset_KeepsOneTokenPerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice", model.RoleStudent)
	exp := time.Now().Add(time.Hour)

	for _, tok := range []string{"t1", "t2", "t3"} {
		if err := db.ReplaceReset(ctx, &model.PasswordReset{Token: tok, UserID: u.ID, ExpiresAt: exp}); err != nil {
			t.Fatalf("ReplaceReset(%s) error = %v", tok, err)
		}
	}

	if n := countResets(t, db, u.ID); n != 1 {
		t.Fatalf("reset rows = %d, want 1", n)
	}

	// Only the latest token works.
	if _, err := db.ConsumeReset(ctx, "t1", "h", time.Now()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ConsumeReset(t1) error = %v, want ErrNotFound", err)
	}
	if _, err := db.ConsumeReset(ctx, "t3", "h", time.Now()); err != nil {
		t.Errorf("ConsumeReset(t3) error = %v", err)
	}
}

func TestConsumeReset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice", model.RoleStudent)

	if err := db.ReplaceReset(ctx, &model.PasswordReset{Token: "tok", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("ReplaceReset() error = %v", err)
	}

	uid, err := db.ConsumeReset(ctx, "tok", "fresh-hash", time.Now())
	if err != nil {
		t.Fatalf("ConsumeReset() error = %v", err)
	}
	if uid != u.ID {
		t.Errorf("user id = %q, want %q", uid, u.ID)
	}

	stored, _ := db.GetUserByID(ctx, u.ID)
	if stored.PasswordHash != "fresh-hash" {
		t.Errorf("PasswordHash = %q, want fresh-hash", stored.PasswordHash)
	}

	// Single use.
	if _, err := db.ConsumeReset(ctx, "tok", "again", time.Now()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second ConsumeReset() error = %v, want ErrNotFound", err)
	}
}

func TestConsumeReset_Expired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice", model.RoleStudent)
	now := time.Now()

	_ = db.ReplaceReset(ctx, &model.PasswordReset{Token: "old", UserID: u.ID, ExpiresAt: now.Add(-time.Second)})

	if _, err := db.ConsumeReset(ctx, "old", "h", now); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("ConsumeReset() error = %v, want ErrNotFound", err)
	}

	stored, _ := db.GetUserByID(ctx, u.ID)
	if stored.PasswordHash == "h" {
		t.Error("expired token changed the password")
	}
	if n := countResets(t, db, u.ID); n != 0 {
		t.Errorf("expired token row not cleaned up, rows = %d", n)
	}
}

func TestDeleteExpiredResets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice", model.RoleStudent)
	bob := createTestUser(t, db, "bob", model.RoleStudent)
	now := time.Now()

	_ = db.ReplaceReset(ctx, &model.PasswordReset{Token: "a", UserID: alice.ID, ExpiresAt: now.Add(-time.Hour)})
	_ = db.ReplaceReset(ctx, &model.PasswordReset{Token: "b", UserID: bob.ID, ExpiresAt: now.Add(time.Hour)})

	n, err := db.DeleteExpiredResets(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredResets() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if countResets(t, db, bob.ID) != 1 {
		t.Error("live token removed")
	}
}

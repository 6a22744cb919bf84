package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
)

// =========================================================================
// CHAT HISTORIES
// =========================================================================

func TestChatHistories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	stepClock(db, mustTime(t, "2024-01-01T08:00:00Z"))
	alice := createTestUser(t, db, "alice", model.RoleStudent)
	bob := createTestUser(t, db, "bob", model.RoleStudent)

	subject := "wiskunde"
	a := &model.ChatHistory{UserID: alice.ID, Subject: &subject, Model: "m", Messages: []model.ChatMessage{{Role: "user", Content: "hoi"}}}
	b := &model.ChatHistory{UserID: alice.ID, Model: "m"}
	for _, h := range []*model.ChatHistory{a, b, {UserID: bob.ID, Model: "m"}} {
		if err := db.CreateChatHistory(ctx, h); err != nil {
			t.Fatalf("CreateChatHistory() error = %v", err)
		}
	}

	// Touch a so it becomes the most recently updated.
	a.Messages = append(a.Messages, model.ChatMessage{Role: "assistant", Content: "hallo"})
	if err := db.UpdateChatHistory(ctx, a); err != nil {
		t.Fatalf("UpdateChatHistory() error = %v", err)
	}

	list, err := db.ListChatHistories(ctx, alice.ID, 50)
	if err != nil {
		t.Fatalf("ListChatHistories() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID {
		t.Fatalf("ListChatHistories() = %+v, want a first", list)
	}
	if len(list[0].Messages) != 2 || list[0].Messages[1].Content != "hallo" {
		t.Errorf("Messages = %+v", list[0].Messages)
	}
	if list[1].Messages == nil || len(list[1].Messages) != 0 {
		t.Errorf("empty history Messages = %#v, want empty slice", list[1].Messages)
	}

	limited, _ := db.ListChatHistories(ctx, alice.ID, 1)
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d rows", len(limited))
	}

	if err := db.DeleteChatHistory(ctx, b.ID); err != nil {
		t.Fatalf("DeleteChatHistory() error = %v", err)
	}
	if _, err := db.GetChatHistory(ctx, b.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetChatHistory() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SUPPORT & BUGS
// =========================================================================

func TestSupportMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	stepClock(db, mustTime(t, "2024-01-01T08:00:00Z"))
	alice := createTestUser(t, db, "alice", model.RoleStudent)
	bob := createTestUser(t, db, "bob", model.RoleStudent)

	m1 := &model.SupportMessage{UserID: alice.ID, Message: "vraag", Type: "question"}
	m2 := &model.SupportMessage{UserID: bob.ID, Message: "idee", Type: "suggestion"}
	for _, m := range []*model.SupportMessage{m1, m2} {
		if err := db.CreateSupportMessage(ctx, m); err != nil {
			t.Fatalf("CreateSupportMessage() error = %v", err)
		}
	}
	if m1.Status != "open" {
		t.Errorf("default Status = %q, want open", m1.Status)
	}

	all, _ := db.ListSupportMessages(ctx, "")
	if len(all) != 2 || all[0].ID != m2.ID {
		t.Errorf("ListSupportMessages() = %+v, want newest first", all)
	}
	if all[0].User == nil || all[0].User.Username != "bob" {
		t.Errorf("User = %+v, want bob", all[0].User)
	}

	own, _ := db.ListSupportMessages(ctx, alice.ID)
	if len(own) != 1 || own[0].ID != m1.ID {
		t.Errorf("ListSupportMessages(alice) = %+v", own)
	}

	updated, err := db.UpdateSupportStatus(ctx, m1.ID, "resolved")
	if err != nil {
		t.Fatalf("UpdateSupportStatus() error = %v", err)
	}
	if updated.Status != "resolved" {
		t.Errorf("Status = %q, want resolved", updated.Status)
	}
	if _, err := db.UpdateSupportStatus(ctx, "ghost", "resolved"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestBugReports(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	stepClock(db, mustTime(t, "2024-01-01T08:00:00Z"))
	alice := createTestUser(t, db, "alice", model.RoleStudent)

	name := "Anoniem"
	anon := &model.BugReport{Title: "Knop werkt niet", Description: "Login knop", ReporterName: &name}
	owned := &model.BugReport{Title: "Typo", Description: "Op home", Priority: "low", UserID: &alice.ID}
	for _, b := range []*model.BugReport{anon, owned} {
		if err := db.CreateBugReport(ctx, b); err != nil {
			t.Fatalf("CreateBugReport() error = %v", err)
		}
	}
	if anon.Priority != "medium" || anon.Status != "open" {
		t.Errorf("defaults = %q/%q, want medium/open", anon.Priority, anon.Status)
	}

	list, err := db.ListBugReports(ctx)
	if err != nil {
		t.Fatalf("ListBugReports() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != owned.ID {
		t.Fatalf("ListBugReports() = %+v, want newest first", list)
	}
	if list[0].User == nil || list[0].User.Username != "alice" {
		t.Errorf("owned report User = %+v", list[0].User)
	}
	if list[1].User != nil || list[1].UserID != nil {
		t.Errorf("anonymous report has user %+v", list[1].User)
	}

	// Status only: priority keeps its value.
	b, err := db.UpdateBugReport(ctx, owned.ID, "resolved", "")
	if err != nil {
		t.Fatalf("UpdateBugReport() error = %v", err)
	}
	if b.Status != "resolved" || b.Priority != "low" {
		t.Errorf("UpdateBugReport() = %s/%s, want resolved/low", b.Status, b.Priority)
	}

	if err := db.DeleteBugReport(ctx, anon.ID); err != nil {
		t.Fatalf("DeleteBugReport() error = %v", err)
	}
	if err := db.DeleteBugReport(ctx, anon.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteBugReport() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SETTINGS
// =========================================================================

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertSetting(ctx, "siteName", "EduLearn"); err != nil {
		t.Fatalf("UpsertSetting() error = %v", err)
	}
	s, err := db.UpsertSetting(ctx, "siteName", "EduLearn AI")
	if err != nil {
		t.Fatalf("second UpsertSetting() error = %v", err)
	}
	if s.Value != "EduLearn AI" {
		t.Errorf("Value = %q", s.Value)
	}

	list, _ := db.ListSettings(ctx)
	if len(list) != 1 || list[0].Value != "EduLearn AI" {
		t.Errorf("ListSettings() = %+v", list)
	}
}

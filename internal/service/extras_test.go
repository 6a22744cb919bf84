package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
)

// =========================================================================
// SCHEDULE
// =========================================================================

func TestLooseInt(t *testing.T) {
	var in ScheduleInput
	if err := json.Unmarshal([]byte(`{"period":"3"}`), &in); err != nil {
		t.Fatalf("string period: %v", err)
	}
	if in.Period == nil || *in.Period != 3 {
		t.Errorf("Period = %v, want 3", in.Period)
	}
	if err := json.Unmarshal([]byte(`{"period":4}`), &in); err != nil || *in.Period != 4 {
		t.Errorf("numeric period: %v, %v", in.Period, err)
	}
	if err := json.Unmarshal([]byte(`{"period":"derde"}`), &in); err == nil {
		t.Error("non-numeric period accepted")
	}
}

func TestScheduleCreate(t *testing.T) {
	store := newFakeStore()
	svc := NewScheduleService(store, testLogger())
	ctx := context.Background()
	admin := seedUser(t, store, "admin", model.RoleAdmin)
	student := seedUser(t, store, "alice", model.RoleStudent)
	period := looseInt(2)

	_, err := svc.Create(ctx, nil, ScheduleInput{Day: "maandag", Period: &period, Subject: "wiskunde"})
	assertKind(t, err, apperror.ErrUnauthorized)
	_, err = svc.Create(ctx, student, ScheduleInput{Day: "maandag", Period: &period, Subject: "wiskunde"})
	assertKind(t, err, apperror.ErrForbidden)

	_, err = svc.Create(ctx, admin, ScheduleInput{Day: "maandag", Subject: "wiskunde"})
	assertKind(t, err, apperror.ErrValidation)

	e, err := svc.Create(ctx, admin, ScheduleInput{Day: " Maandag ", Period: &period, Subject: "wiskunde", Room: ptr("  ")})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.Day != "maandag" || e.Period != 2 || e.StartTime != "08:30" || e.EndTime != "09:20" || e.Room != nil {
		t.Errorf("entry = %+v", e)
	}

	tests := []struct {
		name  string
		in    ScheduleInput
		field string
	}{
		{"weekend", ScheduleInput{Day: "zaterdag", Period: &period, Subject: "x"}, "day"},
		{"bad time", ScheduleInput{Day: "dinsdag", Period: &period, Subject: "x", StartTime: "8 uur"}, "startTime"},
		{"end before start", ScheduleInput{Day: "dinsdag", Period: &period, Subject: "x", StartTime: "10:00", EndTime: "09:00"}, "endTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, admin, tt.in)
			var ae *apperror.AppError
			if !errors.As(err, &ae) || !errors.Is(err, apperror.ErrValidation) || ae.Field != tt.field {
				t.Errorf("Create() error = %v, want validation on %s", err, tt.field)
			}
		})
	}

	zero := looseInt(0)
	_, err = svc.Create(ctx, admin, ScheduleInput{Day: "dinsdag", Period: &zero, Subject: "x"})
	assertKind(t, err, apperror.ErrValidation)
}

func TestScheduleUpdateAndList(t *testing.T) {
	store := newFakeStore()
	svc := NewScheduleService(store, testLogger())
	ctx := context.Background()
	admin := seedUser(t, store, "admin", model.RoleAdmin)
	student := seedUser(t, store, "alice", model.RoleStudent)

	one, two := looseInt(1), looseInt(2)
	fri, err := svc.Create(ctx, admin, ScheduleInput{Day: "vrijdag", Period: &one, Subject: "engels", Teacher: ptr("Jansen")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, admin, ScheduleInput{Day: "maandag", Period: &two, Subject: "wiskunde"}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Update(ctx, admin, fri.ID, SchedulePatch{Day: ptr("Donderdag"), Teacher: ptr("")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Day != "donderdag" || got.Teacher != nil || got.Subject != "engels" {
		t.Errorf("updated = %+v", got)
	}

	_, err = svc.Update(ctx, admin, fri.ID, SchedulePatch{EndTime: ptr("07:00")})
	assertKind(t, err, apperror.ErrValidation)
	_, err = svc.Update(ctx, student, fri.ID, SchedulePatch{Subject: ptr("x")})
	assertKind(t, err, apperror.ErrForbidden)
	_, err = svc.Update(ctx, admin, "missing", SchedulePatch{})
	assertKind(t, err, apperror.ErrNotFound)

	list, err := svc.List(ctx, student)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Day != "maandag" || list[1].Day != "donderdag" {
		t.Errorf("List() = %+v", list)
	}
	_, err = svc.List(ctx, nil)
	assertKind(t, err, apperror.ErrUnauthorized)

	assertKind(t, svc.Delete(ctx, student, fri.ID), apperror.ErrForbidden)
	if err := svc.Delete(ctx, admin, fri.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	assertKind(t, svc.Delete(ctx, admin, fri.ID), apperror.ErrNotFound)
}

// =========================================================================
// ELECTIVES
// =========================================================================

func TestElectiveCreateAndUpdate(t *testing.T) {
	store := newFakeStore()
	svc := NewElectiveService(store, testLogger())
	ctx := context.Background()
	admin := seedUser(t, store, "admin", model.RoleAdmin)
	student := seedUser(t, store, "alice", model.RoleStudent)

	_, err := svc.Create(ctx, student, ElectiveInput{Name: "Drama"})
	assertKind(t, err, apperror.ErrForbidden)
	_, err = svc.Create(ctx, admin, ElectiveInput{Name: "  "})
	assertKind(t, err, apperror.ErrValidation)

	e, err := svc.Create(ctx, admin, ElectiveInput{Name: "Drama", Day: ptr("Woensdag")})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.MaxStudents != defaultMaxStudents || !e.IsActive || e.Day == nil || *e.Day != "woensdag" {
		t.Errorf("elective = %+v", e)
	}

	zero := looseInt(0)
	_, err = svc.Create(ctx, admin, ElectiveInput{Name: "Leeg", MaxStudents: &zero})
	assertKind(t, err, apperror.ErrValidation)

	five := looseInt(5)
	got, err := svc.Update(ctx, admin, e.ID, ElectivePatch{MaxStudents: &five, IsActive: ptr(false), Description: ptr("Toneel")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.MaxStudents != 5 || got.IsActive || got.Description == nil || got.Name != "Drama" {
		t.Errorf("updated = %+v", got)
	}
	_, err = svc.Update(ctx, admin, e.ID, ElectivePatch{MaxStudents: &zero})
	assertKind(t, err, apperror.ErrValidation)
}

func TestElectiveEnrollment(t *testing.T) {
	store := newFakeStore()
	svc := NewElectiveService(store, testLogger())
	ctx := context.Background()
	admin := seedUser(t, store, "admin", model.RoleAdmin)
	alice := seedUser(t, store, "alice", model.RoleStudent)
	bob := seedUser(t, store, "bob", model.RoleStudent)

	one := looseInt(1)
	e, err := svc.Create(ctx, admin, ElectiveInput{Name: "Schaken", MaxStudents: &one})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.ToggleEnrollment(ctx, nil, e.ID)
	assertKind(t, err, apperror.ErrUnauthorized)
	_, err = svc.ToggleEnrollment(ctx, alice, " ")
	assertKind(t, err, apperror.ErrValidation)

	selected, err := svc.ToggleEnrollment(ctx, alice, e.ID)
	if err != nil || !selected {
		t.Fatalf("ToggleEnrollment(alice) = %v, %v", selected, err)
	}

	_, err = svc.ToggleEnrollment(ctx, bob, e.ID)
	var ae *apperror.AppError
	if !errors.As(err, &ae) || ae.Message != msgElectiveFull || !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ToggleEnrollment(bob) error = %v, want %q", err, msgElectiveFull)
	}

	_, err = svc.ToggleEnrollment(ctx, bob, "missing")
	assertKind(t, err, apperror.ErrNotFound)

	list, err := svc.List(ctx, alice, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list.Enrolled) != 1 || list.Enrolled[0] != e.ID {
		t.Errorf("Enrolled = %v", list.Enrolled)
	}
	if list.Electives[0].Students != nil {
		t.Error("students received the roster")
	}
	if list.Electives[0].Enrolled != 1 {
		t.Errorf("Enrolled count = %d, want 1", list.Electives[0].Enrolled)
	}

	adminView, err := svc.List(ctx, admin, true)
	if err != nil {
		t.Fatal(err)
	}
	if roster := adminView.Electives[0].Students; len(roster) != 1 || roster[0].Username != "alice" {
		t.Errorf("admin roster = %+v", roster)
	}

	selected, err = svc.ToggleEnrollment(ctx, alice, e.ID)
	if err != nil || selected {
		t.Fatalf("second ToggleEnrollment(alice) = %v, %v", selected, err)
	}

	// Retired electives disappear for students but not for admins.
	if _, err := svc.Update(ctx, admin, e.ID, ElectivePatch{IsActive: ptr(false)}); err != nil {
		t.Fatal(err)
	}
	if l, _ := svc.List(ctx, bob, false); len(l.Electives) != 0 {
		t.Errorf("student sees retired elective: %+v", l.Electives)
	}
	if l, _ := svc.List(ctx, admin, false); len(l.Electives) != 1 {
		t.Errorf("admin list = %+v", l.Electives)
	}

	assertKind(t, svc.Delete(ctx, alice, e.ID), apperror.ErrForbidden)
	if err := svc.Delete(ctx, admin, e.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

// =========================================================================
// PRO REQUESTS
// =========================================================================

func TestProRequest(t *testing.T) {
	store := newFakeStore()
	svc := NewProService(store, testLogger())
	ctx := context.Background()
	admin := seedUser(t, store, "admin", model.RoleAdmin)
	alice := seedUser(t, store, "alice", model.RoleStudent)

	_, err := svc.Request(ctx, nil, ProRequestInput{})
	assertKind(t, err, apperror.ErrUnauthorized)

	r, err := svc.Request(ctx, alice, ProRequestInput{Message: ptr(" graag ")})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if r.Status != model.ProRequestPending || r.Message == nil || *r.Message != "graag" {
		t.Errorf("request = %+v", r)
	}

	_, err = svc.Request(ctx, alice, ProRequestInput{})
	var ae *apperror.AppError
	if !errors.As(err, &ae) || ae.Message != "Je hebt al een aanvraag ingediend" {
		t.Errorf("second Request() error = %v", err)
	}

	_, err = svc.List(ctx, alice, "")
	assertKind(t, err, apperror.ErrForbidden)
	_, err = svc.Decide(ctx, alice, r.ID, ProDecisionInput{Status: "approved"})
	assertKind(t, err, apperror.ErrForbidden)
	_, err = svc.Decide(ctx, admin, r.ID, ProDecisionInput{Status: "maybe"})
	assertKind(t, err, apperror.ErrValidation)

	pending, err := svc.List(ctx, admin, model.ProRequestPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("List(pending) = %+v, %v", pending, err)
	}

	decided, err := svc.Decide(ctx, admin, r.ID, ProDecisionInput{Status: " Approved "})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decided.Status != model.ProRequestApproved {
		t.Errorf("Status = %q", decided.Status)
	}
	u, _ := store.GetUserByID(ctx, alice.ID)
	if !u.IsPro {
		t.Fatal("approval did not upgrade the user")
	}

	_, err = svc.Decide(ctx, admin, r.ID, ProDecisionInput{Status: "rejected"})
	assertKind(t, err, apperror.ErrConflict)

	// The refreshed account is turned away.
	_, err = svc.Request(ctx, u, ProRequestInput{})
	if !errors.As(err, &ae) || ae.Message != "Je hebt al Pro!" {
		t.Errorf("Request() by pro user error = %v", err)
	}
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

const (
	defaultStartTime = "08:30"
	defaultEndTime   = "09:20"
	clockLayout      = "15:04"

	msgScheduleRequired = "Dag, periode en vak zijn vereist"
)

// looseInt accepts both 3 and "3"; HTML forms post numbers as strings.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a whole number: %s", b)
	}
	*n = looseInt(v)
	return nil
}

func (n *looseInt) intPtr() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

// ScheduleService manages the weekly timetable ("rooster"). Everyone logged
// in reads it; only admins change it.
type ScheduleService struct {
	schedule repository.ScheduleRepository
	logger   *slog.Logger
}

func NewScheduleService(schedule repository.ScheduleRepository, logger *slog.Logger) *ScheduleService {
	return &ScheduleService{schedule: schedule, logger: logger}
}

func (s *ScheduleService) List(ctx context.Context, actor *model.User) ([]model.ScheduleEntry, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	entries, err := s.schedule.ListSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/schedule: listing: %w", err)
	}
	return entries, nil
}

type ScheduleInput struct {
	Day       string    `json:"day" validate:"required" msg:"Dag, periode en vak zijn vereist"`
	Period    *looseInt `json:"period"`
	Subject   string    `json:"subject" validate:"required" msg:"Dag, periode en vak zijn vereist"`
	Room      *string   `json:"room"`
	Teacher   *string   `json:"teacher"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
}

func (s *ScheduleService) Create(ctx context.Context, actor *model.User, in ScheduleInput) (*model.ScheduleEntry, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	in.Day = strings.ToLower(strings.TrimSpace(in.Day))
	in.Subject = strings.TrimSpace(in.Subject)
	if err := check(in); err != nil {
		return nil, err
	}
	if in.Period == nil {
		return nil, apperror.ValidationFailed("period", msgScheduleRequired)
	}

	e := &model.ScheduleEntry{
		Day:       in.Day,
		Period:    int(*in.Period),
		Subject:   in.Subject,
		Room:      optional(in.Room),
		Teacher:   optional(in.Teacher),
		StartTime: orDefault(in.StartTime, defaultStartTime),
		EndTime:   orDefault(in.EndTime, defaultEndTime),
	}
	if err := validateScheduleEntry(e); err != nil {
		return nil, err
	}
	if err := s.schedule.CreateScheduleEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("service/schedule: creating entry: %w", err)
	}
	return e, nil
}

// SchedulePatch is a partial update; nil fields keep their value.
type SchedulePatch struct {
	Day       *string   `json:"day"`
	Period    *looseInt `json:"period"`
	Subject   *string   `json:"subject"`
	Room      *string   `json:"room"`
	Teacher   *string   `json:"teacher"`
	StartTime *string   `json:"startTime"`
	EndTime   *string   `json:"endTime"`
}

func (s *ScheduleService) Update(ctx context.Context, actor *model.User, id string, p SchedulePatch) (*model.ScheduleEntry, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	e, err := s.schedule.GetScheduleEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/schedule: loading entry: %w", err)
	}
	if v := optional(p.Day); v != nil {
		e.Day = strings.ToLower(*v)
	}
	if p.Period != nil {
		e.Period = int(*p.Period)
	}
	if v := optional(p.Subject); v != nil {
		e.Subject = *v
	}
	// Room and teacher can be cleared with "".
	if p.Room != nil {
		e.Room = optional(p.Room)
	}
	if p.Teacher != nil {
		e.Teacher = optional(p.Teacher)
	}
	if v := optional(p.StartTime); v != nil {
		e.StartTime = *v
	}
	if v := optional(p.EndTime); v != nil {
		e.EndTime = *v
	}

	if err := validateScheduleEntry(e); err != nil {
		return nil, err
	}
	if err := s.schedule.UpdateScheduleEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("service/schedule: updating entry: %w", err)
	}
	return e, nil
}

func (s *ScheduleService) Delete(ctx context.Context, actor *model.User, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if err := s.schedule.DeleteScheduleEntry(ctx, id); err != nil {
		return fmt.Errorf("service/schedule: deleting entry: %w", err)
	}
	return nil
}

func validateScheduleEntry(e *model.ScheduleEntry) error {
	if !slices.Contains(model.Weekdays, e.Day) {
		return apperror.ValidationFailed("day", "Dag moet maandag t/m vrijdag zijn")
	}
	if e.Period <= 0 {
		return apperror.ValidationFailed("period", "Periode moet groter dan 0 zijn")
	}
	start, err := time.Parse(clockLayout, e.StartTime)
	if err != nil {
		return apperror.ValidationFailed("startTime", "Ongeldige tijd, gebruik UU:MM")
	}
	end, err := time.Parse(clockLayout, e.EndTime)
	if err != nil {
		return apperror.ValidationFailed("endTime", "Ongeldige tijd, gebruik UU:MM")
	}
	if !end.After(start) {
		return apperror.ValidationFailed("endTime", "Eindtijd moet na de begintijd liggen")
	}
	return nil
}

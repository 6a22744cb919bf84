// Package janitor periodically removes expired session rows and password
// reset tokens.
//
// Expired rows are already harmless: Resolve rejects an expired session and
// ConsumeReset ignores an expired token. The janitor only keeps the tables
// from growing forever.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/edulearn/portal/internal/metrics"
	"github.com/edulearn/portal/internal/repository"
)

// Kind labels for the janitor_deleted_total metric.
const (
	KindSessions = "sessions"
	KindResets   = "password_resets"
)

// runTimeout bounds a single sweep so a locked database cannot pile up jobs.
const runTimeout = 30 * time.Second

// Janitor runs the sweep on a cron schedule.
type Janitor struct {
	sessions repository.ExpiredSessionSweeper // nil for stores with native TTLs
	resets   repository.PasswordResetRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// New creates a Janitor. sessions may be nil (Redis expires keys itself).
func New(
	sessions repository.ExpiredSessionSweeper,
	resets repository.PasswordResetRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Janitor {
	return &Janitor{
		sessions: sessions,
		resets:   resets,
		metrics:  m,
		logger:   logger,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start schedules the sweep with a standard cron spec or a descriptor such as
// "@every 1h" and starts the scheduler in its own goroutine.
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := j.RunOnce(ctx); err != nil {
			j.logger.Error("janitor run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("janitor: scheduling %q: %w", schedule, err)
	}

	j.cron.Start()
	j.logger.Info("janitor scheduled", slog.String("schedule", schedule))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish, or for
// ctx to expire.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce deletes everything that has expired by now. Both sweeps run even if
// the first fails.
func (j *Janitor) RunOnce(ctx context.Context) error {
	now := j.now().UTC()
	var firstErr error

	if j.sessions != nil {
		n, err := j.sessions.DeleteExpiredSessions(ctx, now)
		if err != nil {
			firstErr = fmt.Errorf("janitor: deleting expired sessions: %w", err)
		} else {
			j.record(KindSessions, n)
		}
	}

	n, err := j.resets.DeleteExpiredResets(ctx, now)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("janitor: deleting expired resets: %w", err)
		}
	} else {
		j.record(KindResets, n)
	}

	return firstErr
}

func (j *Janitor) record(kind string, n int64) {
	if n == 0 {
		return
	}
	if j.metrics != nil {
		j.metrics.JanitorDeleted.WithLabelValues(kind).Add(float64(n))
	}
	j.logger.Debug("janitor removed expired rows",
		slog.String("kind", kind),
		slog.Int64("count", n),
	)
}

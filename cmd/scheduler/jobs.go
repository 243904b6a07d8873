package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/lending-ledger/internal/service"
)

type jobs struct {
	library *service.Library
	log     *slog.Logger
	window  time.Duration
}

// schedule registers the nightly block sweep and the due-date reminders.
// Jobs run with ctx so a shutdown cancels in-flight storage calls.
func (j *jobs) schedule(ctx context.Context, c *cron.Cron, sweepSpec, reminderSpec string) error {
	if _, err := c.AddFunc(sweepSpec, func() { j.sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule member sweep %q: %w", sweepSpec, err)
	}
	if _, err := c.AddFunc(reminderSpec, func() { j.remind(ctx) }); err != nil {
		return fmt.Errorf("schedule due reminders %q: %w", reminderSpec, err)
	}
	return nil
}

// sweep recomputes every member's blocked status.
func (j *jobs) sweep(ctx context.Context) {
	j.log.Info("Running member status sweep...")
	blocked, err := j.library.SweepAll(ctx)
	if err != nil {
		j.log.Error("member status sweep failed", "error", err)
		return
	}
	j.log.Info("member status sweep finished", "blocked", blocked)
}

// remind logs one reminder per open loan falling due inside the window.
func (j *jobs) remind(ctx context.Context) {
	j.log.Info("Running due date reminders...", "window", j.window)
	loans, err := j.library.DueSoon(ctx, j.window)
	if err != nil {
		j.log.Error("due date reminders failed", "error", err)
		return
	}
	for _, loan := range loans {
		j.log.Info("loan due soon",
			"loan_id", loan.ID,
			"member_id", loan.MemberID,
			"isbn", loan.ISBN,
			"due_date", loan.DueDate.Format(time.DateOnly))
	}
	j.log.Info("due date reminders finished", "count", len(loans))
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

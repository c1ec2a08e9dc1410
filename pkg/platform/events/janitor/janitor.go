// Package janitor prunes delivered outbox events on a cron schedule.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"becoming/pkg/platform/events"
)

const DefaultSchedule = "@hourly"

type Janitor struct {
	pruner    events.Pruner
	schedule  cron.Schedule
	spec      string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Janitor)

func WithLogger(logger *slog.Logger) Option {
	return func(j *Janitor) {
		j.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		j.now = now
	}
}

// New validates spec, a standard five-field cron expression or a descriptor
// such as "@hourly". Events published more than retention ago are pruned.
func New(pruner events.Pruner, spec string, retention time.Duration, opts ...Option) (*Janitor, error) {
	if pruner == nil {
		return nil, errors.New("pruner is required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", spec, err)
	}
	j := &Janitor{
		pruner:    pruner,
		schedule:  schedule,
		spec:      spec,
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Next reports when the job fires after t.
func (j *Janitor) Next(t time.Time) time.Time {
	return j.schedule.Next(t)
}

// Run prunes on schedule until ctx is cancelled, then waits for a running
// prune to finish.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New()
	c.Schedule(j.schedule, cron.FuncJob(func() {
		if _, err := j.Prune(ctx); err != nil && ctx.Err() == nil && j.logger != nil {
			j.logger.ErrorContext(ctx, "outbox prune failed", "error", err)
		}
	}))
	c.Start()
	if j.logger != nil {
		j.logger.InfoContext(ctx, "outbox janitor started", "schedule", j.spec, "retention", j.retention.String())
	}

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Prune removes events delivered before the retention cutoff.
func (j *Janitor) Prune(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)
	removed, err := j.pruner.PrunePublished(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 && j.logger != nil {
		j.logger.InfoContext(ctx, "pruned outbox", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

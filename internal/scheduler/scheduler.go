// Package scheduler runs ingestion passes on an interval, never more than one
// at a time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hailwatch/internal/pipeline"
	"github.com/go-co-op/gocron"
)

// Runner performs one ingestion pass.
type Runner interface {
	RunPass(ctx context.Context) pipeline.PassReport
}

// Locker hands out a named lock shared by every process that can run a pass.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func(), acquired bool, err error)
}

// Scheduler triggers passes periodically. Within a process gocron's singleton
// mode prevents overlap; across processes the named lock does.
type Scheduler struct {
	cron     *gocron.Scheduler
	runner   Runner
	locker   Locker
	lockName string
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Scheduler.
func New(runner Runner, locker Locker, lockName string, interval time.Duration, logger *slog.Logger) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()
	return &Scheduler{
		cron:     cron,
		runner:   runner,
		locker:   locker,
		lockName: lockName,
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the pass job and starts the scheduler. The first pass runs
// immediately.
func (s *Scheduler) Start() error {
	_, err := s.cron.Every(s.interval).Do(func() {
		if _, _, err := RunLocked(context.Background(), s.runner, s.locker, s.lockName, s.logger); err != nil {
			s.logger.Error("scheduled pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule ingestion pass: %w", err)
	}

	s.logger.Info("scheduler started", "interval", s.interval, "lock", s.lockName)
	s.cron.StartAsync()
	return nil
}

// Stop cancels future passes and waits for a running pass to finish; gocron's
// Stop blocks until in-flight jobs return.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// RunLocked runs one pass under the named lock. ran is false when another
// holder has the lock; the pass is then skipped, not queued.
func RunLocked(ctx context.Context, runner Runner, locker Locker, lockName string, logger *slog.Logger) (report pipeline.PassReport, ran bool, err error) {
	release, acquired, err := locker.TryLock(ctx, lockName)
	if err != nil {
		return pipeline.PassReport{}, false, fmt.Errorf("take pass lock: %w", err)
	}
	if !acquired {
		logger.Info("pass already in progress elsewhere, skipping", "lock", lockName)
		return pipeline.PassReport{}, false, nil
	}
	defer release()

	return runner.RunPass(ctx), true, nil
}

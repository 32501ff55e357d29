// Package scheduler runs the periodic jobs that drive reminder escalation:
//
//   - import sweep: pulls upcoming pairing identities from the pairing
//     source and registers their keys (plans are built on first sight).
//   - dispatch sweep: per tracked key, dispatches due attempts through the
//     notifier and records delivery; halts on acknowledgment.
//   - cleanup sweep: drops keys past report time plus the grace period that
//     the source no longer references.
//
// One process-wide runner sweeps all keys each tick; there are no per-key
// timers.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Intervals configures the cadence of the three periodic jobs.
type Intervals struct {
	Import   time.Duration
	Dispatch time.Duration
	Cleanup  time.Duration
}

// DefaultIntervals mirrors the original job table: import every minute,
// dispatch twice a minute, cleanup every half hour.
func DefaultIntervals() Intervals {
	return Intervals{
		Import:   time.Minute,
		Dispatch: 30 * time.Second,
		Cleanup:  30 * time.Minute,
	}
}

// Scheduler owns the cron runner for the periodic jobs.
type Scheduler struct {
	cron     *cron.Cron
	driver   *Driver
	importer *Importer
	cleaner  *Cleaner

	stop chan struct{}
}

// New wires the periodic jobs. importer and cleaner may be nil when the
// deployment drives registration and retention externally.
func New(driver *Driver, importer *Importer, cleaner *Cleaner, intervals Intervals) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(),
		driver:   driver,
		importer: importer,
		cleaner:  cleaner,
		stop:     make(chan struct{}),
	}

	addJob := func(name string, every time.Duration, run func(context.Context) error) {
		_, err := s.cron.AddFunc("@every "+every.String(), func() {
			if err := run(context.Background()); err != nil {
				slog.Warn("scheduled job reported errors", "job", name, "error", err)
			}
		})
		if err != nil {
			slog.Error("failed to schedule job", "job", name, "error", err)
		}
	}

	if s.importer != nil {
		addJob("import", intervals.Import, s.importer.Sync)
	}
	addJob("dispatch", intervals.Dispatch, s.driver.Sweep)
	if s.cleaner != nil {
		addJob("cleanup", intervals.Cleanup, s.cleaner.Sweep)
	}

	return s
}

// Start begins the periodic jobs, with a one-time kick so a fresh process
// seeds plans and fires overdue work without waiting a full interval.
func (s *Scheduler) Start() {
	go func() {
		ctx := context.Background()
		if s.importer != nil {
			if err := s.importer.Sync(ctx); err != nil {
				slog.Warn("startup import reported errors", "error", err)
			}
		}
		if err := s.driver.Sweep(ctx); err != nil {
			slog.Warn("startup sweep reported errors", "error", err)
		}
	}()

	s.cron.Start()
	slog.Info("scheduler started",
		"jobs", []string{"import", "dispatch", "cleanup"},
	)
}

// Stop halts the periodic jobs. Safe to call more than once.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
		return // already stopped
	default:
		close(s.stop)
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}

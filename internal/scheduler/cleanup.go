package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// Remover is the cleaner's view of the engine.
type Remover interface {
	TrackedPlans(ctx context.Context) ([]*core.Plan, error)
	Remove(ctx context.Context, key core.PairingKey) error
}

// Cleaner garbage-collects keys whose report time plus the grace period has
// passed and which the upstream source no longer references.
type Cleaner struct {
	engine     Remover
	clock      core.Clock
	grace      time.Duration
	referenced func(storageKey string) bool
}

// NewCleaner creates a Cleaner. referenced reports whether the upstream
// pairing source still carries a storage key (nil means never referenced).
func NewCleaner(engine Remover, clock core.Clock, grace time.Duration, referenced func(string) bool) *Cleaner {
	if referenced == nil {
		referenced = func(string) bool { return false }
	}
	return &Cleaner{engine: engine, clock: clock, grace: grace, referenced: referenced}
}

// Sweep removes expired, unreferenced keys. Per-key failures are isolated.
func (c *Cleaner) Sweep(ctx context.Context) error {
	plans, err := c.engine.TrackedPlans(ctx)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	var firstErr error
	for _, plan := range plans {
		if now.Before(plan.Key.ReportTime.Add(c.grace)) {
			continue
		}
		if c.referenced(plan.Key.StorageKey()) {
			continue
		}
		if err := c.engine.Remove(ctx, plan.Key); err != nil {
			slog.Warn("cleanup failed for key",
				"pairing_id", plan.Key.PairingID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		slog.Info("removed expired key",
			"pairing_id", plan.Key.PairingID,
			"report_time", core.FormatTime(plan.Key.ReportTime),
		)
	}
	return firstErr
}

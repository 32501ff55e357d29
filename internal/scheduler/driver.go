package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/barrdunn/dutywatch-backend/internal/core"
	"github.com/barrdunn/dutywatch-backend/internal/metrics"
)

// PlanLister yields every tracked plan for a sweep.
type PlanLister interface {
	TrackedPlans(ctx context.Context) ([]*core.Plan, error)
}

// AckStates is the driver's view of the acknowledgment store.
type AckStates interface {
	GetOrCreate(ctx context.Context, key core.PairingKey) (*core.AckState, error)
	MarkDispatched(ctx context.Context, key core.PairingKey, attemptID string, at time.Time) error
	SetWindowState(ctx context.Context, key core.PairingKey, ws core.WindowState) error
}

// Driver performs the periodic dispatch sweep: one pass over every tracked
// key per tick, cooperative polling rather than per-attempt timers. The
// escalation tiers are minute granularity, so a 30–60s tick is plenty.
type Driver struct {
	plans    PlanLister
	acks     AckStates
	notifier core.Notifier
	events   core.EventPublisher
	clock    core.Clock

	// dispatchTimeout bounds one notifier call so a hanging transport
	// cannot stall the sweep for every other key.
	dispatchTimeout time.Duration
}

// NewDriver constructs a Driver with explicit dependencies; there is no
// global scheduler state.
func NewDriver(plans PlanLister, acks AckStates, notifier core.Notifier, events core.EventPublisher, clock core.Clock, dispatchTimeout time.Duration) *Driver {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}
	return &Driver{
		plans:           plans,
		acks:            acks,
		notifier:        notifier,
		events:          events,
		clock:           clock,
		dispatchTimeout: dispatchTimeout,
	}
}

// Sweep processes every tracked key once at the driver clock's current
// instant. Per-key failures are isolated: the first error is reported but
// never aborts the remaining keys.
func (d *Driver) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := d.clock.Now()

	plans, err := d.plans.TrackedPlans(ctx)
	if err != nil {
		return err
	}
	metrics.TrackedKeys.Set(float64(len(plans)))

	var firstErr error
	for _, plan := range plans {
		if err := d.sweepKey(ctx, plan, now); err != nil {
			slog.Warn("sweep failed for key",
				"pairing_id", plan.Key.PairingID,
				"report_time", core.FormatTime(plan.Key.ReportTime),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *Driver) sweepKey(ctx context.Context, plan *core.Plan, now time.Time) error {
	ack, err := d.acks.GetOrCreate(ctx, plan.Key)
	if err != nil {
		return err
	}

	// Acknowledgment halts dispatch immediately, whatever the tick timing.
	if ack.Acknowledged {
		return nil
	}

	state := core.EvaluateWindow(plan, ack, now)
	if err := d.latchTransition(ctx, plan.Key, ack, state, now); err != nil {
		return err
	}

	// Past report time, undelivered attempts are abandoned: nothing is
	// actionable anymore and retrying forever would only storm.
	if state == core.WindowMissed {
		return nil
	}

	var firstErr error
	for _, attempt := range plan.Attempts {
		if attempt.At.After(now) {
			break // attempts are ordered; nothing further is due
		}
		if ack.WasDispatched(attempt.ID) {
			continue
		}
		if err := d.dispatch(ctx, plan.Key, attempt, now); err != nil {
			slog.Warn("dispatch failed, will retry next tick",
				"pairing_id", plan.Key.PairingID,
				"attempt_id", attempt.ID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			// A failed attempt never blocks later due attempts.
		}
	}
	return firstErr
}

// latchTransition records a newly observed window state and publishes the
// open/closed event exactly once.
func (d *Driver) latchTransition(ctx context.Context, key core.PairingKey, ack *core.AckState, state core.WindowState, now time.Time) error {
	if ack.LastWindowState == state {
		return nil
	}
	if err := d.acks.SetWindowState(ctx, key, state); err != nil {
		return err
	}
	ack.LastWindowState = state

	if d.events == nil {
		return nil
	}
	switch state {
	case core.WindowOpen:
		_ = d.events.PublishPairingEvent(core.NewPairingEvent(core.EventWindowOpened, key, core.FormatTime(now)))
	case core.WindowMissed:
		_ = d.events.PublishPairingEvent(core.NewPairingEvent(core.EventWindowClosed, key, core.FormatTime(now)))
	}
	return nil
}

// dispatch delivers one due attempt. The dispatch record is written only
// after the notifier returns, so a crash between the two repeats delivery
// rather than losing it.
func (d *Driver) dispatch(ctx context.Context, key core.PairingKey, attempt core.Attempt, now time.Time) error {
	dctx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	err := d.notifier.Dispatch(dctx, key, attempt)
	cancel()
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.DispatchTotal.WithLabelValues(string(attempt.Kind), outcome).Inc()
		return core.NewDispatchError(attempt.ID, err)
	}

	if err := d.acks.MarkDispatched(ctx, key, attempt.ID, now); err != nil {
		return err
	}
	metrics.DispatchTotal.WithLabelValues(string(attempt.Kind), "ok").Inc()

	if d.events != nil {
		ev := core.NewPairingEvent(core.EventAttemptDispatched, key, core.FormatTime(now))
		ev.AttemptID = attempt.ID
		_ = d.events.PublishPairingEvent(ev)
	}
	return nil
}

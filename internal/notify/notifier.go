// Package notify provides the bundled core.Notifier implementations. Real
// telephony and push transports stay external; calls here are simulated
// ring sequences.
package notify

import (
	"context"
	"log/slog"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// Simulator logs each delivery instead of sending it. Call attempts log one
// line per ring, numbered 1..Rings, mimicking the cadence the real
// transport would produce.
type Simulator struct {
	log *slog.Logger
}

// NewSimulator creates a Simulator on the given logger (nil for the
// default).
func NewSimulator(log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{log: log}
}

// Dispatch simulates delivery of one attempt.
func (s *Simulator) Dispatch(ctx context.Context, key core.PairingKey, attempt core.Attempt) error {
	switch attempt.Kind {
	case core.AttemptCall:
		for ring := 1; ring <= attempt.Rings; ring++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.log.Info("simulated call ring",
				"pairing_id", key.PairingID,
				"report_time", core.FormatTime(key.ReportTime),
				"attempt_id", attempt.ID,
				"ring", ring,
				"rings", attempt.Rings,
			)
		}
	default:
		s.log.Info("simulated push",
			"pairing_id", key.PairingID,
			"report_time", core.FormatTime(key.ReportTime),
			"attempt_id", attempt.ID,
			"label", attempt.Label,
		)
	}
	return nil
}

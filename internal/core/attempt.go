package core

import (
	"fmt"
	"time"
)

// AttemptKind is a closed variant: the sort tie-break rule depends on the
// set of kinds being fixed.
type AttemptKind string

const (
	AttemptPush AttemptKind = "push"
	AttemptCall AttemptKind = "call"
)

// Attempt is one scheduled reminder action. A call attempt carries Rings,
// the number of simulated rings delivered at the same instant (the notifier
// numbers them 1..Rings); Rings is zero for pushes.
type Attempt struct {
	ID    string      `json:"id"`
	Kind  AttemptKind `json:"kind"`
	At    time.Time   `json:"at"`
	Label string      `json:"label"`
	Rings int         `json:"rings,omitempty"`
}

// AttemptID is deterministic per (kind, instant) so dispatch records survive
// plan rebuilds from the same inputs.
func AttemptID(kind AttemptKind, at time.Time) string {
	return fmt.Sprintf("%s-%d", kind, at.UTC().Unix())
}

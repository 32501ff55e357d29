package core

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"
)

// PairingKey identifies one acknowledgment cycle. The report time is part of
// the identity: if a pairing's report time moves upstream, the old key's
// plan is left inert and a new key is registered.
type PairingKey struct {
	PairingID  string    `json:"pairing_id"`
	ReportTime time.Time `json:"report_time"`
}

// StorageKey returns a stable short key derived from the pairing identity,
// used as the KV key for both the plan and the acknowledgment record.
func (k PairingKey) StorageKey() string {
	base := fmt.Sprintf("%s|%s", k.PairingID, FormatTime(k.ReportTime))
	sum := sha256.Sum256([]byte(base))
	return fmt.Sprintf("%x", sum)[:16]
}

// Plan is the full escalation schedule for one key, with the policy that
// built it frozen in. Plans are immutable once stored.
type Plan struct {
	Key           PairingKey `json:"key"`
	WindowOpensAt time.Time  `json:"window_opens_at"`
	Attempts      []Attempt  `json:"attempts"`
	Policy        Policy     `json:"policy"`
}

// BuildPlan computes the ordered attempt list for a report time under the
// given policy. It is pure: identical inputs yield identical plans, and a
// report time already in the past still yields the full theoretical list
// (the scheduler decides what remains actionable).
func BuildPlan(key PairingKey, policy Policy) Plan {
	report := key.ReportTime.UTC()
	windowOpen := report.Add(-policy.WindowOpenLead())
	loc := policy.Location()

	attempts := []Attempt{{
		ID:    AttemptID(AttemptPush, windowOpen),
		Kind:  AttemptPush,
		At:    windowOpen,
		Label: "window opened",
	}}

	// Second push, deduplicated against the first when the thresholds
	// coincide or invert.
	secondPush := report.Add(-policy.SecondPushLead())
	if secondPush.After(windowOpen) {
		attempts = append(attempts, Attempt{
			ID:    AttemptID(AttemptPush, secondPush),
			Kind:  AttemptPush,
			At:    secondPush,
			Label: "final reminder",
		})
	}

	// Call ladder: fixed slots strictly before report time. Slots inside
	// quiet hours are dropped, not shifted.
	interval := policy.CallInterval()
	for at := report.Add(-policy.CallStartLead()); at.Before(report); at = at.Add(interval) {
		if policy.QuietHours != nil && policy.QuietHours.Contains(at, loc) {
			continue
		}
		attempts = append(attempts, Attempt{
			ID:    AttemptID(AttemptCall, at),
			Kind:  AttemptCall,
			At:    at,
			Label: fmt.Sprintf("call escalation (%d rings)", policy.RingsPerAttempt),
			Rings: policy.RingsPerAttempt,
		})
	}

	// Pushes were appended before calls, so a stable sort keeps push ahead
	// of call at equal instants.
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].At.Before(attempts[j].At)
	})

	// Guard against bad policy math; nothing fires after report time.
	clipped := attempts[:0]
	for _, a := range attempts {
		if a.At.After(report) {
			continue
		}
		clipped = append(clipped, a)
	}

	return Plan{
		Key:           PairingKey{PairingID: key.PairingID, ReportTime: report},
		WindowOpensAt: windowOpen,
		Attempts:      clipped,
		Policy:        policy,
	}
}

// Attempt returns the attempt with the given id, if present.
func (p Plan) Attempt(id string) (Attempt, bool) {
	for _, a := range p.Attempts {
		if a.ID == id {
			return a, true
		}
	}
	return Attempt{}, false
}

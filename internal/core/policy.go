package core

import (
	"fmt"
	"time"
)

// QuietHours is a local wall-clock range during which call attempts are
// suppressed. The range may wrap midnight (e.g. 22:30–05:30).
type QuietHours struct {
	Start string `json:"start"` // "HH:MM"
	End   string `json:"end"`   // "HH:MM"
}

// Enabled reports whether a quiet-hours range is configured.
func (q QuietHours) Enabled() bool {
	return q.Start != "" || q.End != ""
}

// Contains reports whether t, viewed in loc, falls inside the quiet range.
// The start bound is inclusive, the end bound exclusive.
func (q QuietHours) Contains(t time.Time, loc *time.Location) bool {
	if !q.Enabled() {
		return false
	}
	start, err := parseWallClock(q.Start)
	if err != nil {
		return false
	}
	end, err := parseWallClock(q.End)
	if err != nil {
		return false
	}
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	// Wraps midnight.
	return minute >= start || minute < end
}

func parseWallClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid wall-clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid wall-clock time %q", s)
	}
	return h*60 + m, nil
}

// Policy is the escalation configuration. Hour thresholds count backwards
// from report time and must be monotonically non-increasing.
type Policy struct {
	WindowOpenHours     float64     `json:"window_open_hours"`
	SecondPushAtHours   float64     `json:"second_push_at_hours"`
	CallStartHours      float64     `json:"call_start_hours"`
	CallIntervalMinutes int         `json:"call_interval_minutes"`
	RingsPerAttempt     int         `json:"rings_per_attempt"`
	QuietHours          *QuietHours `json:"quiet_hours,omitempty"`
	Timezone            string      `json:"timezone,omitempty"`
}

// DefaultPolicy mirrors the stock escalation tiers: window opens 12h out,
// final push 4h out, calls every 30m starting 2h out with 2 rings each,
// quiet hours 22:30–05:30.
func DefaultPolicy() Policy {
	return Policy{
		WindowOpenHours:     12,
		SecondPushAtHours:   4,
		CallStartHours:      2,
		CallIntervalMinutes: 30,
		RingsPerAttempt:     2,
		QuietHours:          &QuietHours{Start: "22:30", End: "05:30"},
	}
}

// Validate checks the policy at load time. Thresholds are never silently
// reordered; a violation is an error.
func (p Policy) Validate() *DutyError {
	if p.CallStartHours < 0 {
		return NewInvalidPolicyError("call_start_hours must be >= 0",
			map[string]any{"call_start_hours": p.CallStartHours})
	}
	if p.WindowOpenHours < p.SecondPushAtHours {
		return NewInvalidPolicyError("window_open_hours must be >= second_push_at_hours",
			map[string]any{
				"window_open_hours":    p.WindowOpenHours,
				"second_push_at_hours": p.SecondPushAtHours,
			})
	}
	if p.SecondPushAtHours < p.CallStartHours {
		return NewInvalidPolicyError("second_push_at_hours must be >= call_start_hours",
			map[string]any{
				"second_push_at_hours": p.SecondPushAtHours,
				"call_start_hours":     p.CallStartHours,
			})
	}
	if p.CallIntervalMinutes <= 0 {
		return NewInvalidPolicyError("call_interval_minutes must be > 0",
			map[string]any{"call_interval_minutes": p.CallIntervalMinutes})
	}
	if p.RingsPerAttempt < 1 {
		return NewInvalidPolicyError("rings_per_attempt must be >= 1",
			map[string]any{"rings_per_attempt": p.RingsPerAttempt})
	}
	if p.QuietHours != nil && p.QuietHours.Enabled() {
		if _, err := parseWallClock(p.QuietHours.Start); err != nil {
			return NewInvalidPolicyError("quiet_hours.start is not a valid HH:MM time",
				map[string]any{"start": p.QuietHours.Start})
		}
		if _, err := parseWallClock(p.QuietHours.End); err != nil {
			return NewInvalidPolicyError("quiet_hours.end is not a valid HH:MM time",
				map[string]any{"end": p.QuietHours.End})
		}
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return NewInvalidPolicyError(fmt.Sprintf("unknown timezone %q", p.Timezone),
				map[string]any{"timezone": p.Timezone})
		}
	}
	return nil
}

// Location resolves the policy timezone, defaulting to UTC.
func (p Policy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WindowOpenLead converts window_open_hours to a duration.
func (p Policy) WindowOpenLead() time.Duration {
	return time.Duration(p.WindowOpenHours * float64(time.Hour))
}

// SecondPushLead converts second_push_at_hours to a duration.
func (p Policy) SecondPushLead() time.Duration {
	return time.Duration(p.SecondPushAtHours * float64(time.Hour))
}

// CallStartLead converts call_start_hours to a duration.
func (p Policy) CallStartLead() time.Duration {
	return time.Duration(p.CallStartHours * float64(time.Hour))
}

// CallInterval converts call_interval_minutes to a duration.
func (p Policy) CallInterval() time.Duration {
	return time.Duration(p.CallIntervalMinutes) * time.Minute
}

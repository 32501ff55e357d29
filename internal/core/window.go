package core

import "time"

// WindowState is the per-key lifecycle:
//
//	pending → open → acknowledged | missed
//
// Acknowledged can be reached from any non-terminal state (pre-acknowledging
// before the window opens is valid). Missed means report time passed without
// acknowledgment — a distinct terminal condition, not a confirmation.
type WindowState string

const (
	WindowPending      WindowState = "pending"
	WindowOpen         WindowState = "open"
	WindowAcknowledged WindowState = "acknowledged"
	WindowMissed       WindowState = "missed"
)

// Terminal reports whether no further dispatch can happen for the key.
func (s WindowState) Terminal() bool {
	return s == WindowAcknowledged || s == WindowMissed
}

// EvaluateWindow derives the window state for a key at the given instant.
func EvaluateWindow(plan *Plan, ack *AckState, now time.Time) WindowState {
	if ack != nil && ack.Acknowledged {
		return WindowAcknowledged
	}
	if !now.Before(plan.Key.ReportTime) {
		return WindowMissed
	}
	if now.Before(plan.WindowOpensAt) {
		return WindowPending
	}
	return WindowOpen
}

// IsWindowOpen reports whether the acknowledgment window is currently open.
func IsWindowOpen(plan *Plan, ack *AckState, now time.Time) bool {
	return EvaluateWindow(plan, ack, now) == WindowOpen
}

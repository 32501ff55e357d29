package core

// EventType enumerates the change signals published on the event channel.
// Subscribers treat every event as "something changed, re-query".
type EventType string

const (
	EventAttemptDispatched EventType = "attempt_dispatched"
	EventAcknowledged      EventType = "acknowledged"
	EventWindowOpened      EventType = "window_opened"
	EventWindowClosed      EventType = "window_closed"
)

// PairingEvent is the payload published for a change on one key.
type PairingEvent struct {
	Type       EventType `json:"type"`
	PairingID  string    `json:"pairing_id"`
	ReportTime string    `json:"report_time"`
	AttemptID  string    `json:"attempt_id,omitempty"`
	At         string    `json:"at"`
}

// NewPairingEvent builds an event for the given key.
func NewPairingEvent(typ EventType, key PairingKey, at string) *PairingEvent {
	return &PairingEvent{
		Type:       typ,
		PairingID:  key.PairingID,
		ReportTime: FormatTime(key.ReportTime),
		At:         at,
	}
}

package core

import "time"

// AckState is the mutable acknowledgment record for one key. Acknowledged
// never reverts to false and Dispatched only grows; both invariants are
// enforced by the store's compare-and-set mutation path.
type AckState struct {
	Key          PairingKey `json:"key"`
	Acknowledged bool       `json:"acknowledged"`
	AckTime      *time.Time `json:"ack_time,omitempty"`

	// Dispatched maps attempt id to the instant the dispatch record was
	// durably written, after the notifier call returned.
	Dispatched map[string]string `json:"dispatched,omitempty"`

	// LastWindowState latches the most recently observed window state so
	// open/closed transition events fire exactly once across restarts.
	LastWindowState WindowState `json:"last_window_state,omitempty"`
}

// NewAckState lazy-initializes the record for a previously unseen key.
func NewAckState(key PairingKey) *AckState {
	return &AckState{Key: key, Dispatched: map[string]string{}}
}

// WasDispatched reports whether an attempt already has a dispatch record.
func (s *AckState) WasDispatched(attemptID string) bool {
	_, ok := s.Dispatched[attemptID]
	return ok
}

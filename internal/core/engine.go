package core

import (
	"context"
	"time"
)

// Version is reported in /v1/health and the server info metric.
const Version = "0.4.0"

// AckResult is returned by Acknowledge whether or not this call was the one
// that flipped the state.
type AckResult struct {
	OK           bool      `json:"ok"`
	Acknowledged bool      `json:"acknowledged"`
	AckTime      time.Time `json:"ack_time"`
}

// PairingSummary is the per-row embedding consumed by the pairing-listing
// collaborator.
type PairingSummary struct {
	PairingID    string      `json:"pairing_id"`
	ReportTime   time.Time   `json:"report_time"`
	Acknowledged bool        `json:"acknowledged"`
	WindowOpen   bool        `json:"window_open"`
	WindowState  WindowState `json:"window_state"`
}

// Engine is the storage-backed surface the API and scheduler operate on.
type Engine interface {
	// Register builds and stores a plan for a key on first sight; it is
	// idempotent for a key already tracked.
	Register(ctx context.Context, pairingID string, reportTime time.Time) (*Plan, error)

	// Plan returns the stored plan, or a not_found error for a key that
	// was never registered.
	Plan(ctx context.Context, pairingID string, reportTime time.Time) (*Plan, error)

	// Acknowledge idempotently confirms a key at the given instant. A call
	// before the window opens still succeeds.
	Acknowledge(ctx context.Context, pairingID string, reportTime time.Time, at time.Time) (*AckResult, error)

	// Summaries returns ack/window rows for every tracked key.
	Summaries(ctx context.Context, now time.Time) ([]PairingSummary, error)

	Policy(ctx context.Context) (*Policy, error)
	SavePolicy(ctx context.Context, p *Policy) error

	RegisterDevice(ctx context.Context, token string) error

	Health(ctx context.Context) (*HealthResponse, error)
}

// Notifier delivers one attempt. Transport-agnostic; implementations may
// simulate delivery. A returned error defers the attempt to the next sweep.
type Notifier interface {
	Dispatch(ctx context.Context, key PairingKey, attempt Attempt) error
}

// EventPublisher is the fire-and-forget change channel.
type EventPublisher interface {
	PublishPairingEvent(event *PairingEvent) error
}

// PairingSource streams upcoming pairing identities from the upstream
// calendar collaborator. Parsing the feed is out of scope; the engine only
// consumes identities.
type PairingSource interface {
	Upcoming(ctx context.Context) ([]PairingKey, error)
}

// HealthResponse reports service and backend health.
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Backend       BackendHealth `json:"backend"`
}

// BackendHealth describes the storage backend connection.
type BackendHealth struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

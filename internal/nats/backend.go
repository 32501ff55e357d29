package nats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/barrdunn/dutywatch-backend/internal/core"
	"github.com/barrdunn/dutywatch-backend/internal/kv"
	"github.com/barrdunn/dutywatch-backend/internal/metrics"
)

// Backend implements core.Engine using NATS JetStream KV.
type Backend struct {
	nc *nats.Conn
	js jetstream.JetStream

	plans   *kv.PlanStore
	acks    *kv.AckStore
	devices *kv.DeviceStore
	policy  *kv.PolicyStore

	defaultPolicy core.Policy
	clock         core.Clock
	events        core.EventPublisher

	startTime time.Time
}

// New connects to NATS and sets up the DutyWatch KV buckets. defaultPolicy
// is used when no policy document has been saved; it must already be
// validated.
func New(natsURL string, defaultPolicy core.Policy, clock core.Clock) (*Backend, error) {
	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := SetupKV(ctx, js); err != nil {
		nc.Close()
		return nil, fmt.Errorf("setting up KV buckets: %w", err)
	}

	openKV := func(name string) (jetstream.KeyValue, error) {
		bucket, err := js.KeyValue(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("opening KV bucket %s: %w", name, err)
		}
		return bucket, nil
	}

	plansKV, err := openKV(BucketPlans)
	if err != nil {
		nc.Close()
		return nil, err
	}
	acksKV, err := openKV(BucketAcks)
	if err != nil {
		nc.Close()
		return nil, err
	}
	devicesKV, err := openKV(BucketDevices)
	if err != nil {
		nc.Close()
		return nil, err
	}
	policyKV, err := openKV(BucketPolicy)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Backend{
		nc:            nc,
		js:            js,
		plans:         kv.NewPlanStore(plansKV),
		acks:          kv.NewAckStore(acksKV),
		devices:       kv.NewDeviceStore(devicesKV),
		policy:        kv.NewPolicyStore(policyKV),
		defaultPolicy: defaultPolicy,
		clock:         clock,
		startTime:     time.Now(),
	}, nil
}

// Conn returns the underlying NATS connection for auxiliary services
// (event broker).
func (b *Backend) Conn() *nats.Conn {
	return b.nc
}

// SetEventPublisher wires the change-event channel. Must be set before the
// first Acknowledge if acknowledged events are wanted.
func (b *Backend) SetEventPublisher(events core.EventPublisher) {
	b.events = events
}

// Acks exposes the acknowledgment store for the scheduler driver.
func (b *Backend) Acks() *kv.AckStore { return b.acks }

func (b *Backend) Close() error {
	b.nc.Close()
	return nil
}

// Register builds and stores a plan for a key on first sight. The plan
// freezes the policy in force at build time; a tracked key keeps its stored
// plan even if the policy has since changed. A moved report time hashes to
// a different storage key, so the old plan is simply left inert.
func (b *Backend) Register(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error) {
	if pairingID == "" {
		return nil, core.NewInvalidRequestError("pairing_id is required", nil)
	}
	key := core.PairingKey{PairingID: pairingID, ReportTime: reportTime}

	policy, err := b.Policy(ctx)
	if err != nil {
		return nil, err
	}

	plan := core.BuildPlan(key, *policy)
	created, err := b.plans.Put(ctx, &plan)
	if err != nil {
		return nil, core.NewInternalError(fmt.Sprintf("storing plan: %v", err))
	}
	if _, err := b.acks.GetOrCreate(ctx, plan.Key); err != nil {
		return nil, core.NewInternalError(fmt.Sprintf("initializing ack state: %v", err))
	}
	if !created {
		return b.plans.Get(ctx, key)
	}
	return &plan, nil
}

// Plan returns the stored plan for a key.
func (b *Backend) Plan(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error) {
	return b.plans.Get(ctx, core.PairingKey{PairingID: pairingID, ReportTime: reportTime})
}

// Acknowledge idempotently confirms a key. The flipping call publishes an
// acknowledged event; repeats return the original ack_time silently.
func (b *Backend) Acknowledge(ctx context.Context, pairingID string, reportTime time.Time, at time.Time) (*core.AckResult, error) {
	key := core.PairingKey{PairingID: pairingID, ReportTime: reportTime}

	state, flipped, err := b.acks.Acknowledge(ctx, key, at)
	if err != nil {
		return nil, err
	}

	if flipped {
		metrics.AcknowledgedTotal.Inc()
		if b.events != nil {
			// Fire-and-forget channel; the acknowledgment itself is durable.
			_ = b.events.PublishPairingEvent(core.NewPairingEvent(core.EventAcknowledged, key, core.FormatTime(at)))
		}
	}

	result := &core.AckResult{OK: true, Acknowledged: state.Acknowledged}
	if state.AckTime != nil {
		result.AckTime = *state.AckTime
	}
	return result, nil
}

// Summaries returns the ack/window row for every tracked key, ordered by
// report time.
func (b *Backend) Summaries(ctx context.Context, now time.Time) ([]core.PairingSummary, error) {
	plans, err := b.TrackedPlans(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.PairingSummary, 0, len(plans))
	for _, plan := range plans {
		ack, err := b.acks.GetOrCreate(ctx, plan.Key)
		if err != nil {
			continue
		}
		state := core.EvaluateWindow(plan, ack, now)
		summaries = append(summaries, core.PairingSummary{
			PairingID:    plan.Key.PairingID,
			ReportTime:   plan.Key.ReportTime,
			Acknowledged: ack.Acknowledged,
			WindowOpen:   state == core.WindowOpen,
			WindowState:  state,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].ReportTime.Equal(summaries[j].ReportTime) {
			return summaries[i].PairingID < summaries[j].PairingID
		}
		return summaries[i].ReportTime.Before(summaries[j].ReportTime)
	})
	return summaries, nil
}

// TrackedPlans returns every stored plan. Used by the scheduler sweep and
// the summary listing; per-key read failures are skipped, not fatal.
func (b *Backend) TrackedPlans(ctx context.Context) ([]*core.Plan, error) {
	keys, err := b.plans.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var plans []*core.Plan
	for _, k := range keys {
		plan, err := b.plans.GetByStorageKey(ctx, k, k)
		if err != nil {
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Remove deletes a key's plan and acknowledgment state. Called by the
// cleanup sweep once report time plus the grace period has passed.
func (b *Backend) Remove(ctx context.Context, key core.PairingKey) error {
	if err := b.plans.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting plan for %s: %w", key.PairingID, err)
	}
	if err := b.acks.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting ack state for %s: %w", key.PairingID, err)
	}
	return nil
}

// Policy returns the saved policy, or the configured default when none has
// been saved yet.
func (b *Backend) Policy(ctx context.Context) (*core.Policy, error) {
	stored, found, err := b.policy.Get(ctx)
	if err != nil {
		return nil, core.NewInternalError(fmt.Sprintf("loading policy: %v", err))
	}
	if !found {
		p := b.defaultPolicy
		return &p, nil
	}
	return stored, nil
}

// SavePolicy validates and persists a new policy. Existing plans keep their
// frozen snapshots; only keys registered after the save see the new policy.
func (b *Backend) SavePolicy(ctx context.Context, p *core.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := b.policy.Save(ctx, p); err != nil {
		return core.NewInternalError(fmt.Sprintf("saving policy: %v", err))
	}
	return nil
}

// RegisterDevice stores a push device token.
func (b *Backend) RegisterDevice(ctx context.Context, token string) error {
	if token == "" {
		return core.NewInvalidRequestError("device_token is required", nil)
	}
	if err := b.devices.Register(ctx, token, core.FormatTime(b.clock.Now())); err != nil {
		return core.NewInternalError(fmt.Sprintf("registering device: %v", err))
	}
	return nil
}

// Health reports the NATS connection state with a measured KV round trip.
func (b *Backend) Health(ctx context.Context) (*core.HealthResponse, error) {
	resp := &core.HealthResponse{
		Version:       core.Version,
		UptimeSeconds: int64(time.Since(b.startTime).Seconds()),
	}

	status := b.nc.Status()
	if status != nats.CONNECTED {
		resp.Status = "degraded"
		resp.Backend = core.BackendHealth{
			Type:   "nats",
			Status: "disconnected",
			Error:  fmt.Sprintf("NATS status: %v", status),
		}
		// Degraded is a reportable state, not a handler error.
		return resp, nil
	}

	start := time.Now()
	_, _, _ = b.policy.Get(ctx)
	latency := time.Since(start).Milliseconds()

	resp.Status = "ok"
	resp.Backend = core.BackendHealth{
		Type:      "nats",
		Status:    "connected",
		LatencyMs: latency,
	}
	return resp, nil
}

package kv

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// PlanStore holds immutable plans keyed by the pairing storage key. A plan
// is written once at registration with its policy snapshot frozen in;
// report-time changes produce a new key, never a rewrite.
type PlanStore struct {
	store *Store
}

// NewPlanStore creates a new PlanStore.
func NewPlanStore(kv jetstream.KeyValue) *PlanStore {
	return &PlanStore{store: NewStore(kv)}
}

// Put stores a plan if its key is unseen. An existing plan wins: plans are
// immutable, so re-registration of a tracked key is a no-op.
func (p *PlanStore) Put(ctx context.Context, plan *core.Plan) (created bool, err error) {
	_, err = p.store.CreateJSON(ctx, plan.Key.StorageKey(), plan)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get returns the plan for a key, or a not_found error if the key was
// never registered.
func (p *PlanStore) Get(ctx context.Context, key core.PairingKey) (*core.Plan, error) {
	return p.GetByStorageKey(ctx, key.StorageKey(), key.PairingID)
}

// GetByStorageKey returns the plan stored under a raw storage key.
func (p *PlanStore) GetByStorageKey(ctx context.Context, storageKey, pairingID string) (*core.Plan, error) {
	var plan core.Plan
	if _, err := p.store.GetJSON(ctx, storageKey, &plan); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, core.NewNotFoundError("Plan", pairingID)
		}
		return nil, err
	}
	return &plan, nil
}

// Keys returns the storage keys of all tracked plans.
func (p *PlanStore) Keys(ctx context.Context) ([]string, error) {
	return p.store.Keys(ctx)
}

// Delete removes the plan for a key.
func (p *PlanStore) Delete(ctx context.Context, key core.PairingKey) error {
	return p.store.Delete(ctx, key.StorageKey())
}

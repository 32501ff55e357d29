package kv

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// policyKey is the single-document key; the policy bucket holds one current
// escalation policy, like the original's one-row policy table.
const policyKey = "current"

// PolicyStore persists the current escalation policy.
type PolicyStore struct {
	store *Store
}

// NewPolicyStore creates a new PolicyStore.
func NewPolicyStore(kv jetstream.KeyValue) *PolicyStore {
	return &PolicyStore{store: NewStore(kv)}
}

// Get returns the stored policy, or found=false when none has been saved.
func (p *PolicyStore) Get(ctx context.Context) (*core.Policy, bool, error) {
	var policy core.Policy
	if _, err := p.store.GetJSON(ctx, policyKey, &policy); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &policy, true, nil
}

// Save replaces the stored policy. Callers validate before saving; an
// invalid document must never reach the bucket.
func (p *PolicyStore) Save(ctx context.Context, policy *core.Policy) error {
	_, err := p.store.PutJSON(ctx, policyKey, policy)
	return err
}

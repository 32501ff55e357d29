package kv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// AckStore manages acknowledgment state via NATS KV. All mutations of one
// key go through revision-checked compare-and-set, so a tick sweep and a
// concurrent acknowledge request on the same key serialize without a lock.
type AckStore struct {
	store *Store
}

// NewAckStore creates a new AckStore.
func NewAckStore(kv jetstream.KeyValue) *AckStore {
	return &AckStore{store: NewStore(kv)}
}

// GetOrCreate lazy-initializes state for a previously unseen key. Losing a
// create race to a concurrent caller is fine; the winner's record is read
// back.
func (a *AckStore) GetOrCreate(ctx context.Context, key core.PairingKey) (*core.AckState, error) {
	k := key.StorageKey()

	var state core.AckState
	if _, err := a.store.GetJSON(ctx, k, &state); err == nil {
		return &state, nil
	} else if !errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, err
	}

	fresh := core.NewAckState(key)
	if _, err := a.store.CreateJSON(ctx, k, fresh); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			if _, gErr := a.store.GetJSON(ctx, k, &state); gErr == nil {
				return &state, nil
			}
		}
		return nil, err
	}
	return fresh, nil
}

// Get returns the state for a registered key, or a not_found error.
func (a *AckStore) Get(ctx context.Context, key core.PairingKey) (*core.AckState, error) {
	var state core.AckState
	if _, err := a.store.GetJSON(ctx, key.StorageKey(), &state); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, core.NewNotFoundError("Acknowledgment state", key.PairingID)
		}
		return nil, err
	}
	return &state, nil
}

// Acknowledge sets acknowledged=true with the given instant if the key is
// not already acknowledged. Idempotent: a second call leaves the original
// ack_time untouched and reports flipped=false. A key that was never
// registered is an explicit not_found error, not an upsert.
func (a *AckStore) Acknowledge(ctx context.Context, key core.PairingKey, at time.Time) (*core.AckState, bool, error) {
	var state core.AckState
	flipped := false
	err := a.store.MutateJSON(ctx, key.StorageKey(), &state, func() bool {
		if state.Acknowledged {
			flipped = false
			return false
		}
		ackAt := at.UTC()
		state.Acknowledged = true
		state.AckTime = &ackAt
		state.LastWindowState = core.WindowAcknowledged
		flipped = true
		return true
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, core.NewNotFoundError("Acknowledgment state", key.PairingID)
		}
		return nil, false, err
	}
	return &state, flipped, nil
}

// MarkDispatched durably records an attempt id after its notifier call
// returned. The dispatched set only grows; re-marking an id is a no-op.
func (a *AckStore) MarkDispatched(ctx context.Context, key core.PairingKey, attemptID string, at time.Time) error {
	var state core.AckState
	err := a.store.MutateJSON(ctx, key.StorageKey(), &state, func() bool {
		if state.WasDispatched(attemptID) {
			return false
		}
		if state.Dispatched == nil {
			state.Dispatched = map[string]string{}
		}
		state.Dispatched[attemptID] = core.FormatTime(at)
		return true
	})
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return core.NewNotFoundError("Acknowledgment state", key.PairingID)
	}
	return err
}

// SetWindowState latches the last observed window state so transition
// events are emitted exactly once. An acknowledged record is never
// downgraded.
func (a *AckStore) SetWindowState(ctx context.Context, key core.PairingKey, ws core.WindowState) error {
	var state core.AckState
	err := a.store.MutateJSON(ctx, key.StorageKey(), &state, func() bool {
		if state.Acknowledged || state.LastWindowState == ws {
			return false
		}
		state.LastWindowState = ws
		return true
	})
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return core.NewNotFoundError("Acknowledgment state", key.PairingID)
	}
	return err
}

// Delete removes the record for a key.
func (a *AckStore) Delete(ctx context.Context, key core.PairingKey) error {
	return a.store.Delete(ctx, key.StorageKey())
}

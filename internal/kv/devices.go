package kv

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// deviceRecord is the stored registration for one push target.
type deviceRecord struct {
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"`
}

// DeviceStore tracks registered push device tokens.
type DeviceStore struct {
	store *Store
}

// NewDeviceStore creates a new DeviceStore.
func NewDeviceStore(kv jetstream.KeyValue) *DeviceStore {
	return &DeviceStore{store: NewStore(kv)}
}

// Register stores a token; re-registering is a no-op.
func (d *DeviceStore) Register(ctx context.Context, token string, now string) error {
	rec := deviceRecord{Token: token, CreatedAt: now}
	if _, err := d.store.CreateJSON(ctx, deviceKey(token), rec); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return nil
		}
		return err
	}
	return nil
}

// Tokens returns all registered device tokens.
func (d *DeviceStore) Tokens(ctx context.Context) ([]string, error) {
	keys, err := d.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(keys))
	for _, k := range keys {
		var rec deviceRecord
		if _, err := d.store.GetJSON(ctx, k, &rec); err != nil {
			continue
		}
		tokens = append(tokens, rec.Token)
	}
	return tokens, nil
}

// deviceKey hashes the token into a KV-safe key.
func deviceKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)[:16]
}

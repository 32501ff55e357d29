package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// SetupKV creates the DutyWatch KV buckets. Change events ride core NATS
// pub/sub and are deliberately not persisted: the contract is "something
// changed, re-query", so there is nothing to replay.
func SetupKV(ctx context.Context, js jetstream.JetStream) error {
	buckets := []string{
		BucketPlans,
		BucketAcks,
		BucketDevices,
		BucketPolicy,
	}

	for _, name := range buckets {
		cfg := jetstream.KeyValueConfig{
			Bucket:  name,
			Storage: jetstream.FileStorage,
		}
		if _, err := js.CreateOrUpdateKeyValue(ctx, cfg); err != nil {
			return fmt.Errorf("creating KV bucket %s: %w", name, err)
		}
	}

	return nil
}

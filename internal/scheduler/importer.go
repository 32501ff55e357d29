package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// Registrar registers pairing keys with the engine.
type Registrar interface {
	Register(ctx context.Context, pairingID string, reportTime time.Time) (*core.Plan, error)
}

// Importer syncs upcoming pairing identities from the external pairing
// source into the engine. A report time moved upstream hashes to a fresh
// storage key, so the changed pairing is registered as a new key and the
// stale plan is left inert for the cleanup sweep.
type Importer struct {
	source core.PairingSource
	engine Registrar

	mu   sync.RWMutex
	seen map[string]bool // storage keys referenced by the last successful sync
}

// NewImporter creates an Importer.
func NewImporter(source core.PairingSource, engine Registrar) *Importer {
	return &Importer{source: source, engine: engine, seen: map[string]bool{}}
}

// Sync fetches upcoming identities and registers each. Registration is
// idempotent, so re-importing tracked keys is cheap; per-key failures are
// isolated.
func (i *Importer) Sync(ctx context.Context) error {
	keys, err := i.source.Upcoming(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(keys))
	var firstErr error
	for _, key := range keys {
		seen[key.StorageKey()] = true
		if _, err := i.engine.Register(ctx, key.PairingID, key.ReportTime); err != nil {
			slog.Warn("failed to register pairing",
				"pairing_id", key.PairingID,
				"report_time", core.FormatTime(key.ReportTime),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	i.mu.Lock()
	i.seen = seen
	i.mu.Unlock()
	return firstErr
}

// Referenced reports whether the last successful sync still carried the
// given storage key. Used by the cleanup sweep to avoid deleting keys the
// upstream source still references.
func (i *Importer) Referenced(storageKey string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.seen[storageKey]
}

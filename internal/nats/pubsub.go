package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// EventBroker implements core.EventPublisher on NATS core pub/sub. Events
// are fire-and-forget change signals; subscribers re-query on receipt.
type EventBroker struct {
	nc   *nats.Conn
	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewEventBroker creates an EventBroker on the given NATS connection.
func NewEventBroker(nc *nats.Conn) *EventBroker {
	return &EventBroker{nc: nc}
}

// PublishPairingEvent publishes to the key-scoped subject and the global
// subject. A failure on the global fan-out is logged, not returned; the
// key-scoped publish is the one callers depend on.
func (b *EventBroker) PublishPairingEvent(event *core.PairingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := core.PairingKey{PairingID: event.PairingID}
	if rt, pErr := core.ParseTime(event.ReportTime); pErr == nil {
		key.ReportTime = rt
	}

	if err := b.nc.Publish(EventPairingSubject(key.StorageKey()), data); err != nil {
		slog.Error("failed to publish pairing event", "error", err, "pairing_id", event.PairingID)
		return fmt.Errorf("publish event: %w", err)
	}

	if err := b.nc.Publish(EventAllSubject(), data); err != nil {
		slog.Error("failed to publish global event", "error", err)
	}

	return nil
}

// SubscribePairing subscribes to events for one pairing key.
func (b *EventBroker) SubscribePairing(key core.PairingKey) (<-chan *core.PairingEvent, func(), error) {
	return b.subscribe(EventPairingSubject(key.StorageKey()))
}

// SubscribeAll subscribes to every change event.
func (b *EventBroker) SubscribeAll() (<-chan *core.PairingEvent, func(), error) {
	return b.subscribe(EventAllSubject())
}

func (b *EventBroker) subscribe(subject string) (<-chan *core.PairingEvent, func(), error) {
	ch := make(chan *core.PairingEvent, 64)

	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var event core.PairingEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Error("failed to unmarshal pairing event", "error", err)
			return
		}
		select {
		case ch <- &event:
		default:
			slog.Warn("dropping event, subscriber channel full", "subject", subject)
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	unsubscribe := func() {
		_ = sub.Unsubscribe()
		close(ch)
	}

	return ch, unsubscribe, nil
}

// Close unsubscribes all subscriptions.
func (b *EventBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	return nil
}

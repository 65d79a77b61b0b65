// Package events carries session and task events from the orchestration layer
// to subscribers: the WebSocket hub in-process, and external consumers over
// NATS JetStream when configured.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// Bus is the event surface the rest of the service depends on.
type Bus interface {
	Publish(ctx context.Context, event models.Event)
	Subscribe() *Subscription
	Close() error
}

// Subscription is a per-consumer event channel. Slow consumers drop events
// rather than blocking publishers.
type Subscription struct {
	ID string
	C  chan models.Event

	cancel    func()
	closeOnce sync.Once
}

// Cancel removes the subscription from its bus and closes its channel. Safe
// to call more than once, and safe to combine with the bus's Close.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeOnce.Do(func() { close(s.C) })
}

// LocalBus is the in-process fan-out used when NATS is not configured.
type LocalBus struct {
	subscribers map[string]*Subscription
	mu          sync.RWMutex
}

// NewLocalBus creates an in-process event bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{
		subscribers: make(map[string]*Subscription),
	}
}

// Publish fans the event out to all subscribers. Full subscriber channels are
// skipped.
func (b *LocalBus) Publish(ctx context.Context, event models.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.C <- event:
		default:
		}
	}
}

// Subscribe registers a new consumer.
func (b *LocalBus) Subscribe() *Subscription {
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  make(chan models.Event, 64),
	}
	sub.cancel = func() {
		b.mu.Lock()
		delete(b.subscribers, sub.ID)
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	return sub
}

// Close cancels all subscriptions.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.subscribers = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	return nil
}

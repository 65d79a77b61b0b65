package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// NatsBus publishes events to NATS JetStream for durability and external
// consumers, while also fanning out in-process for the WebSocket hub.
type NatsBus struct {
	local      *LocalBus
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
}

// NewNatsBus connects to NATS and ensures the event stream exists.
func NewNatsBus(cfg config.EventsConfig) (*NatsBus, error) {
	streamName := cfg.StreamName
	if streamName == "" {
		streamName = "PODPLAY"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[Events] NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[Events] NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bus := &NatsBus{
		local:      NewLocalBus(),
		conn:       nc,
		js:         js,
		streamName: streamName,
	}

	if err := bus.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	log.Printf("[Events] Connected to NATS at %s with JetStream stream %s", cfg.URL, streamName)
	return bus, nil
}

func (b *NatsBus) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:      b.streamName,
		Subjects:  []string{"podplay.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024,
		Storage:   nats.FileStorage,
		Replicas:  1,
		Discard:   nats.DiscardOld,
	}

	if _, err := b.js.StreamInfo(b.streamName); err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		return nil
	}

	if _, err := b.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

// subjectFor maps an event to its JetStream subject. Session-scoped events get
// a session suffix so consumers can filter per session.
func (b *NatsBus) subjectFor(event models.Event) string {
	if event.SessionID != "" {
		return fmt.Sprintf("podplay.sessions.%s.%s", event.SessionID, event.Type)
	}
	return fmt.Sprintf("podplay.events.%s", event.Type)
}

// Publish sends the event to JetStream and the in-process subscribers. A NATS
// publish failure is logged, not returned: local consumers still get the
// event and the service keeps serving.
func (b *NatsBus) Publish(ctx context.Context, event models.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.local.Publish(ctx, event)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Events] Failed to marshal event %s: %v", event.Type, err)
		return
	}
	if _, err := b.js.Publish(b.subjectFor(event), data); err != nil {
		log.Printf("[Events] Failed to publish %s to NATS: %v", event.Type, err)
	}
}

// Subscribe registers an in-process consumer.
func (b *NatsBus) Subscribe() *Subscription {
	return b.local.Subscribe()
}

// Health reports whether the NATS connection and stream are usable.
func (b *NatsBus) Health() error {
	if b.conn.IsClosed() {
		return fmt.Errorf("NATS connection is closed")
	}
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	if _, err := b.js.StreamInfo(b.streamName); err != nil {
		return fmt.Errorf("JetStream stream %s is unhealthy: %w", b.streamName, err)
	}
	return nil
}

// Close shuts down the in-process fan-out and the NATS connection.
func (b *NatsBus) Close() error {
	_ = b.local.Close()
	b.conn.Close()
	return nil
}

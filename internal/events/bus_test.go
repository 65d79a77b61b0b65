package events

import (
	"context"
	"testing"
	"time"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

func TestLocalBus_PublishSubscribe(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Cancel()

	bus.Publish(context.Background(), models.Event{
		Type:      models.EventSessionCreated,
		SessionID: "s1",
	})

	select {
	case event := <-sub.C:
		if event.Type != models.EventSessionCreated {
			t.Errorf("unexpected type: %s", event.Type)
		}
		if event.SessionID != "s1" {
			t.Errorf("unexpected session id: %s", event.SessionID)
		}
		if event.Timestamp.IsZero() {
			t.Error("expected timestamp set")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestLocalBus_FanOut(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()
	defer sub1.Cancel()
	defer sub2.Cancel()

	bus.Publish(context.Background(), models.Event{Type: models.EventTaskStarted})

	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestLocalBus_CancelledSubscriberReceivesNothing(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	sub := bus.Subscribe()
	sub.Cancel()

	// Publish after cancel must not panic and must not deliver.
	bus.Publish(context.Background(), models.Event{Type: models.EventTaskCompleted})

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after cancel")
	}
}

func TestLocalBus_CancelAfterCloseIsSafe(t *testing.T) {
	bus := NewLocalBus()
	sub := bus.Subscribe()

	// Shutdown closes the bus while consumers still hold their
	// subscriptions; both teardown orders must be tolerated.
	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	sub.Cancel()
	sub.Cancel()

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after shutdown")
	}
}

func TestLocalBus_CloseAfterCancelIsSafe(t *testing.T) {
	bus := NewLocalBus()
	sub := bus.Subscribe()

	sub.Cancel()
	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestLocalBus_SlowConsumerDrops(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Cancel()

	// Overflow the buffered channel; publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(context.Background(), models.Event{Type: models.EventChatRouted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow consumer")
	}
}

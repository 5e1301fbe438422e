package events

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe(EventRotationAdvanced)

	bus.Publish(EventRotationAdvanced, Payload{"content_item_id": "item-1"})

	select {
	case p := <-sub:
		if p["content_item_id"] != "item-1" {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusPublishDoesNotCrossTypes(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe(EventExpiryReminder)

	bus.Publish(EventRotationAdvanced, Payload{"x": 1})

	select {
	case p := <-sub:
		t.Fatalf("unexpected delivery: %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe(EventRotationAdvanced)

	// Channel capacity is 8; further publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(EventRotationAdvanced, Payload{"i": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	_ = sub
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe(EventVideoUpdated)
	bus.Unsubscribe(EventVideoUpdated, sub)

	if _, open := <-sub; open {
		t.Fatal("expected closed channel after unsubscribe")
	}

	// Publishing after unsubscribe is a no-op.
	bus.Publish(EventVideoUpdated, Payload{})
}

package mcp

import (
	"testing"
)

func TestEventBusPublishSubscribe(t *testing.T) {
	bus := NewEventBus()

	var got []any
	bus.Subscribe("notifications/tools/list_changed", func(payload any) {
		got = append(got, payload)
	})

	bus.Publish("notifications/tools/list_changed", "a")
	bus.Publish("notifications/tools/list_changed", "b")
	bus.Publish("notifications/resources/list_changed", "other")

	if len(got) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(got))
	}
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestEventBusPendingDrain(t *testing.T) {
	bus := NewEventBus()

	// No subscriber yet: events must queue in publish order.
	bus.Publish("notifications/resources/updated", "first")
	bus.Publish("notifications/resources/updated", "second")
	bus.Publish("notifications/message", "unrelated")

	if got := bus.PendingCount("notifications/resources/updated"); got != 2 {
		t.Fatalf("pending count = %d, want 2", got)
	}

	var got []any
	bus.Subscribe("notifications/resources/updated", func(payload any) {
		got = append(got, payload)
	})

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("drained %v, want [first second]", got)
	}
	if n := bus.PendingCount("notifications/resources/updated"); n != 0 {
		t.Errorf("pending count after drain = %d, want 0", n)
	}

	// Drained events must not be delivered again to later subscribers.
	var gotLater []any
	bus.Subscribe("notifications/resources/updated", func(payload any) {
		gotLater = append(gotLater, payload)
	})
	if len(gotLater) != 0 {
		t.Errorf("second subscriber drained %v, want nothing", gotLater)
	}
}

var subscribeCount int

func countingCallback(any) {
	subscribeCount++
}

func TestEventBusSubscribeIdempotent(t *testing.T) {
	bus := NewEventBus()
	subscribeCount = 0

	bus.Subscribe("notifications/progress", countingCallback)
	bus.Subscribe("notifications/progress", countingCallback)

	if n := bus.SubscriberCount(); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}

	bus.Publish("notifications/progress", nil)
	if subscribeCount != 1 {
		t.Errorf("callback ran %d times, want 1", subscribeCount)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	subscribeCount = 0

	bus.Subscribe("notifications/progress", countingCallback)
	bus.Unsubscribe("notifications/progress", countingCallback)

	if bus.HasSubscribers("notifications/progress") {
		t.Fatal("subscriber still present after unsubscribe")
	}

	// With the subscriber gone the event must queue instead of vanishing.
	bus.Publish("notifications/progress", nil)
	if subscribeCount != 0 {
		t.Errorf("callback ran %d times after unsubscribe, want 0", subscribeCount)
	}
	if n := bus.PendingCount("notifications/progress"); n != 1 {
		t.Errorf("pending count = %d, want 1", n)
	}

	// Unsubscribing an unknown pair is a no-op.
	bus.Unsubscribe("notifications/progress", countingCallback)
}

func TestEventBusUnsubscribeAll(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe("notifications/message", func(any) {})
	bus.Subscribe("notifications/message", func(any) {})

	bus.UnsubscribeAll("notifications/message")
	if bus.HasSubscribers("notifications/message") {
		t.Error("subscribers remain after UnsubscribeAll")
	}
}

func TestEventBusClearPending(t *testing.T) {
	bus := NewEventBus()

	bus.Publish("notifications/message", "x")
	bus.Publish("notifications/progress", "y")

	bus.ClearPending("notifications/message")
	if n := bus.PendingCount("notifications/message"); n != 0 {
		t.Errorf("pending count = %d, want 0", n)
	}
	if n := bus.PendingCount("notifications/progress"); n != 1 {
		t.Errorf("pending count = %d, want 1", n)
	}

	bus.ClearAllPending()
	if n := bus.PendingCount("notifications/progress"); n != 0 {
		t.Errorf("pending count after ClearAllPending = %d, want 0", n)
	}
}

func TestEventBusCallbackPanic(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe("notifications/message", func(any) {
		panic("boom")
	})

	var delivered bool
	bus.Subscribe("notifications/message", func(any) {
		delivered = true
	})

	// A panicking callback must not keep the event from other subscribers.
	bus.Publish("notifications/message", nil)
	if !delivered {
		t.Error("second subscriber did not run after first panicked")
	}
}

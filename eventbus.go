package mcp

import (
	"log/slog"
	"reflect"
	"sync"
)

// EventCallback is invoked with the payload of every published event matching
// the subscribed event type. Callbacks run outside the bus lock; panics are
// recovered and logged, never propagated to the publisher.
type EventCallback func(payload any)

// EventBus decouples event publishers (the capability managers) from
// subscribers (the transports). Events published while no subscriber exists
// for their type are queued and drained, in publish order, to the first
// matching subscriber.
//
// A process normally holds a single bus shared by every manager and transport,
// but the bus carries no global state, so tests can construct a fresh one per
// case with NewEventBus.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[string][]EventCallback
	pending     map[string][]any

	logger *slog.Logger
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventCallback),
		pending:     make(map[string][]any),
		logger:      slog.Default(),
	}
}

// callbackID reports the identity of a callback for Subscribe idempotency and
// Unsubscribe matching. Two distinct closures created from the same function
// literal share an identity, so subscribers wanting separate registrations on
// one event type must use callbacks defined at separate code locations.
func callbackID(cb EventCallback) uintptr {
	return reflect.ValueOf(cb).Pointer()
}

// Subscribe registers callback for eventType. Registering the same
// (eventType, callback) pair twice is a no-op. Any events of this type queued
// before the first subscriber appeared are delivered to callback immediately,
// in publish order, before Subscribe returns.
func (b *EventBus) Subscribe(eventType string, callback EventCallback) {
	if callback == nil {
		return
	}

	b.mu.Lock()
	for _, cb := range b.subscribers[eventType] {
		if callbackID(cb) == callbackID(callback) {
			b.mu.Unlock()
			return
		}
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], callback)

	queued := b.pending[eventType]
	delete(b.pending, eventType)
	b.mu.Unlock()

	// Drain outside the lock so a callback can publish or subscribe in turn.
	for _, payload := range queued {
		b.invoke(eventType, callback, payload)
	}
}

// Unsubscribe removes a previously registered callback for eventType.
// Unknown pairs are a no-op.
func (b *EventBus) Unsubscribe(eventType string, callback EventCallback) {
	if callback == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cbs := b.subscribers[eventType]
	for i, cb := range cbs {
		if callbackID(cb) == callbackID(callback) {
			b.subscribers[eventType] = append(cbs[:i:i], cbs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[eventType]) == 0 {
		delete(b.subscribers, eventType)
	}
}

// UnsubscribeAll removes every callback registered for eventType.
func (b *EventBus) UnsubscribeAll(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, eventType)
}

// Publish delivers payload to every callback subscribed to eventType. When no
// subscriber exists, the event is appended to the pending queue for that type
// instead, to be drained by the next Subscribe. Callbacks are invoked with the
// bus lock released.
func (b *EventBus) Publish(eventType string, payload any) {
	b.mu.Lock()
	cbs := b.subscribers[eventType]
	if len(cbs) == 0 {
		b.pending[eventType] = append(b.pending[eventType], payload)
		b.mu.Unlock()
		return
	}
	snapshot := make([]EventCallback, len(cbs))
	copy(snapshot, cbs)
	b.mu.Unlock()

	for _, cb := range snapshot {
		b.invoke(eventType, cb, payload)
	}
}

// HasSubscribers reports whether at least one callback is registered for eventType.
func (b *EventBus) HasSubscribers(eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subscribers[eventType]) > 0
}

// PendingCount returns how many events of eventType are queued waiting for a subscriber.
func (b *EventBus) PendingCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending[eventType])
}

// ClearPending drops every queued event of eventType.
func (b *EventBus) ClearPending(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.pending, eventType)
}

// ClearAllPending drops every queued event of every type.
func (b *EventBus) ClearAllPending() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = make(map[string][]any)
}

// SubscriberCount returns the total number of registrations across all event types.
func (b *EventBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, cbs := range b.subscribers {
		n += len(cbs)
	}
	return n
}

func (b *EventBus) invoke(eventType string, cb EventCallback, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event callback panicked",
				slog.String("eventType", eventType),
				slog.Any("panic", r))
		}
	}()

	cb(payload)
}

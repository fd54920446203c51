// Package events provides the pub/sub bus carrying workflow, phase, and
// task lifecycle notifications. Regular subscribers run behind a ring
// buffer and may drop under backpressure; priority subscribers block and
// never drop.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all bus events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	WorkflowID() string
}

// BaseEvent carries the fields common to every event.
type BaseEvent struct {
	Type     string    `json:"type"`
	Time     time.Time `json:"timestamp"`
	Workflow string    `json:"workflow_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) WorkflowID() string   { return e.Workflow }

func newBase(eventType, workflowID string) BaseEvent {
	return BaseEvent{
		Type:     eventType,
		Time:     time.Now(),
		Workflow: workflowID,
	}
}

type subscriber struct {
	ch       chan Event
	types    map[string]bool // empty means all types
	priority bool
}

func (s *subscriber) wants(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// Bus is the event bus. The zero value is not usable; construct with New.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*subscriber
	prioritySubs []*subscriber
	bufferSize   int
	dropped      atomic.Int64
	closed       bool
}

// DefaultBufferSize is the regular-subscriber ring buffer capacity used
// when the caller does not pick one.
const DefaultBufferSize = 100

// New creates a bus whose regular subscriptions buffer bufferSize events.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers for the given event types; with no types it receives
// everything. The returned channel is closed on Unsubscribe or Close.
func (b *Bus) Subscribe(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// SubscribePriority registers a blocking subscription that never drops.
// Use for terminal events (workflow completed, failed, cancelled).
func (b *Bus) SubscribePriority() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:       make(chan Event, 50),
		priority: true,
	}
	b.prioritySubs = append(b.prioritySubs, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = remove(b.subscribers, ch)
	b.prioritySubs = remove(b.prioritySubs, ch)
}

func remove(subs []*subscriber, ch <-chan Event) []*subscriber {
	out := subs[:0]
	for _, sub := range subs {
		if sub.ch == ch {
			close(sub.ch)
			continue
		}
		out = append(out, sub)
	}
	return out
}

// Publish delivers an event to matching regular subscribers. When a
// subscriber's buffer is full the oldest event is dropped to make room.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.fanOut(event)
}

// PublishPriority delivers to regular subscribers and then blocks until
// every priority subscriber accepted the event.
func (b *Bus) PublishPriority(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.fanOut(event)
	for _, sub := range b.prioritySubs {
		sub.ch <- event
	}
}

func (b *Bus) fanOut(event Event) {
	eventType := event.EventType()
	for _, sub := range b.subscribers {
		if !sub.wants(eventType) {
			continue
		}
		select {
		case sub.ch <- event:
			continue
		default:
		}
		// Buffer full: drop the oldest and retry once.
		select {
		case <-sub.ch:
			b.dropped.Add(1)
		default:
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// DroppedCount returns how many events were dropped under backpressure.
func (b *Bus) DroppedCount() int64 {
	return b.dropped.Load()
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	for _, sub := range b.prioritySubs {
		close(sub.ch)
	}
	b.subscribers = nil
	b.prioritySubs = nil
}

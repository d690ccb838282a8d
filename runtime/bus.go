// Package runtime holds the process-wide plumbing shared by every session.
// It routes events without containing business logic or domain rules.
package runtime

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"sync"
)

const DefaultBusCapacity = 50

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// EventBus is a bounded broadcast ring buffer of events.
//
// Every subscription owns a cursor into the ring and observes events in the
// single global publish order. Publishing never blocks: a subscription that
// falls more than capacity events behind loses the oldest ones and resumes
// at the oldest retained event.
//
// EventBus is safe for concurrent use by multiple goroutines.
type EventBus struct {
	mu          sync.Mutex
	ring        []event.Event
	head        uint64 // sequence number of the next published event
	subscribers int
	closed      bool
	notify      chan struct{} // closed and replaced on every publish
	metrics     *observability.Metrics
}

func NewEventBus(capacity int, metrics *observability.Metrics) *EventBus {
	if capacity <= 0 {
		capacity = DefaultBusCapacity
	}
	return &EventBus{
		ring:    make([]event.Event, capacity),
		notify:  make(chan struct{}),
		metrics: metrics,
	}
}

// Publish appends the event and wakes every waiting subscriber.
// It returns the number of live subscriptions at publish time.
func (b *EventBus) Publish(evt event.Event) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, errors.ErrBusClosed
	}
	b.ring[b.head%uint64(len(b.ring))] = evt
	b.head++
	close(b.notify)
	b.notify = make(chan struct{})
	n := b.subscribers
	b.mu.Unlock()

	b.metrics.EventPublished(evt.Kind())
	return n, nil
}

// Subscribe returns a subscription positioned after the last published event.
func (b *EventBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers++
	return &Subscription{bus: b, cursor: b.head}
}

// Close tears the bus down. Pending events stay readable, further publishes fail.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

func (b *EventBus) Capacity() int {
	return len(b.ring)
}

func (b *EventBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribers
}

// Published returns the number of events published since creation.
func (b *EventBus) Published() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head
}

// Subscription is a read cursor on the bus. It must be used by one goroutine.
type Subscription struct {
	bus    *EventBus
	cursor uint64
	missed uint64
	closed bool
}

// Next blocks until an event is available, the bus is closed and drained,
// or ctx is done.
func (s *Subscription) Next(ctx context.Context) (event.Event, error) {
	for {
		evt, wait, err := s.poll()
		if err != nil {
			return event.Event{}, err
		}
		if wait == nil {
			return evt, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return event.Event{}, ctx.Err()
		}
	}
}

// TryNext returns the next event without blocking.
// The boolean is false when nothing is pending.
func (s *Subscription) TryNext() (event.Event, bool, error) {
	evt, wait, err := s.poll()
	if err != nil {
		return event.Event{}, false, err
	}
	return evt, wait == nil, nil
}

// Ready returns a channel closed as soon as TryNext has something to report.
func (s *Subscription) Ready() <-chan struct{} {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.cursor < b.head || b.closed {
		return closedChan
	}
	return b.notify
}

// Missed returns how many events this subscription skipped while lagging.
func (s *Subscription) Missed() uint64 {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.missed
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	b.subscribers--
}

// poll returns either an event, or the channel to wait on when none is pending.
func (s *Subscription) poll() (event.Event, <-chan struct{}, error) {
	b := s.bus
	b.mu.Lock()
	capacity := uint64(len(b.ring))
	var skipped uint64
	if b.head > capacity && s.cursor < b.head-capacity {
		oldest := b.head - capacity
		skipped = oldest - s.cursor
		s.missed += skipped
		s.cursor = oldest
	}
	if s.cursor < b.head {
		evt := b.ring[s.cursor%capacity]
		s.cursor++
		b.mu.Unlock()
		b.metrics.EventsLagged(skipped)
		return evt, nil, nil
	}
	closed, wait := b.closed, b.notify
	b.mu.Unlock()
	if closed {
		return event.Event{}, nil, errors.ErrBusClosed
	}
	return event.Event{}, wait, nil
}

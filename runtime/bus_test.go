package runtime

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var alice = netip.MustParseAddr("10.0.0.1")

func messageEvent(text string) event.Event {
	return event.New(alice, event.MessagePosted{Text: text})
}

func TestEventBus_Publish_Returns_Subscriber_Count(t *testing.T) {
	req := require.New(t)
	bus := NewEventBus(10, nil)

	// Given no subscriber
	n, err := bus.Publish(messageEvent("nobody"))
	req.NoError(err)
	req.Equal(0, n)

	// Given two subscribers
	sub1 := bus.Subscribe()
	bus.Subscribe()

	n, err = bus.Publish(messageEvent("two"))
	req.NoError(err)
	req.Equal(2, n)

	// When one of them leaves
	sub1.Close()
	sub1.Close()

	// Then only one is counted
	n, err = bus.Publish(messageEvent("one"))
	req.NoError(err)
	req.Equal(1, n)
	req.Equal(1, bus.Subscribers())
	req.EqualValues(3, bus.Published())
}

func TestEventBus_Subscription_Starts_After_Existing_Events(t *testing.T) {
	req := require.New(t)
	bus := NewEventBus(10, nil)

	_, err := bus.Publish(messageEvent("before"))
	req.NoError(err)
	sub := bus.Subscribe()

	_, ok, err := sub.TryNext()
	req.NoError(err)
	req.False(ok)

	_, err = bus.Publish(messageEvent("after"))
	req.NoError(err)

	evt, ok, err := sub.TryNext()
	req.NoError(err)
	req.True(ok)
	req.Equal(event.MessagePosted{Text: "after"}, evt.Payload)
}

func TestEventBus_FanOut_Same_Order_For_All(t *testing.T) {
	req := require.New(t)
	const subscribers = 5
	const publishers = 4
	const perPublisher = 25
	bus := NewEventBus(publishers*perPublisher, nil)

	subs := make([]*Subscription, subscribers)
	for i := range subs {
		subs[i] = bus.Subscribe()
	}

	// When several goroutines publish concurrently
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				if _, err := bus.Publish(messageEvent(fmt.Sprintf("%d-%d", p, i))); err != nil {
					t.Error(err)
				}
			}
		}(p)
	}
	wg.Wait()

	// Then every subscriber observes every event in the same order
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var reference []string
	for i, sub := range subs {
		var seen []string
		for j := 0; j < publishers*perPublisher; j++ {
			evt, err := sub.Next(ctx)
			req.NoError(err)
			seen = append(seen, evt.Payload.Describe())
		}
		if i == 0 {
			reference = seen
			continue
		}
		req.Equal(reference, seen)
		req.Zero(sub.Missed())
	}
}

func TestEventBus_Lagging_Subscriber_Resumes_At_Oldest_Retained(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewMetrics()
	bus := NewEventBus(3, metrics)
	slow := bus.Subscribe()

	// Given five events published while the subscriber never reads
	for i := 0; i < 5; i++ {
		_, err := bus.Publish(messageEvent(fmt.Sprintf("m%d", i)))
		req.NoError(err)
	}

	// Then the two oldest are gone and reading resumes at m2
	ctx := context.Background()
	for _, expected := range []string{"m2", "m3", "m4"} {
		evt, err := slow.Next(ctx)
		req.NoError(err)
		req.Equal(expected, evt.Payload.Describe())
	}
	req.EqualValues(2, slow.Missed())

	_, ok, err := slow.TryNext()
	req.NoError(err)
	req.False(ok)
}

func TestEventBus_Next_Waits_For_Publish(t *testing.T) {
	req := require.New(t)
	bus := NewEventBus(10, nil)
	sub := bus.Subscribe()

	received := make(chan event.Event, 1)
	go func() {
		evt, err := sub.Next(context.Background())
		if err == nil {
			received <- evt
		}
	}()

	select {
	case <-received:
		req.Fail("Next returned before anything was published")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := bus.Publish(messageEvent("wake up"))
	req.NoError(err)

	select {
	case evt := <-received:
		req.Equal("wake up", evt.Payload.Describe())
	case <-time.After(time.Second):
		req.Fail("Next never returned")
	}
}

func TestEventBus_Next_Honours_Context(t *testing.T) {
	req := require.New(t)
	bus := NewEventBus(10, nil)
	sub := bus.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestEventBus_Ready_Signals_Pending_Event(t *testing.T) {
	req := require.New(t)
	bus := NewEventBus(10, nil)
	sub := bus.Subscribe()

	ready := sub.Ready()
	select {
	case <-ready:
		req.Fail("ready without event")
	default:
	}

	_, err := bus.Publish(messageEvent("hi"))
	req.NoError(err)

	select {
	case <-ready:
	case <-time.After(time.Second):
		req.Fail("ready channel not closed by publish")
	}
	select {
	case <-sub.Ready():
	default:
		req.Fail("pending event must keep Ready closed")
	}
}

func TestEventBus_Closed(t *testing.T) {
	req := require.New(t)
	bus := NewEventBus(10, nil)
	sub := bus.Subscribe()
	_, err := bus.Publish(messageEvent("last"))
	req.NoError(err)

	// When the bus is torn down
	bus.Close()
	bus.Close()

	// Then publishing fails
	_, err = bus.Publish(messageEvent("too late"))
	req.ErrorIs(err, errors.ErrBusClosed)

	// And retained events are drained before reporting the closure
	evt, err := sub.Next(context.Background())
	req.NoError(err)
	req.Equal("last", evt.Payload.Describe())
	_, err = sub.Next(context.Background())
	req.ErrorIs(err, errors.ErrBusClosed)
	_, _, err = sub.TryNext()
	req.ErrorIs(err, errors.ErrBusClosed)
}

func TestNewEventBus_Default_Capacity(t *testing.T) {
	require.Equal(t, DefaultBusCapacity, NewEventBus(0, nil).Capacity())
}

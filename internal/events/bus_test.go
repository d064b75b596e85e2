package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPublishCallsMatchingSubscriber(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		if e.Type != TransportConnected {
			t.Errorf("expected TransportConnected, got %s", e.Type)
		}
		called.Store(true)
	}, TransportConnected)

	bus.Publish(Event{Type: TransportConnected})

	if !called.Load() {
		t.Error("subscriber was not called")
	}
}

func TestSubscriberIgnoresUnmatchedTypes(t *testing.T) {
	bus := NewBus()
	var called atomic.Bool

	bus.Subscribe(func(e Event) {
		called.Store(true)
	}, NotificationReceived)

	bus.Publish(Event{Type: TripUpdated})

	if called.Load() {
		t.Error("subscriber should not have been called for TripUpdated")
	}
}

func TestWildcardSubscriberReceivesAll(t *testing.T) {
	bus := NewBus()
	var count atomic.Int32

	bus.Subscribe(func(e Event) {
		count.Add(1)
	})

	bus.Publish(Event{Type: TransportConnecting})
	bus.Publish(Event{Type: TransportConnected})
	bus.Publish(Event{Type: MessageReceived, Channel: "hos_updates"})

	if count.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", count.Load())
	}
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewBus()
	var got []EventType

	bus.Subscribe(func(e Event) {
		got = append(got, e.Type)
	}, TransportConnected, TransportDisconnected)

	bus.Publish(Event{Type: TransportConnected})
	bus.Publish(Event{Type: TransportDisconnected})
	bus.Publish(Event{Type: TransportConnected})

	want := []EventType{TransportConnected, TransportDisconnected, TransportConnected}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPublishSetsTimestamp(t *testing.T) {
	bus := NewBus()
	var got time.Time

	bus.Subscribe(func(e Event) {
		got = e.Timestamp
	})

	bus.Publish(Event{Type: Toast})

	if got.IsZero() {
		t.Error("timestamp was not set")
	}
}

func TestPublishRecoversSubscriberPanic(t *testing.T) {
	bus := NewBus()
	var reached atomic.Bool

	bus.Subscribe(func(e Event) {
		panic("boom")
	})
	bus.Subscribe(func(e Event) {
		reached.Store(true)
	})

	bus.Publish(Event{Type: TransportError, Message: "dial failed"})

	if !reached.Load() {
		t.Error("panic in one subscriber blocked the next")
	}
}

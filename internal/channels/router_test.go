package channels

import (
	"sync"
	"testing"

	"haulsync/internal/events"
	"haulsync/internal/transport"
)

// fakeTransport records wire subscriptions.
type fakeTransport struct {
	mu         sync.Mutex
	state      transport.State
	subscribes []string
	unsubs     []string
}

func (f *fakeTransport) Connect()                    {}
func (f *fakeTransport) Disconnect()                 {}
func (f *fakeTransport) Send(transport.Message) bool { return f.state == transport.StateConnected }
func (f *fakeTransport) State() transport.State      { return f.state }

func (f *fakeTransport) Subscribe(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, channel)
}

func (f *fakeTransport) Unsubscribe(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, channel)
}

func (f *fakeTransport) wireSubscribes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribes...)
}

func TestSubscribeDeduplicates(t *testing.T) {
	tr := &fakeTransport{state: transport.StateConnected}
	r := NewRouter(tr, events.NewBus())

	r.Subscribe(HOSUpdates)
	r.Subscribe(HOSUpdates)

	if got := tr.wireSubscribes(); len(got) != 1 {
		t.Errorf("expected 1 wire subscription, got %v", got)
	}
	if got := r.Subscribed(); len(got) != 1 || got[0] != HOSUpdates {
		t.Errorf("expected [hos_updates], got %v", got)
	}
}

func TestSubscribeWhileDisconnectedIsQueued(t *testing.T) {
	tr := &fakeTransport{state: transport.StateDisconnected}
	bus := events.NewBus()
	r := NewRouter(tr, bus)

	r.SubscribeNotifications()
	r.SubscribeTrip(42)

	if got := tr.wireSubscribes(); len(got) != 0 {
		t.Errorf("no wire subscription expected while disconnected, got %v", got)
	}

	// Transport comes up: desired set is replayed.
	tr.state = transport.StateConnected
	bus.Publish(events.Event{Type: events.TransportConnected})

	got := tr.wireSubscribes()
	if len(got) != 2 {
		t.Fatalf("expected 2 replayed subscriptions, got %v", got)
	}
}

func TestReplayOnReconnect(t *testing.T) {
	tr := &fakeTransport{state: transport.StateConnected}
	bus := events.NewBus()
	r := NewRouter(tr, bus)

	r.SubscribeHOS()
	bus.Publish(events.Event{Type: events.TransportConnected})

	// Initial subscribe plus one replay.
	if got := tr.wireSubscribes(); len(got) != 2 {
		t.Errorf("expected subscribe + replay, got %v", got)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	tr := &fakeTransport{state: transport.StateConnected}
	r := NewRouter(tr, events.NewBus())

	r.SubscribeTrip(7)
	r.UnsubscribeTrip(7)
	r.UnsubscribeTrip(7)

	tr.mu.Lock()
	n := len(tr.unsubs)
	tr.mu.Unlock()
	if n != 1 {
		t.Errorf("expected 1 wire unsubscribe, got %d", n)
	}
	if got := r.Subscribed(); len(got) != 0 {
		t.Errorf("expected empty desired set, got %v", got)
	}
}

func TestTripChannelDerivationIsStable(t *testing.T) {
	if TripChannel(42) != "trip_42" {
		t.Errorf("unexpected derivation %q", TripChannel(42))
	}

	tr := &fakeTransport{state: transport.StateConnected}
	r := NewRouter(tr, events.NewBus())

	r.SubscribeTrip(42)
	r.UnsubscribeTrip(42)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.subscribes) != 1 || len(tr.unsubs) != 1 || tr.subscribes[0] != tr.unsubs[0] {
		t.Errorf("subscribe/unsubscribe channel mismatch: %v vs %v", tr.subscribes, tr.unsubs)
	}
}

func TestSubscribedListIsSorted(t *testing.T) {
	tr := &fakeTransport{state: transport.StateConnected}
	r := NewRouter(tr, events.NewBus())

	r.SubscribeTrips()
	r.SubscribeHOS()
	r.SubscribeNotifications()

	got := r.Subscribed()
	want := []string{HOSUpdates, Notifications, TripUpdates}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestTripIDInvertsTripChannel(t *testing.T) {
	id, ok := TripID(TripChannel(42))
	if !ok || id != 42 {
		t.Errorf("TripID(TripChannel(42)) = %d, %v", id, ok)
	}

	for _, ch := range []string{HOSUpdates, Notifications, "trip_abc", "trip_"} {
		if _, ok := TripID(ch); ok {
			t.Errorf("TripID(%q) unexpectedly matched", ch)
		}
	}
}

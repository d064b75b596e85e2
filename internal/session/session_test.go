package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"haulsync/internal/api"
	"haulsync/internal/channels"
	"haulsync/internal/clock"
	"haulsync/internal/config"
	"haulsync/internal/events"
)

// stubBackend serves the minimal surface a session touches at startup.
func stubBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health-check/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, path := range []string{"/notifications/", "/trips/", "/events/"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]any{})
		})
	}
	mux.HandleFunc("/hos/status/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"current_status": "off_duty", "hours_available": 70})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, backendURL string) config.Config {
	t.Helper()
	return config.Config{
		BackendURL:  backendURL,
		Transport:   config.TransportPolling,
		PollSeconds: 1,
		ListenAddr:  ":0",
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewWiresAllComponents(t *testing.T) {
	srv := stubBackend(t)
	s, err := New(testConfig(t, srv.URL), openDB(t), &clock.Fixed{Time: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if s.Bus == nil || s.Transport == nil || s.Monitor == nil || s.Router == nil ||
		s.Store == nil || s.Settings == nil || s.HOS == nil || s.Trips == nil {
		t.Error("session container has unwired components")
	}
}

func TestStartSubscribesStandingChannelsAndLoads(t *testing.T) {
	srv := stubBackend(t)
	s, err := New(testConfig(t, srv.URL), openDB(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Close()

	subs := s.Router.Subscribed()
	want := map[string]bool{
		channels.HOSUpdates:    false,
		channels.TripUpdates:   false,
		channels.Notifications: false,
	}
	for _, ch := range subs {
		if _, ok := want[ch]; ok {
			want[ch] = true
		}
	}
	for ch, seen := range want {
		if !seen {
			t.Errorf("standing channel %s not subscribed", ch)
		}
	}

	if !s.HOS.Loaded() {
		t.Error("initial HOS fetch did not populate the cache")
	}
	if got := s.HOS.Snapshot().HoursAvailable; got != 70 {
		t.Errorf("hours available = %v, want 70", got)
	}
}

func TestWatchAndUnwatchTrip(t *testing.T) {
	srv := stubBackend(t)
	s, err := New(testConfig(t, srv.URL), openDB(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	s.WatchTrip(42)
	found := false
	for _, ch := range s.Router.Subscribed() {
		if ch == channels.TripChannel(42) {
			found = true
		}
	}
	if !found {
		t.Fatal("trip channel not subscribed")
	}

	s.UnwatchTrip(42)
	for _, ch := range s.Router.Subscribed() {
		if ch == channels.TripChannel(42) {
			t.Error("trip channel still subscribed after unwatch")
		}
	}
}

func TestCompletedTripDropsItsChannel(t *testing.T) {
	srv := stubBackend(t)
	s, err := New(testConfig(t, srv.URL), openDB(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	s.WatchTrip(7)
	s.Bus.Publish(events.Event{
		Type:    events.TripUpdated,
		Payload: []api.Trip{{ID: 7, Status: api.TripCompleted}},
	})

	for _, ch := range s.Router.Subscribed() {
		if ch == channels.TripChannel(7) {
			t.Error("completed trip channel must be unsubscribed")
		}
	}
}

func TestCloseIsCleanWithoutStart(t *testing.T) {
	srv := stubBackend(t)
	s, err := New(testConfig(t, srv.URL), openDB(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
}

func TestWebsocketURLDerivation(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://localhost:8000/api", "ws://localhost:8000/api/ws/events/"},
		{"https://api.example.com", "wss://api.example.com/ws/events/"},
	}
	for _, tc := range cases {
		got, err := websocketURL(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("websocketURL(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}

	if _, err := websocketURL("ftp://example.com"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token")
}

func TestListNotificationsDecodesDataBag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 7, "title": "HOS limit", "message": "2h left", "notification_type": "hos_violation",
			 "is_read": false, "priority": 3, "created_at": "2026-08-27T10:00:00Z",
			 "data": {"category": "hos_compliance", "persistent": true, "sound": true, "unknown_hint": 42}}
		]`))
	})

	got, err := c.ListNotifications(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	n := got[0]
	if n.ID != 7 || n.NotificationType != "hos_violation" || n.Priority != PriorityUrgent {
		t.Errorf("bad decode: %+v", n)
	}
	if n.Data.Category != "hos_compliance" || !n.Data.Persistent || !n.Data.Sound || n.Data.Vibration {
		t.Errorf("bad data bag: %+v", n.Data)
	}
}

func TestMarkNotificationReadHitsCorrectPath(t *testing.T) {
	var gotPath, gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})

	if err := c.MarkNotificationRead(context.Background(), 42); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPost || gotPath != "/notifications/42/mark_read/" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestMarkAllNotificationsReadSurfacesBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"server busy"}`, http.StatusServiceUnavailable)
	})

	err := c.MarkAllNotificationsRead(context.Background())
	if err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestCreateNotificationPostsProjection(t *testing.T) {
	var got CreateNotificationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 101, "title": "X", "message": "Y", "notification_type": "error", "priority": 3, "created_at": "2026-08-27T10:00:00Z"}`))
	})

	created, err := c.CreateNotification(context.Background(), CreateNotificationRequest{
		Title:            "X",
		Message:          "Y",
		NotificationType: "error",
		Priority:         PriorityUrgent,
		Data:             NotificationData{Category: "general", Persistent: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 101 {
		t.Errorf("expected server id 101, got %d", created.ID)
	}
	if got.Title != "X" || got.Priority != PriorityUrgent || !got.Data.Persistent {
		t.Errorf("bad projection: %+v", got)
	}
}

func TestPollChannelPassesSinceAndChannel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("channel") != "hos_updates" {
			t.Errorf("channel = %q", q.Get("channel"))
		}
		if q.Get("since") == "" {
			t.Error("since not set")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"type": "hos_update", "channel": "hos_updates", "data": {"hours_available": 5}}]`))
	})

	msgs, err := c.PollChannel(context.Background(), "hos_updates", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Type != "hos_update" {
		t.Errorf("bad poll result: %+v", msgs)
	}
}

func TestHOSStatusDecodesSnapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current_status": "driving", "hours_used_this_cycle": 62.5,
			"hours_available": 7.5, "consecutive_off_duty_hours": 0, "cycle_type": "70_8",
			"cycle_start_date": "2026-08-21"}`))
	})

	got, err := c.HOSStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.HoursAvailable != 7.5 || got.CycleType != "70_8" {
		t.Errorf("bad decode: %+v", got)
	}
}

func TestHealthFailsOnConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error against closed port")
	}
}

func TestListUnreadNotificationsPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications/unread/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 3, "title": "New load assigned"}]`))
	})

	got, err := c.ListUnreadNotifications(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("bad decode: %+v", got)
	}
}

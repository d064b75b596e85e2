package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"haulsync/internal/notify"
	"haulsync/internal/session"
	"haulsync/internal/settings"
)

type handler struct {
	s *session.Session
}

// JSONResponse sends a JSON response
func JSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("⚠️  Failed to encode JSON response: %v", err)
	}
}

// JSONError sends a JSON error response
func JSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, h.s.Monitor.Status())
}

// ─── notifications ──────────────────────────────────────────────────────

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	var list []*notify.Notification
	switch {
	case r.URL.Query().Get("unread") == "true":
		list = h.s.Store.GetUnread()
	case r.URL.Query().Get("filtered") == "true":
		list = h.s.Store.Visible()
	default:
		list = h.s.Store.GetAll()
		// Opening the full list is "viewing" it.
		if h.s.Settings.Current().AutoMarkRead {
			if err := h.s.Store.MarkAllAsRead(r.Context()); err != nil {
				log.Printf("httpapi: auto mark read: %v", err)
			}
		}
	}
	JSONResponse(w, map[string]any{
		"notifications": list,
		"unread_count":  h.s.Store.UnreadCount(),
	})
}

func (h *handler) createNotification(w http.ResponseWriter, r *http.Request) {
	var n notify.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		JSONError(w, "invalid notification body", http.StatusBadRequest)
		return
	}
	if n.Title == "" {
		JSONError(w, "title is required", http.StatusBadRequest)
		return
	}

	stored := h.s.Store.Show(&n)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(stored); err != nil {
		log.Printf("⚠️  Failed to encode JSON response: %v", err)
	}
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.s.Store.MarkAsRead(r.Context(), id); err != nil {
		JSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	JSONResponse(w, map[string]string{"status": "read"})
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.s.Store.MarkAllAsRead(r.Context()); err != nil {
		JSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	JSONResponse(w, map[string]string{"status": "read"})
}

func (h *handler) dismissNotification(w http.ResponseWriter, r *http.Request) {
	h.s.Store.Dismiss(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) dismissNotifications(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		h.s.Store.ClearByCategory(category)
	} else {
		h.s.Store.DismissAll()
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── domain caches ──────────────────────────────────────────────────────

func (h *handler) hosStatus(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]any{
		"status":               h.s.HOS.Snapshot(),
		"loaded":               h.s.HOS.Loaded(),
		"is_approaching_limit": h.s.HOS.IsApproachingLimit(),
	})
}

func (h *handler) refreshHOS(w http.ResponseWriter, r *http.Request) {
	h.s.HOS.Refresh(r.Context())
	if err := h.s.HOS.LastError(); err != nil {
		JSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	JSONResponse(w, h.s.HOS.Snapshot())
}

func (h *handler) listTrips(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]any{
		"trips":             h.s.Trips.Snapshot(),
		"loaded":            h.s.Trips.Loaded(),
		"active_count":      h.s.Trips.ActiveCount(),
		"has_overdue_trips": h.s.Trips.HasOverdueTrips(),
	})
}

func (h *handler) refreshTrips(w http.ResponseWriter, r *http.Request) {
	h.s.Trips.Refresh(r.Context())
	if err := h.s.Trips.LastError(); err != nil {
		JSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	JSONResponse(w, h.s.Trips.Snapshot())
}

func (h *handler) watchTrip(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		JSONError(w, "invalid trip id", http.StatusBadRequest)
		return
	}
	h.s.WatchTrip(id)
	JSONResponse(w, map[string]any{"watching": id})
}

func (h *handler) unwatchTrip(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		JSONError(w, "invalid trip id", http.StatusBadRequest)
		return
	}
	h.s.UnwatchTrip(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listChannels(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]any{
		"channels": h.s.Router.Subscribed(),
		"state":    h.s.Transport.State().String(),
	})
}

// ─── settings ───────────────────────────────────────────────────────────

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grouped") == "true" {
		grouped, err := h.s.Settings.Grouped()
		if err != nil {
			JSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		JSONResponse(w, grouped)
		return
	}
	JSONResponse(w, h.s.Settings.Current())
}

// updateSettings accepts a partial body; absent fields keep their
// current values.
func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	next := h.s.Settings.Current()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		JSONError(w, "invalid settings body", http.StatusBadRequest)
		return
	}

	if err := h.s.Settings.Update(func(s *settings.Snapshot) { *s = next }); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	JSONResponse(w, h.s.Settings.Current())
}

// Package httpapi is the local presentation surface: a small JSON API
// the UI polls for status, notifications and domain caches, plus the
// mutations (read, dismiss, settings) it needs. Everything else stays
// inside the session container.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"haulsync/internal/middleware"
	"haulsync/internal/session"
)

// NewRouter builds the local API router over one session.
func NewRouter(s *session.Session) http.Handler {
	h := &handler{s: s}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", h.health).Methods("GET")
	api.HandleFunc("/status", h.status).Methods("GET")

	api.HandleFunc("/notifications", h.listNotifications).Methods("GET")
	api.HandleFunc("/notifications", h.createNotification).Methods("POST")
	api.HandleFunc("/notifications", h.dismissNotifications).Methods("DELETE")
	api.HandleFunc("/notifications/read_all", h.markAllRead).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", h.markRead).Methods("POST")
	api.HandleFunc("/notifications/{id}", h.dismissNotification).Methods("DELETE")

	api.HandleFunc("/hos", h.hosStatus).Methods("GET")
	api.HandleFunc("/hos/refresh", h.refreshHOS).Methods("POST")
	api.HandleFunc("/trips", h.listTrips).Methods("GET")
	api.HandleFunc("/trips/refresh", h.refreshTrips).Methods("POST")
	api.HandleFunc("/trips/{id}/watch", h.watchTrip).Methods("POST")
	api.HandleFunc("/trips/{id}/watch", h.unwatchTrip).Methods("DELETE")

	api.HandleFunc("/channels", h.listChannels).Methods("GET")

	api.HandleFunc("/settings", h.getSettings).Methods("GET")
	api.HandleFunc("/settings", h.updateSettings).Methods("PUT")

	return middleware.Logging(middleware.CORS(r))
}

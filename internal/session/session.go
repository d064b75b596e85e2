// Package session owns everything that lives for one authenticated
// session. The container is constructed on login and closed on logout;
// no component in the sync layer is a package-level singleton, so a new
// login can never see a previous user's notifications or caches.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"haulsync/internal/api"
	"haulsync/internal/channels"
	"haulsync/internal/clock"
	"haulsync/internal/config"
	"haulsync/internal/connmon"
	"haulsync/internal/events"
	"haulsync/internal/notify"
	"haulsync/internal/refresh"
	"haulsync/internal/settings"
	"haulsync/internal/transport"
)

// Session wires the sync layer together: one bus, one transport, and
// the services hanging off them.
type Session struct {
	Bus       *events.Bus
	API       *api.Client
	Transport transport.Transport
	Monitor   *connmon.Monitor
	Router    *channels.Router
	Store     *notify.Store
	Settings  *settings.Service
	HOS       *refresh.HOS
	Trips     *refresh.Trips
}

// New builds a session container over an open database handle. Nothing
// starts running until Start; construction only wires subscriptions.
func New(cfg config.Config, db *sql.DB, clk clock.Clock) (*Session, error) {
	if clk == nil {
		clk = clock.Real{}
	}

	bus := events.NewBus()
	client := api.NewClient(cfg.BackendURL, cfg.APIToken)

	var tr transport.Transport
	switch cfg.Transport {
	case config.TransportWebSocket:
		wsURL, err := websocketURL(cfg.BackendURL)
		if err != nil {
			return nil, err
		}
		tr = transport.NewWebSocket(wsURL, cfg.APIToken, bus)
	case config.TransportPolling:
		tr = transport.NewPolling(client, bus, time.Duration(cfg.PollSeconds)*time.Second)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	sett, err := settings.NewService(db)
	if err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}

	var presenter notify.Presenter = notify.NoopPresenter{}
	if cfg.ShoutrrrURL != "" {
		presenter = notify.ShoutrrrPresenter{URL: cfg.ShoutrrrURL}
	}

	store, err := notify.NewStore(db, client, sett, presenter, bus, clk)
	if err != nil {
		return nil, fmt.Errorf("init notification store: %w", err)
	}

	router := channels.NewRouter(tr, bus)

	// A trip leaving scope takes its channel with it.
	bus.Subscribe(func(e events.Event) {
		trips, ok := e.Payload.([]api.Trip)
		if !ok {
			return
		}
		for _, trip := range trips {
			if trip.Status == api.TripCompleted || trip.Status == api.TripCancelled {
				router.UnsubscribeTrip(trip.ID)
			}
		}
	}, events.TripUpdated)

	return &Session{
		Bus:       bus,
		API:       client,
		Transport: tr,
		Monitor:   connmon.NewMonitor(bus, clk),
		Router:    router,
		Store:     store,
		Settings:  sett,
		HOS:       refresh.NewHOS(client, sett, bus, clk),
		Trips:     refresh.NewTrips(client, sett, bus, clk),
	}, nil
}

// Start connects the transport, subscribes the standing channels and
// starts the monitor and refresh loops. The transport connect runs in
// the background; a backend that is down at login degrades to cached
// data instead of failing the session.
func (s *Session) Start(ctx context.Context) {
	s.Monitor.Start()
	s.Router.SubscribeHOS()
	s.Router.SubscribeTrips()
	s.Router.SubscribeNotifications()

	// Connect failures surface as transport_error bus events.
	go s.Transport.Connect()

	// Fast first load; the full reconcile runs when the transport
	// reports connected.
	if err := s.Store.LoadUnreadFromBackend(ctx); err != nil {
		log.Printf("session: initial notification load: %v", err)
	}

	s.HOS.Start()
	s.Trips.Start()
}

// Close tears the session down: refresh loops, monitor and transport
// stop, and in-flight store syncs are drained. The database handle is
// owned by the caller and stays open.
func (s *Session) Close() {
	s.HOS.Stop()
	s.Trips.Stop()
	s.Monitor.Stop()
	s.Monitor.Reset()
	s.Transport.Disconnect()
	s.Store.Close()
	log.Println("session: closed")
}

// WatchTrip subscribes the per-trip channel for an active trip.
func (s *Session) WatchTrip(id int64) {
	s.Router.SubscribeTrip(id)
}

// UnwatchTrip drops the per-trip channel, e.g. when a trip completes.
func (s *Session) UnwatchTrip(id int64) {
	s.Router.UnsubscribeTrip(id)
}

// websocketURL derives the push endpoint from the backend base URL.
func websocketURL(backendURL string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", fmt.Errorf("backend url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("backend url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/events/"
	return u.String(), nil
}

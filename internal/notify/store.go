package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"haulsync/internal/api"
	"haulsync/internal/channels"
	"haulsync/internal/clock"
	"haulsync/internal/events"
	"haulsync/internal/settings"
	"haulsync/internal/transport"
)

// Backend is the server surface the store syncs against. Implemented
// by the api client; mocked in tests.
type Backend interface {
	ListNotifications(ctx context.Context) ([]api.Notification, error)
	ListUnreadNotifications(ctx context.Context) ([]api.Notification, error)
	CreateNotification(ctx context.Context, req api.CreateNotificationRequest) (*api.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error
}

const syncTimeout = 10 * time.Second

// Store is the single source of truth for all notification records
// visible to the user, across local and backend origin. Content of
// backend-prefixed records is owned by the server; read state is owned
// by the persisted ledger; everything else is local.
type Store struct {
	db        *sql.DB
	backend   Backend
	bus       *events.Bus
	clk       clock.Clock
	presenter Presenter
	settings  *settings.Service

	mu      sync.Mutex
	records map[string]*Notification
	order   []string // oldest first; retention evicts from the front
	reads   map[string]struct{}
	// Local records whose backend create failed; retried on reconnect
	// and before each full reload so they are never silently lost.
	unsynced map[string]struct{}

	wg sync.WaitGroup
}

// NewStore creates the notification store, runs the ledger migration
// and loads the persisted read set. The store subscribes itself to
// pushed notification frames and retries pending creates whenever the
// transport reconnects.
func NewStore(db *sql.DB, backend Backend, sett *settings.Service, presenter Presenter, bus *events.Bus, clk clock.Clock) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	reads, err := readSet(db)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if presenter == nil {
		presenter = NoopPresenter{}
	}

	s := &Store{
		db:        db,
		backend:   backend,
		bus:       bus,
		clk:       clk,
		presenter: presenter,
		settings:  sett,
		records:   make(map[string]*Notification),
		reads:     reads,
		unsynced:  make(map[string]struct{}),
	}

	bus.Subscribe(s.handleWire, events.MessageReceived)
	// Every (re)connect runs a full reconcile: pending creates are
	// retried and the backend list replaces the backend projections.
	bus.Subscribe(func(events.Event) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
			defer cancel()
			if err := s.LoadFromBackend(ctx); err != nil {
				log.Printf("notify: reconnect sync: %v", err)
			}
		}()
	}, events.TransportConnected)

	return s, nil
}

// Show stores a notification and fans out its delivery side effects.
// Missing fields get defaults: a generated id, normal priority, the
// general category, persistence for urgent records and a creation
// timestamp. Locally created records are synced to the backend
// asynchronously; the caller is never blocked on network latency and a
// sync failure never propagates out of Show.
func (s *Store) Show(n *Notification) *Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.Category == "" {
		n.Category = CategoryGeneral
	}
	if n.Priority == PriorityUrgent {
		n.Persistent = true
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clk.Now()
	}

	s.mu.Lock()
	s.upsertLocked(n)
	s.enforceRetentionLocked()
	s.mu.Unlock()

	// Records loaded *from* the backend must not be POSTed back.
	if !isBackendID(n.ID) {
		record := *n
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.syncCreate(&record)
		}()
	}

	s.deliver(n)
	s.bus.Publish(events.Event{Type: events.NotificationReceived, Payload: n})
	s.publishChanged()
	return n
}

// Dismiss removes a record and clears its toast. Backend rows are not
// deleted; this layer is append/read-mostly toward the server.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	_, ok := s.records[id]
	if ok {
		delete(s.records, id)
		s.removeFromOrderLocked(id)
	}
	s.mu.Unlock()

	if ok {
		s.bus.Publish(events.Event{Type: events.ToastCleared, Metadata: map[string]string{"id": id}})
		s.publishChanged()
	}
}

// DismissAll removes every record and clears all toasts.
func (s *Store) DismissAll() {
	s.mu.Lock()
	s.records = make(map[string]*Notification)
	s.order = nil
	s.mu.Unlock()

	s.bus.Publish(events.Event{Type: events.ToastCleared})
	s.publishChanged()
}

// ClearByCategory dismisses every record in a category, e.g. the
// "Clear HOS" bulk action.
func (s *Store) ClearByCategory(category string) {
	s.mu.Lock()
	var removed []string
	for id, n := range s.records {
		if n.Category == category {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(s.records, id)
		s.removeFromOrderLocked(id)
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.bus.Publish(events.Event{Type: events.ToastCleared})
		s.publishChanged()
	}
}

// MarkAsRead marks one notification read. For backend-origin ids the
// server is updated first; on failure the local read state is left
// unchanged so it never drifts ahead of the server.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	if sid, ok := serverID(id); ok {
		if err := s.backend.MarkNotificationRead(ctx, sid); err != nil {
			return err
		}
	}

	if err := markReadRow(s.db, id, s.clk.Now()); err != nil {
		log.Printf("notify: persist read mark: %v", err)
	}

	s.mu.Lock()
	s.reads[id] = struct{}{}
	s.mu.Unlock()

	s.publishChanged()
	return nil
}

// MarkAllAsRead marks every known notification read, backend first. On
// backend failure local state is left unchanged.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	if err := s.backend.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}

	now := s.clk.Now()
	s.mu.Lock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
		s.reads[id] = struct{}{}
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := markReadRow(s.db, id, now); err != nil {
			log.Printf("notify: persist read mark: %v", err)
		}
	}

	s.publishChanged()
	return nil
}

// LoadFromBackend replaces the backend-origin projections with the
// server list. The server is authoritative for content; the local read
// ledger stays authoritative for read state. Pending local creates are
// retried first so a reload cannot silently drop them.
func (s *Store) LoadFromBackend(ctx context.Context) error {
	s.resyncPending(ctx)

	list, err := s.backend.ListNotifications(ctx)
	if err != nil {
		return err
	}

	now := s.clk.Now()
	s.mu.Lock()
	for _, row := range list {
		n := fromBackend(row)
		s.upsertLocked(n)
		// A row read elsewhere (another device, the server itself)
		// enters the ledger so unread counts agree everywhere.
		if row.IsRead {
			s.reads[n.ID] = struct{}{}
			if err := markReadRow(s.db, n.ID, now); err != nil {
				log.Printf("notify: persist read mark: %v", err)
			}
		}
	}
	s.enforceRetentionLocked()
	s.mu.Unlock()

	s.publishChanged()
	return nil
}

// LoadUnreadFromBackend seeds the store from the unread fast path, so
// the notification center has content before the first full reconcile
// (which runs once the transport connects). Unread rows never touch
// the read ledger.
func (s *Store) LoadUnreadFromBackend(ctx context.Context) error {
	list, err := s.backend.ListUnreadNotifications(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, row := range list {
		s.upsertLocked(fromBackend(row))
	}
	s.enforceRetentionLocked()
	s.mu.Unlock()

	s.publishChanged()
	return nil
}

// GetAll returns all records, newest first.
func (s *Store) GetAll() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Notification, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if n, ok := s.records[s.order[i]]; ok {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out
}

// GetUnread returns records not present in the read ledger. Local
// records have no independent read concept beyond the ledger; dismiss
// is their terminal state.
func (s *Store) GetUnread() []*Notification {
	all := s.GetAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := all[:0]
	for _, n := range all {
		if _, read := s.reads[n.ID]; !read {
			out = append(out, n)
		}
	}
	return out
}

// Visible applies the priority filter setting to the display list.
// The filter never restricts what is stored.
func (s *Store) Visible() []*Notification {
	filter := s.settings.Current().PriorityFilter
	all := s.GetAll()
	if filter == "" || filter == "all" {
		return all
	}
	min := Priority(filter).rank()
	out := all[:0]
	for _, n := range all {
		if n.Priority.rank() >= min {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount reports how many records are unread.
func (s *Store) UnreadCount() int {
	return len(s.GetUnread())
}

// Close waits for in-flight backend syncs to settle.
func (s *Store) Close() {
	s.wg.Wait()
}

// ─── internals ──────────────────────────────────────────────────────────

// upsertLocked stores the record, moving re-shown ids to the fresh end
// of the retention order. Content is last-write-wins per id; ledger
// entries are never touched here.
func (s *Store) upsertLocked(n *Notification) {
	if _, exists := s.records[n.ID]; exists {
		s.removeFromOrderLocked(n.ID)
	}
	s.records[n.ID] = n
	s.order = append(s.order, n.ID)
}

// enforceRetentionLocked evicts oldest-first beyond the configured cap.
func (s *Store) enforceRetentionLocked() {
	max := s.settings.Current().MaxStored
	if max < 1 {
		max = 1
	}
	for len(s.order) > max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}
}

func (s *Store) removeFromOrderLocked(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// deliver fans out the side effects for one record: sound and
// vibration for high/urgent (or per-record flags), a system-level
// notification for urgent/persistent records, and always a toast.
// Quiet hours suppress everything except the (then silent) toast,
// unless the record is urgent.
func (s *Store) deliver(n *Notification) {
	cfg := s.settings.Current()

	quiet := s.inQuietHours(cfg) && n.Priority != PriorityUrgent
	loud := n.Priority == PriorityHigh || n.Priority == PriorityUrgent

	if !quiet {
		if cfg.SoundEnabled && (loud || n.Sound) {
			s.presenter.PlaySound(n.Priority)
		}
		if cfg.VibrationEnabled && (loud || n.Vibration) {
			s.presenter.Vibrate()
		}
		if cfg.DesktopEnabled && (n.Priority == PriorityUrgent || n.Persistent) {
			if err := s.presenter.Notify(n.Title, n.Message); err != nil {
				log.Printf("notify: system notification: %v", err)
			}
		}
	}

	meta := map[string]string{}
	if quiet {
		meta["silent"] = "true"
	}
	s.bus.Publish(events.Event{Type: events.Toast, Payload: n, Metadata: meta})
}

// inQuietHours reports whether the current local time falls in the
// configured window. A window wrapping midnight (22:00–07:00) is
// handled.
func (s *Store) inQuietHours(cfg settings.Snapshot) bool {
	if !cfg.QuietHoursEnabled {
		return false
	}

	now := s.clk.Now()
	nowMinutes := now.Hour()*60 + now.Minute()

	start := parseHHMM(cfg.QuietHoursStart)
	end := parseHHMM(cfg.QuietHoursEnd)

	// [start, end) with equal bounds is an empty window.
	if start == end {
		return false
	}
	if start < end {
		return nowMinutes >= start && nowMinutes < end
	}
	// Wraps midnight
	return nowMinutes >= start || nowMinutes < end
}

// syncCreate POSTs a local record to the backend for durability.
// Failures are logged and queued for retry; the record stays visible
// locally either way.
func (s *Store) syncCreate(n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if _, err := s.backend.CreateNotification(ctx, toCreateRequest(n)); err != nil {
		log.Printf("notify: backend sync for %s failed: %v", n.ID, err)
		s.mu.Lock()
		if _, still := s.records[n.ID]; still {
			s.unsynced[n.ID] = struct{}{}
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.unsynced, n.ID)
	s.mu.Unlock()
}

// resyncPending retries backend creates that failed earlier.
func (s *Store) resyncPending(ctx context.Context) {
	s.mu.Lock()
	var pending []*Notification
	for id := range s.unsynced {
		if n, ok := s.records[id]; ok {
			copied := *n
			pending = append(pending, &copied)
		} else {
			delete(s.unsynced, id)
		}
	}
	s.mu.Unlock()

	for _, n := range pending {
		if _, err := s.backend.CreateNotification(ctx, toCreateRequest(n)); err != nil {
			log.Printf("notify: resync for %s failed: %v", n.ID, err)
			continue
		}
		s.mu.Lock()
		delete(s.unsynced, n.ID)
		s.mu.Unlock()
	}
}

// handleWire upserts pushed notification frames from the notifications
// channel.
func (s *Store) handleWire(e events.Event) {
	if e.Channel != channels.Notifications {
		return
	}
	msg, ok := e.Payload.(transport.Message)
	if !ok || msg.Type != "notification" {
		return
	}

	var row api.Notification
	if err := json.Unmarshal(msg.Data, &row); err != nil {
		log.Printf("notify: invalid notification frame: %v", err)
		return
	}

	s.Show(fromBackend(row))
}

func (s *Store) publishChanged() {
	s.bus.Publish(events.Event{Type: events.NotificationsChanged})
}

// parseHHMM converts "HH:MM" to minutes since midnight.
func parseHHMM(v string) int {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}

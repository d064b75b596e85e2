// Package api is the HTTP client for the backend surface this layer
// consumes: notification list/create/read endpoints, HOS status, trip
// list, health check and the channel event queue drained by the polling
// transport.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"haulsync/internal/transport"
)

const defaultTimeout = 15 * time.Second

// Client talks to the trucking backend API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a backend client. baseURL is the API root, e.g.
// "https://backend.example.com/api".
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
}

// Health checks backend reachability. Used by the polling transport as
// its "connect" probe.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health-check/", nil, nil)
}

// ListNotifications fetches all notifications for the current user.
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/", nil, &out); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// ListUnreadNotifications fetches only unread notifications.
func (c *Client) ListUnreadNotifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/unread/", nil, &out); err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return out, nil
}

// CreateNotification persists a locally created notification.
func (c *Client) CreateNotification(ctx context.Context, req CreateNotificationRequest) (*Notification, error) {
	var out Notification
	if err := c.do(ctx, http.MethodPost, "/notifications/", req, &out); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &out, nil
}

// MarkNotificationRead marks one server-side notification read. The
// endpoint is idempotent.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/notifications/%d/mark_read/", id)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/mark_all_read/", nil, nil); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// HOSStatus fetches the current Hours-of-Service snapshot.
func (c *Client) HOSStatus(ctx context.Context) (*HOSStatus, error) {
	var out HOSStatus
	if err := c.do(ctx, http.MethodGet, "/hos/status/", nil, &out); err != nil {
		return nil, fmt.Errorf("hos status: %w", err)
	}
	return &out, nil
}

// ListTrips fetches the current user's trips.
func (c *Client) ListTrips(ctx context.Context) ([]Trip, error) {
	var out []Trip
	if err := c.do(ctx, http.MethodGet, "/trips/", nil, &out); err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return out, nil
}

// PollChannel drains queued events for a channel since the given time.
// Implements transport.Poller.
func (c *Client) PollChannel(ctx context.Context, channel string, since time.Time) ([]transport.Message, error) {
	q := url.Values{}
	q.Set("channel", channel)
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}

	var out []transport.Message
	if err := c.do(ctx, http.MethodGet, "/events/?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("poll channel %s: %w", channel, err)
	}
	return out, nil
}

// do performs one request with auth, JSON encoding and status checking.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bound the drained error body; backends can return HTML pages.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

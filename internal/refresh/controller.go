// Package refresh keeps the domain caches (HOS status, trip list)
// fresh: push updates apply directly while the transport is connected,
// and an interval poll loop covers the gaps. A minimum-gap guard bounds
// the backend call rate no matter how the timer fires.
package refresh

import (
	"context"
	"log"
	"sync"
	"time"

	"haulsync/internal/clock"
	"haulsync/internal/settings"
)

// minFetchGap is measured from the last actual fetch or push, not from
// timer start, so connect/disconnect flapping cannot multiply calls.
const minFetchGap = 30 * time.Second

// controller runs the shared poll loop for one domain. The domain
// owner supplies the fetch function and calls markFresh when a pushed
// update makes a poll redundant.
type controller struct {
	name     string
	settings *settings.Service
	clk      clock.Clock
	fetch    func(ctx context.Context) error

	mu           sync.Mutex
	running      bool
	stop         chan struct{}
	lastActivity time.Time

	wg sync.WaitGroup
}

func newController(name string, sett *settings.Service, clk clock.Clock, fetch func(ctx context.Context) error) *controller {
	return &controller{
		name:     name,
		settings: sett,
		clk:      clk,
		fetch:    fetch,
	}
}

// Start fetches immediately and, when auto-refresh is enabled, runs the
// interval loop until Stop.
func (c *controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	c.mu.Unlock()

	c.Refresh(context.Background())

	cfg := c.settings.Current()
	if !cfg.AutoRefresh {
		log.Printf("[Refresh] %s: auto-refresh disabled, initial fetch only", c.name)
		return
	}

	interval := time.Duration(cfg.RefreshInterval) * time.Second
	c.wg.Add(1)
	go c.loop(interval)
	log.Printf("[Refresh] %s: started (interval=%s)", c.name, interval)
}

// Stop halts the interval loop. The cache stays readable after Stop.
func (c *controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stop := c.stop
	c.mu.Unlock()

	close(stop)
	c.wg.Wait()
	log.Printf("[Refresh] %s: stopped", c.name)
}

func (c *controller) loop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick polls unless a fetch or push already refreshed the cache within
// the guard window. With push flowing this skips every tick.
func (c *controller) tick() {
	c.mu.Lock()
	fresh := !c.lastActivity.IsZero() && c.clk.Now().Sub(c.lastActivity) < minFetchGap
	c.mu.Unlock()

	if fresh {
		return
	}
	c.Refresh(context.Background())
}

// Refresh fetches now, bypassing the guard. Used for the initial load
// and explicit user-driven refresh.
func (c *controller) Refresh(ctx context.Context) {
	if err := c.fetch(ctx); err != nil {
		log.Printf("[Refresh] %s: fetch failed: %v", c.name, err)
		return
	}
	c.markFresh()
}

// markFresh records cache activity for the guard window. Called after
// a successful fetch and on every applied push update.
func (c *controller) markFresh() {
	c.mu.Lock()
	c.lastActivity = c.clk.Now()
	c.mu.Unlock()
}

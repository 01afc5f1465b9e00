/*
scheduler.go - Periodic achievement refresh

PURPOSE:
  Achievements are derived by replaying the whole ledger, so they are served
  from a cached snapshot. The scheduler refreshes that snapshot in the
  background at a fixed interval, picking up backdated registrations and
  amendments that no live request triggered a refresh for.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Refreshes once immediately on start
  - Logs newly earned achievements via the cache

USAGE:
  scheduler := NewRefreshScheduler(cache)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshAchievements endpoint (manual refresh)
  - achievements/cache.go: the snapshot being refreshed
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/ride-ledger/achievements"
)

// RefreshScheduler periodically re-evaluates the achievement snapshot.
type RefreshScheduler struct {
	Cache         *achievements.Cache
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a new scheduler.
func NewRefreshScheduler(cache *achievements.Cache) *RefreshScheduler {
	return &RefreshScheduler{
		Cache:         cache,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with refresh interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RefreshScheduler) run() {
	defer rs.wg.Done()

	// Refresh immediately on start
	rs.refresh()

	for {
		select {
		case <-rs.ticker.C:
			rs.refresh()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RefreshScheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	newUnlocks, err := rs.Cache.Refresh(ctx)
	if err != nil {
		log.Printf("[Scheduler] Refresh failed: %v", err)
		return
	}
	if len(newUnlocks) > 0 {
		log.Printf("[Scheduler] Refresh complete: %d new unlock(s)", len(newUnlocks))
	}
}

// RunNow triggers an immediate refresh (for testing/admin).
func (rs *RefreshScheduler) RunNow() {
	rs.refresh()
}

/*
cache.go - Atomically swapped achievement snapshot

Evaluation replays the whole ledger, which is too expensive for the read path.
The cache holds the latest evaluation result behind an atomic pointer: readers
always see a complete, consistent snapshot, and Refresh swaps in a new one
without blocking them. Refreshes diff against the previous snapshot so newly
earned (and revoked) achievements can be reported.
*/
package achievements

import (
	"context"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/warp/ride-ledger/ledger"
)

// Snapshot is one complete evaluation result.
type Snapshot struct {
	// Unlocked maps rider -> achievement -> earliest unlock time.
	Unlocked map[string]map[ID]time.Time

	RefreshedAt time.Time
}

// ForRider returns a rider's unlocks sorted by unlock time.
func (s *Snapshot) ForRider(rider string) []Unlock {
	var out []Unlock
	for id, at := range s.Unlocked[rider] {
		out = append(out, Unlock{ID: id, Rider: rider, UnlockedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.Before(out[j].UnlockedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// HistorySource supplies the replay feed for evaluation.
type HistorySource interface {
	History(ctx context.Context, company, rider string) ([]ledger.Ride, error)
}

// Cache keeps the latest achievement snapshot and refreshes it on demand.
type Cache struct {
	engine  *Engine
	history HistorySource
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// NewCache creates a cache that starts empty; call Refresh before serving.
func NewCache(engine *Engine, history HistorySource) *Cache {
	c := &Cache{engine: engine, history: history, now: time.Now}
	c.current.Store(&Snapshot{Unlocked: map[string]map[ID]time.Time{}})
	return c
}

// Get returns the current snapshot. Never nil.
func (c *Cache) Get() *Snapshot {
	return c.current.Load()
}

// Refresh re-evaluates the catalogue over the full ledger, swaps the result
// in, and returns the achievements that appeared since the previous snapshot.
func (c *Cache) Refresh(ctx context.Context) ([]Unlock, error) {
	rides, err := c.history.History(ctx, "", "")
	if err != nil {
		return nil, err
	}

	unlocked, err := c.engine.Evaluate(ctx, rides)
	if err != nil {
		return nil, err
	}

	prev := c.current.Load()
	next := &Snapshot{Unlocked: unlocked, RefreshedAt: c.now()}
	c.current.Store(next)

	newUnlocks := diffUnlocks(prev.Unlocked, unlocked)
	for _, u := range newUnlocks {
		log.Printf("[Achievements] %s unlocked %q (at %s)", u.Rider, u.ID, u.UnlockedAt.Format(time.RFC3339))
	}
	if revoked := diffUnlocks(unlocked, prev.Unlocked); len(revoked) > 0 {
		log.Printf("[Achievements] %d unlock(s) revoked by ledger amendments", len(revoked))
	}
	return newUnlocks, nil
}

// diffUnlocks returns the unlocks present in next but not in prev, in
// deterministic order.
func diffUnlocks(prev, next map[string]map[ID]time.Time) []Unlock {
	var out []Unlock
	for rider, ids := range next {
		for id, at := range ids {
			if _, had := prev[rider][id]; !had {
				out = append(out, Unlock{ID: id, Rider: rider, UnlockedAt: at})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rider != out[j].Rider {
			return out[i].Rider < out[j].Rider
		}
		return out[i].ID < out[j].ID
	})
	return out
}

/*
thursday.go - Manual achievement grants

One achievement cannot be computed from the ledger: it commemorates things
that happen around the rides, not in them, and is granted by hand. Grants live
in their own store so that a full re-evaluation (which wipes all derived
state) cannot lose them.
*/
package achievements

import (
	"context"
	"sync"
	"time"
)

// GrantStore is an OverrideSource that can also record and revoke grants.
type GrantStore interface {
	OverrideSource

	Grant(ctx context.Context, id ID, rider string, at time.Time) error
	Revoke(ctx context.Context, id ID, rider string) error
}

// =============================================================================
// IN-MEMORY GRANT STORE
// =============================================================================

// MemoryGrants is an in-memory GrantStore for tests and development.
type MemoryGrants struct {
	mu     sync.RWMutex
	grants map[ID]map[string]time.Time
}

func NewMemoryGrants() *MemoryGrants {
	return &MemoryGrants{grants: make(map[ID]map[string]time.Time)}
}

func (m *MemoryGrants) Overrides(_ context.Context, id ID) (map[string]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Time, len(m.grants[id]))
	for rider, at := range m.grants[id] {
		out[rider] = at
	}
	return out, nil
}

func (m *MemoryGrants) Grant(_ context.Context, id ID, rider string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.grants[id] == nil {
		m.grants[id] = make(map[string]time.Time)
	}
	m.grants[id][rider] = at
	return nil
}

func (m *MemoryGrants) Revoke(_ context.Context, id ID, rider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.grants[id], rider)
	return nil
}

// Package store provides RideStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/ride-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	rides  map[ledger.RideID]*ledger.Ride
	nextID ledger.RideID
}

func NewMemory() *Memory {
	return &Memory{
		rides:  make(map[ledger.RideID]*ledger.Ride),
		nextID: 1,
	}
}

func (m *Memory) InsertRide(_ context.Context, ride *ledger.Ride) (ledger.RideID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(ride)
}

func (m *Memory) insertLocked(ride *ledger.Ride) (ledger.RideID, error) {
	id := m.nextID
	m.nextID++

	stored := ride.Clone()
	stored.ID = id
	m.rides[id] = stored
	return id, nil
}

func (m *Memory) GetRide(_ context.Context, id ledger.RideID) (*ledger.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id ledger.RideID) (*ledger.Ride, error) {
	ride, ok := m.rides[id]
	if !ok {
		return nil, ledger.ErrRideNotFound
	}
	return ride.Clone(), nil
}

func (m *Memory) LatestRide(_ context.Context, rider string) (*ledger.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked(rider)
}

func (m *Memory) latestLocked(rider string) (*ledger.Ride, error) {
	var latest *ledger.Ride
	for _, ride := range m.rides {
		if ride.Rider != rider {
			continue
		}
		if latest == nil ||
			ride.Timestamp.After(latest.Timestamp) ||
			(ride.Timestamp.Equal(latest.Timestamp) && ride.ID > latest.ID) {
			latest = ride
		}
	}
	if latest == nil {
		return nil, ledger.ErrRideNotFound
	}
	return latest.Clone(), nil
}

func (m *Memory) UpdateRide(_ context.Context, ride *ledger.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(ride)
}

func (m *Memory) updateLocked(ride *ledger.Ride) error {
	if _, ok := m.rides[ride.ID]; !ok {
		return ledger.ErrRideNotFound
	}
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *Memory) DeleteRide(_ context.Context, id ledger.RideID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Memory) deleteLocked(id ledger.RideID) error {
	if _, ok := m.rides[id]; !ok {
		return ledger.ErrRideNotFound
	}
	delete(m.rides, id)
	return nil
}

func (m *Memory) QueryRides(_ context.Context, filter ledger.RideFilter) ([]ledger.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(filter)
}

func (m *Memory) queryLocked(filter ledger.RideFilter) ([]ledger.Ride, error) {
	var matched []*ledger.Ride
	for _, ride := range m.rides {
		if matchesFilter(ride, filter) {
			matched = append(matched, ride)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return paginate(matched, filter.Offset, filter.Limit), nil
}

func (m *Memory) RidesByTime(_ context.Context, company, rider string) ([]ledger.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ridesByTimeLocked(company, rider)
}

func (m *Memory) ridesByTimeLocked(company, rider string) ([]ledger.Ride, error) {
	var matched []*ledger.Ride
	for _, ride := range m.rides {
		if company != "" && ride.Company != company {
			continue
		}
		if rider != "" && ride.Rider != rider {
			continue
		}
		matched = append(matched, ride)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].ID < matched[j].ID
	})

	out := make([]ledger.Ride, len(matched))
	for i, ride := range matched {
		out[i] = *ride.Clone()
	}
	return out, nil
}

func matchesFilter(ride *ledger.Ride, filter ledger.RideFilter) bool {
	if filter.Rider != "" && ride.Rider != filter.Rider {
		return false
	}
	if filter.Company != "" && ride.Company != filter.Company {
		return false
	}
	if filter.Line != "" && ride.Line != filter.Line {
		return false
	}
	if filter.Vehicle != "" {
		if _, ok := ride.Vehicle(filter.Vehicle); !ok {
			return false
		}
	}
	if filter.From != nil && ride.Timestamp.Before(*filter.From) {
		return false
	}
	if filter.To != nil && ride.Timestamp.After(*filter.To) {
		return false
	}
	return true
}

func paginate(rides []*ledger.Ride, offset, limit int) []ledger.Ride {
	if offset >= len(rides) {
		return nil
	}
	rides = rides[offset:]
	if limit > 0 && limit < len(rides) {
		rides = rides[:limit]
	}
	out := make([]ledger.Ride, len(rides))
	for i, ride := range rides {
		out[i] = *ride.Clone()
	}
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot and a
// rollback on error. The store lock is held for the whole transaction, which
// also gives the serializable selector-then-update semantics amendment needs.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.RideStore) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	rides  map[ledger.RideID]*ledger.Ride
	nextID ledger.RideID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	ridesCopy := make(map[ledger.RideID]*ledger.Ride, len(tm.rides))
	for id, ride := range tm.rides {
		ridesCopy[id] = ride.Clone()
	}
	return memorySnapshot{rides: ridesCopy, nextID: tm.nextID}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.rides = s.rides
	tm.nextID = s.nextID
}

// txMemoryView routes store calls to the parent without re-locking.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) InsertRide(_ context.Context, ride *ledger.Ride) (ledger.RideID, error) {
	return tv.parent.insertLocked(ride)
}

func (tv *txMemoryView) GetRide(_ context.Context, id ledger.RideID) (*ledger.Ride, error) {
	return tv.parent.getLocked(id)
}

func (tv *txMemoryView) LatestRide(_ context.Context, rider string) (*ledger.Ride, error) {
	return tv.parent.latestLocked(rider)
}

func (tv *txMemoryView) UpdateRide(_ context.Context, ride *ledger.Ride) error {
	return tv.parent.updateLocked(ride)
}

func (tv *txMemoryView) DeleteRide(_ context.Context, id ledger.RideID) error {
	return tv.parent.deleteLocked(id)
}

func (tv *txMemoryView) QueryRides(_ context.Context, filter ledger.RideFilter) ([]ledger.Ride, error) {
	return tv.parent.queryLocked(filter)
}

func (tv *txMemoryView) RidesByTime(_ context.Context, company, rider string) ([]ledger.Ride, error) {
	return tv.parent.ridesByTimeLocked(company, rider)
}

/*
Package ledger provides the ride ledger: the single source of truth for all
recorded public-transport rides and the mutation API over it.

PURPOSE:
  A ride records one person boarding one or more (possibly coupled) vehicles
  of one company, optionally on a line, at a point in time. Everything else in
  this system - streaks, ownership, monopolies, achievements - is derived by
  replaying this ledger and can be recomputed from scratch at any time.

KEY CONCEPTS IN THIS FILE (types.go):
  - Ride: one ledger entry with identity, rider, company, line, prices
  - RideVehicle: one vehicle within a ride, with its coupling role
  - CouplingMode: how a vehicle ended up in the ride (ridden, explicitly
    listed, or implied by a fixed coupling)

INVARIANTS:
  1. Ride ids are assigned monotonically and never reused.
  2. Vehicle numbers are unique within a ride.
  3. Every ride has at least one Ridden vehicle.
  4. Unlike an append-only ledger, rides MAY be amended or deleted after the
     fact (fat-finger fixes are part of the domain), but only atomically and
     only through the authorization policy in ledger.go.

SEE ALSO:
  - spec.go: vehicle-spec parsing and fixed-coupling expansion
  - ledger.go: register / amend / delete operations
  - store.go: persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COUPLING MODE
// =============================================================================

// CouplingMode states how a vehicle came to be part of a ride.
type CouplingMode string

const (
	// CouplingRidden marks the vehicle the rider physically occupied.
	// Every ride has at least one.
	CouplingRidden CouplingMode = "R"

	// CouplingExplicit marks a vehicle the rider listed but did not occupy
	// (a coupled unit without the ridden marker).
	CouplingExplicit CouplingMode = "E"

	// CouplingFixed marks a vehicle that was not listed at all but is
	// permanently coupled to a listed one.
	CouplingFixed CouplingMode = "F"
)

// IsExplicit reports whether the vehicle was named by the rider
// (as opposed to implied by a fixed coupling).
func (m CouplingMode) IsExplicit() bool {
	return m == CouplingRidden || m == CouplingExplicit
}

// Valid reports whether m is one of the three known modes.
func (m CouplingMode) Valid() bool {
	return m == CouplingRidden || m == CouplingExplicit || m == CouplingFixed
}

// =============================================================================
// RIDE & RIDE VEHICLE
// =============================================================================

// RideID identifies a ride. Ids are assigned by the store, monotonically,
// and are immutable once assigned.
type RideID int64

// RideVehicle is one vehicle within a ride.
type RideVehicle struct {
	VehicleNumber string
	VehicleType   string // type code from the vehicle catalog, "" if unknown

	// SpecPosition is the 0-based order in which the rider specified the
	// vehicle; fixed-coupling additions continue after the last explicit one.
	// Defines display and iteration order.
	SpecPosition int

	// FixedCouplingPosition is the 0-based position within the vehicle's
	// fixed-coupling group, 0 for non-coupled vehicles.
	FixedCouplingPosition int

	CouplingMode CouplingMode
}

// Ride is one entry in the ride ledger.
type Ride struct {
	ID        RideID
	Company   string
	Rider     string
	Timestamp time.Time
	Line      string // optional; "" means no line was given

	RegularPrice decimal.Decimal // list price of the ticket
	ActualPrice  decimal.Decimal // price actually paid

	// Vehicles in SpecPosition order.
	Vehicles []RideVehicle
}

// RiddenVehicles returns the vehicles the rider physically occupied.
func (r *Ride) RiddenVehicles() []RideVehicle {
	var out []RideVehicle
	for _, v := range r.Vehicles {
		if v.CouplingMode == CouplingRidden {
			out = append(out, v)
		}
	}
	return out
}

// Vehicle returns the entry for the given vehicle number, if present.
func (r *Ride) Vehicle(number string) (RideVehicle, bool) {
	for _, v := range r.Vehicles {
		if v.VehicleNumber == number {
			return v, true
		}
	}
	return RideVehicle{}, false
}

// Validate checks the ride invariants that must never reach persisted state.
func (r *Ride) Validate() error {
	if len(r.Vehicles) == 0 {
		return ErrNoRiddenVehicle
	}

	ridden := 0
	seen := make(map[string]bool, len(r.Vehicles))
	for _, v := range r.Vehicles {
		if seen[v.VehicleNumber] {
			return &DuplicateVehicleError{VehicleNumber: v.VehicleNumber}
		}
		seen[v.VehicleNumber] = true
		if !v.CouplingMode.Valid() {
			return ErrInvalidCouplingMode
		}
		if v.CouplingMode == CouplingRidden {
			ridden++
		}
	}
	if ridden == 0 {
		return ErrNoRiddenVehicle
	}
	return nil
}

// Clone returns a deep copy; stores hand out clones so callers can't mutate
// persisted state through shared slices.
func (r *Ride) Clone() *Ride {
	c := *r
	c.Vehicles = append([]RideVehicle(nil), r.Vehicles...)
	return &c
}

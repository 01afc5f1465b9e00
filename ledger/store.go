/*
store.go - Persistence interface for the ride ledger

PURPOSE:
  Defines the interface between the domain logic and the database. Unlike a
  classic append-only ledger, rides can be amended and deleted, so the store
  exposes full CRUD - but amendment must go through WithTx so that selector
  resolution and the subsequent write happen atomically (two agents fixing
  the same ride concurrently must not lose updates).

READ MODEL:
  QueryRides serves the presentation layer: filterable, paginated, stable-
  ordered by id. RidesByTime serves the replay consumers (streaks, ownership,
  achievements): ascending timestamp, ties broken by id, which is the only
  storage dependency those algorithms have.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - ledger/store: in-memory store for tests/dev
*/
package ledger

import (
	"context"
	"time"
)

// RideFilter narrows and paginates a ride query. Zero values mean
// "no constraint"; Limit 0 means no page limit.
type RideFilter struct {
	Rider   string
	Company string
	Line    string
	Vehicle string // matches any coupling mode

	From *time.Time
	To   *time.Time

	Limit  int
	Offset int
}

// RideStore handles persistence of rides and their vehicles.
type RideStore interface {
	// InsertRide persists a new ride and returns its assigned id.
	// The ride's own ID field is ignored.
	InsertRide(ctx context.Context, ride *Ride) (RideID, error)

	// GetRide returns the ride with the given id, or ErrRideNotFound.
	GetRide(ctx context.Context, id RideID) (*Ride, error)

	// LatestRide returns the rider's most recent ride (latest timestamp,
	// ties broken by highest id), or ErrRideNotFound.
	LatestRide(ctx context.Context, rider string) (*Ride, error)

	// UpdateRide replaces the stored ride identified by ride.ID, including
	// all its vehicle rows, atomically.
	UpdateRide(ctx context.Context, ride *Ride) error

	// DeleteRide removes the ride and all its vehicle rows atomically.
	DeleteRide(ctx context.Context, id RideID) error

	// QueryRides returns rides matching the filter, stable-ordered by id.
	QueryRides(ctx context.Context, filter RideFilter) ([]Ride, error)

	// RidesByTime returns rides ordered by ascending timestamp (ties by id),
	// optionally filtered by company and/or rider ("" = all). This is the
	// replay feed for all derived computations.
	RidesByTime(ctx context.Context, company, rider string) ([]Ride, error)
}

// TxRideStore wraps RideStore with transaction support. Amendments resolve
// their selector and apply their change inside one transaction.
type TxRideStore interface {
	RideStore

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(RideStore) error) error
}

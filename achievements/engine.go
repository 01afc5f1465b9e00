/*
Package achievements evaluates the achievement catalogue over the ride ledger.

PURPOSE:
  An achievement, once earned, carries the time it was FIRST earned. Nothing
  about unlocks is persisted (except the manual overrides): every evaluation
  replays the full ledger, so amending or deleting a ride can both grant and
  revoke achievements retroactively, and the recorded unlock time is always
  the earliest moment the condition held under the current ledger.

KEY CONCEPTS:
  - Definition + Rule (catalog.go): what an achievement is and when it holds
  - Context (this file): the precomputed per-evaluation view of the ledger
  - Engine: evaluates all rules for all riders
  - Cache (cache.go): atomically swapped snapshot for the read path
*/
package achievements

import (
	"context"
	"sort"
	"time"

	"github.com/warp/ride-ledger/analytics"
	"github.com/warp/ride-ledger/ledger"
	"github.com/warp/ride-ledger/transitcal"
)

// ID identifies an achievement in the catalogue.
type ID string

// Definition describes one achievement.
type Definition struct {
	ID          ID
	Name        string
	Description string

	// Rule returns when the rider first earned the achievement under the
	// current ledger, or false if they have not.
	Rule Rule
}

// Rule evaluates one achievement for one rider against the context.
type Rule func(ctx *Context, rider string) (time.Time, bool)

// Unlock is one earned achievement.
type Unlock struct {
	ID         ID
	Rider      string
	UnlockedAt time.Time
}

// =============================================================================
// EVALUATION CONTEXT
// =============================================================================

// Context is the precomputed view of the ledger one evaluation runs against.
// Shared pieces (ownership replay, monopolies) are computed once, not once
// per rule.
type Context struct {
	// Rides is the full replay feed, ascending by timestamp.
	Rides []ledger.Ride

	// ByRider holds each rider's rides, ascending by timestamp.
	ByRider map[string][]ledger.Ride

	Ownership  analytics.OwnershipResult
	Monopolies []analytics.Monopoly

	// Overrides maps rider to a manually granted unlock time, per
	// overridable achievement.
	Overrides map[ID]map[string]time.Time

	opts EngineOptions
}

// NewContext precomputes the evaluation context from a replay feed.
func NewContext(rides []ledger.Ride, opts EngineOptions) *Context {
	byRider := make(map[string][]ledger.Ride)
	for _, ride := range rides {
		byRider[ride.Rider] = append(byRider[ride.Rider], ride)
	}

	return &Context{
		Rides:      rides,
		ByRider:    byRider,
		Ownership:  analytics.Ownership(rides, analytics.OwnershipOptions{CountFirstRides: opts.CountFirstRides}),
		Monopolies: analytics.Monopolies(rides),
		Overrides:  make(map[ID]map[string]time.Time),
		opts:       opts,
	}
}

// Riders returns all riders present in the ledger, sorted.
func (c *Context) Riders() []string {
	riders := make([]string, 0, len(c.ByRider))
	for rider := range c.ByRider {
		riders = append(riders, rider)
	}
	sort.Strings(riders)
	return riders
}

// firstRideMatching returns the time of the rider's earliest ride whose
// ridden vehicle (with its line) satisfies the predicate.
func (c *Context) firstRideMatching(rider string, pred func(vehicle, line string) bool) (time.Time, bool) {
	for _, ride := range c.ByRider[rider] {
		for _, v := range ride.RiddenVehicles() {
			if pred(v.VehicleNumber, ride.Line) {
				return ride.Timestamp, true
			}
		}
	}
	return time.Time{}, false
}

// rideTimes returns the timestamps of the rider's rides, ascending.
func (c *Context) rideTimes(rider string) []time.Time {
	rides := c.ByRider[rider]
	times := make([]time.Time, len(rides))
	for i, ride := range rides {
		times[i] = ride.Timestamp
	}
	return times
}

// vehicleVisits returns the rider's ridden vehicles as numeric visits, for
// consecutive-number detection. Vehicles without a sole digit block are
// skipped.
func (c *Context) vehicleVisits(rider string) []analytics.Visit {
	var visits []analytics.Visit
	for _, ride := range c.ByRider[rider] {
		for _, v := range ride.RiddenVehicles() {
			if n, ok := analytics.SoleDigitBlock(v.VehicleNumber); ok {
				visits = append(visits, analytics.Visit{Value: n, At: ride.Timestamp})
			}
		}
	}
	return visits
}

// dayVisits returns the rider's rides reduced to transport days.
func (c *Context) dayVisits(rider string) []analytics.DayVisit {
	rides := c.ByRider[rider]
	visits := make([]analytics.DayVisit, len(rides))
	for i, ride := range rides {
		visits[i] = analytics.DayVisit{
			Day: transitcal.TransportDate(ride.Timestamp),
			At:  ride.Timestamp,
		}
	}
	return visits
}

// =============================================================================
// ENGINE
// =============================================================================

// EngineOptions tunes evaluation.
type EngineOptions struct {
	// CountFirstRides feeds through to the takeover balance.
	CountFirstRides bool
}

// OverrideSource supplies manual unlock grants for one achievement, keyed by
// rider.
type OverrideSource interface {
	Overrides(ctx context.Context, id ID) (map[string]time.Time, error)
}

// Engine evaluates a catalogue of achievements over the ledger.
type Engine struct {
	defs      []Definition
	overrides OverrideSource
	opts      EngineOptions
}

// NewEngine creates an engine over the given catalogue. overrides may be nil.
func NewEngine(defs []Definition, overrides OverrideSource, opts EngineOptions) *Engine {
	return &Engine{defs: defs, overrides: overrides, opts: opts}
}

// Definitions returns the catalogue.
func (e *Engine) Definitions() []Definition { return e.defs }

// Definition returns one catalogue entry by id.
func (e *Engine) Definition(id ID) (Definition, bool) {
	for _, def := range e.defs {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}

// Evaluate replays the ledger and returns every rider's unlocks with their
// earliest unlock times.
func (e *Engine) Evaluate(ctx context.Context, rides []ledger.Ride) (map[string]map[ID]time.Time, error) {
	evalCtx := NewContext(rides, e.opts)

	if e.overrides != nil {
		for _, def := range e.defs {
			if !isOverridable(def.ID) {
				continue
			}
			grants, err := e.overrides.Overrides(ctx, def.ID)
			if err != nil {
				return nil, err
			}
			if len(grants) > 0 {
				evalCtx.Overrides[def.ID] = grants
			}
		}
	}

	unlocked := make(map[string]map[ID]time.Time)
	record := func(rider string, id ID, at time.Time) {
		if unlocked[rider] == nil {
			unlocked[rider] = make(map[ID]time.Time)
		}
		if prev, ok := unlocked[rider][id]; !ok || at.Before(prev) {
			unlocked[rider][id] = at
		}
	}

	for _, rider := range evalCtx.Riders() {
		for _, def := range e.defs {
			if at, ok := def.Rule(evalCtx, rider); ok {
				record(rider, def.ID, at)
			}
		}
	}

	// Overrides can grant achievements to riders with no qualifying rides
	// at all.
	for id, grants := range evalCtx.Overrides {
		for rider, at := range grants {
			record(rider, id, at)
		}
	}

	return unlocked, nil
}

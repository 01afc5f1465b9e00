/*
monopoly.go - Fixed-coupling monopoly detection

A monopoly exists when one rider is the current last rider of EVERY vehicle of
a fixed-coupling class. Classes are discovered from the ledger itself: any ride
that records both a ridden vehicle and fixed-coupling companions welds those
vehicles into one class (union-find), so the classes reflect couplings as they
were actually ridden, not just as the catalog lists them today. Last riders
follow the same rule as the ownership replay: only the vehicle a rider
actually occupied gets one.
*/
package analytics

import (
	"time"

	"github.com/warp/ride-ledger/ledger"
)

// Monopoly is one fully-held fixed-coupling class.
type Monopoly struct {
	Rider string

	// Vehicles of the class, in first-seen replay order.
	Vehicles []VehicleKey

	// EstablishedAt is when the rider took the last missing vehicle of the
	// class, i.e. the latest last-ride time among its vehicles.
	EstablishedAt time.Time
}

// Monopolies replays rides (ascending timestamp order) and returns the
// currently held monopolies, ordered by the first appearance of their class
// in the ledger. A class with a member nobody has actually ridden has no
// holder for that member and is excluded outright.
func Monopolies(rides []ledger.Ride) []Monopoly {
	uf := newUnionFind()
	seen := make(map[VehicleKey]bool)
	lastRider := make(map[VehicleKey]string)
	lastRiddenAt := make(map[VehicleKey]time.Time)
	var order []VehicleKey // first-seen order of class seeds

	for _, ride := range rides {
		fixed := false
		for _, v := range ride.Vehicles {
			if v.CouplingMode == ledger.CouplingFixed {
				fixed = true
				break
			}
		}

		var prev VehicleKey
		havePrev := false
		for _, v := range ride.Vehicles {
			key := VehicleKey{Company: ride.Company, Number: v.VehicleNumber}
			if !seen[key] {
				seen[key] = true
				order = append(order, key)
			}
			// Fixed and explicit companions weld the class but acquire no
			// last rider of their own.
			if v.CouplingMode == ledger.CouplingRidden && lastRider[key] != ride.Rider {
				lastRider[key] = ride.Rider
				lastRiddenAt[key] = ride.Timestamp
			}

			// Only a genuine fixed consist welds vehicles together. A loose
			// combination of free-standing vehicles is not a coupling class.
			if fixed {
				if havePrev {
					uf.union(prev, key)
				}
				prev, havePrev = key, true
			}
		}
	}

	// Group vehicles into classes, keeping first-seen order within and
	// between classes.
	classes := make(map[VehicleKey][]VehicleKey)
	var classOrder []VehicleKey
	for _, key := range order {
		root := uf.find(key)
		if len(classes[root]) == 0 {
			classOrder = append(classOrder, root)
		}
		classes[root] = append(classes[root], key)
	}

	var out []Monopoly
	for _, root := range classOrder {
		members := classes[root]
		if len(members) < 2 {
			continue // a single vehicle is ownership, not a monopoly
		}
		holder := lastRider[members[0]]
		monopolized := true
		var establishedAt time.Time
		for _, key := range members {
			rider, ridden := lastRider[key]
			if !ridden || rider != holder {
				monopolized = false
				break
			}
			if at := lastRiddenAt[key]; at.After(establishedAt) {
				establishedAt = at
			}
		}
		if !monopolized {
			continue
		}
		out = append(out, Monopoly{
			Rider:         holder,
			Vehicles:      members,
			EstablishedAt: establishedAt,
		})
	}
	return out
}

// MonopolyCounts returns how many monopolies each rider currently holds.
func MonopolyCounts(rides []ledger.Ride) map[string]int {
	counts := make(map[string]int)
	for _, m := range Monopolies(rides) {
		counts[m.Rider]++
	}
	return counts
}

// =============================================================================
// UNION-FIND
// =============================================================================

type unionFind struct {
	parent map[VehicleKey]VehicleKey
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[VehicleKey]VehicleKey)}
}

func (u *unionFind) find(key VehicleKey) VehicleKey {
	root, ok := u.parent[key]
	if !ok || root == key {
		return key
	}
	resolved := u.find(root)
	u.parent[key] = resolved // path compression
	return resolved
}

func (u *unionFind) union(a, b VehicleKey) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

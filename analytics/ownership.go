/*
ownership.go - Last-rider tracking, takeovers, and the takeover balance

MODEL:
  The vehicle a rider actually occupied changes hands: after the ride, the
  ride's rider is that vehicle's last rider until someone else rides it.
  Explicit and fixed-coupling companions are along for the ride and acquire
  nothing. Each change of hands is a takeover. A rider's balance is takeovers
  gained minus takeovers suffered; riding a vehicle you already hold moves
  nothing.

  Whether a first ride (no previous holder) counts towards the balance is a
  policy knob: it rewards exploration when on, and makes the balance a pure
  zero-sum rivalry score when off.
*/
package analytics

import (
	"time"

	"github.com/warp/ride-ledger/ledger"
)

// VehicleKey identifies a vehicle across the whole ledger.
type VehicleKey struct {
	Company string
	Number  string
}

// Takeover is one change of hands of one vehicle. From is "" for a first ride.
type Takeover struct {
	Vehicle VehicleKey
	From    string
	To      string
	At      time.Time
}

// OwnershipResult is the outcome of replaying the ledger's takeover history.
type OwnershipResult struct {
	// Balances maps rider to takeovers gained minus takeovers suffered.
	Balances map[string]int

	// FirstRides maps rider to the number of vehicles they rode first,
	// ledger-wide.
	FirstRides map[string]int

	// LastRiders maps each vehicle to its current holder.
	LastRiders map[VehicleKey]string

	// Takeovers in replay order.
	Takeovers []Takeover
}

// OwnershipOptions tunes the replay.
type OwnershipOptions struct {
	// CountFirstRides credits a balance point for riding a vehicle nobody
	// had ridden before.
	CountFirstRides bool

	// IncludeSameRider also emits a takeover event (From == To) when the
	// current holder rides their own vehicle again. Such events never move
	// the balance.
	IncludeSameRider bool
}

// Ownership replays rides (which must be in ascending timestamp order, as
// returned by the store's replay feed) and derives last riders, takeovers,
// first-ride counts, and balances.
func Ownership(rides []ledger.Ride, opts OwnershipOptions) OwnershipResult {
	res := OwnershipResult{
		Balances:   make(map[string]int),
		FirstRides: make(map[string]int),
		LastRiders: make(map[VehicleKey]string),
	}

	for _, ride := range rides {
		for _, v := range ride.Vehicles {
			// Only the occupied vehicle changes hands.
			if v.CouplingMode != ledger.CouplingRidden {
				continue
			}
			key := VehicleKey{Company: ride.Company, Number: v.VehicleNumber}
			prev, held := res.LastRiders[key]

			if held && prev == ride.Rider {
				if opts.IncludeSameRider {
					res.Takeovers = append(res.Takeovers, Takeover{
						Vehicle: key, From: prev, To: ride.Rider, At: ride.Timestamp,
					})
				}
				continue
			}

			res.LastRiders[key] = ride.Rider
			takeover := Takeover{Vehicle: key, To: ride.Rider, At: ride.Timestamp}

			if !held {
				res.FirstRides[ride.Rider]++
				if opts.CountFirstRides {
					res.Balances[ride.Rider]++
				}
			} else {
				takeover.From = prev
				res.Balances[ride.Rider]++
				res.Balances[prev]--
			}
			res.Takeovers = append(res.Takeovers, takeover)
		}
	}
	return res
}

// BalanceReachedAt replays the takeover stream and returns the time a rider's
// balance first reached the threshold.
func BalanceReachedAt(takeovers []Takeover, rider string, threshold int, opts OwnershipOptions) (time.Time, bool) {
	balance := 0
	for _, t := range takeovers {
		switch {
		case t.From == t.To:
			continue // same-rider events never move the balance
		case t.To == rider && t.From == "":
			if !opts.CountFirstRides {
				continue
			}
			balance++
		case t.To == rider:
			balance++
		case t.From == rider:
			balance--
		default:
			continue
		}
		if balance >= threshold {
			return t.At, true
		}
	}
	return time.Time{}, false
}

// TakeoversFrom returns the takeovers in which a rider lost a vehicle to
// someone else.
func TakeoversFrom(takeovers []Takeover, rider string) []Takeover {
	var out []Takeover
	for _, t := range takeovers {
		if t.From == rider && t.To != rider {
			out = append(out, t)
		}
	}
	return out
}

// TakeoversBy returns the takeovers in which a rider gained a vehicle,
// optionally including first rides.
func TakeoversBy(takeovers []Takeover, rider string, includeFirstRides bool) []Takeover {
	var out []Takeover
	for _, t := range takeovers {
		if t.To != rider || t.From == rider {
			continue
		}
		if t.From == "" && !includeFirstRides {
			continue
		}
		out = append(out, t)
	}
	return out
}

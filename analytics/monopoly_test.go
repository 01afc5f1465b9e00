package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ride-ledger/ledger"
)

// fixedRide builds a ride over a fixed consist: the first vehicle ridden, the
// rest fixed-coupling companions.
func fixedRide(rider string, min int, vehicles ...string) ledger.Ride {
	r := ledger.Ride{
		Company:   "wl",
		Rider:     rider,
		Timestamp: at(min),
	}
	for i, number := range vehicles {
		mode := ledger.CouplingFixed
		if i == 0 {
			mode = ledger.CouplingRidden
		}
		r.Vehicles = append(r.Vehicles, ledger.RideVehicle{
			VehicleNumber:         number,
			SpecPosition:          i,
			FixedCouplingPosition: i,
			CouplingMode:          mode,
		})
	}
	return r
}

func TestMonopolies_HeldConsist(t *testing.T) {
	// Alice works her way through the consist, occupying each member in turn.
	rides := []ledger.Ride{
		fixedRide("alice", 0, "4010", "4011", "4012"),
		fixedRide("alice", 10, "4011", "4012", "4010"),
		fixedRide("alice", 20, "4012", "4010", "4011"),
	}

	monopolies := Monopolies(rides)

	require.Len(t, monopolies, 1)
	assert.Equal(t, "alice", monopolies[0].Rider)
	assert.Equal(t, []VehicleKey{
		{Company: "wl", Number: "4010"},
		{Company: "wl", Number: "4011"},
		{Company: "wl", Number: "4012"},
	}, monopolies[0].Vehicles)
	// Established when the last missing member was taken.
	assert.Equal(t, at(20), monopolies[0].EstablishedAt)
}

func TestMonopolies_UnriddenMemberExcludesClass(t *testing.T) {
	// One ride over the whole consist occupies only the first vehicle; the
	// fixed companions stay holderless, so the class holds no monopoly.
	rides := []ledger.Ride{
		fixedRide("alice", 0, "4010", "4011", "4012"),
	}

	assert.Empty(t, Monopolies(rides))

	res := Ownership(rides, OwnershipOptions{CountFirstRides: true})
	assert.Equal(t, 1, res.Balances["alice"])
}

func TestMonopolies_SplitHoldingIsNoMonopoly(t *testing.T) {
	rides := []ledger.Ride{
		fixedRide("alice", 0, "4010", "4011", "4012"),
		fixedRide("alice", 10, "4011", "4012", "4010"),
		fixedRide("alice", 20, "4012", "4010", "4011"),
		// Bob takes only the middle vehicle out of the class.
		ride("bob", 30, "4011"),
	}

	monopolies := Monopolies(rides)
	assert.Empty(t, monopolies)

	// Bob completing the set re-establishes the monopoly, for Bob.
	rides = append(rides,
		ride("bob", 40, "4010"),
		ride("bob", 50, "4012"),
	)
	monopolies = Monopolies(rides)
	require.Len(t, monopolies, 1)
	assert.Equal(t, "bob", monopolies[0].Rider)
	assert.Equal(t, at(50), monopolies[0].EstablishedAt)
}

func TestMonopolies_LooseCouplingIsNoClass(t *testing.T) {
	// Two free-standing vehicles ridden together are not a coupling class.
	rides := []ledger.Ride{
		ride("alice", 0, "121", "122"),
	}

	assert.Empty(t, Monopolies(rides))
}

func TestMonopolies_FirstSeenOrder(t *testing.T) {
	rides := []ledger.Ride{
		fixedRide("alice", 0, "200", "201"),
		fixedRide("alice", 10, "201", "200"),
		fixedRide("bob", 20, "100", "101"),
		fixedRide("bob", 30, "101", "100"),
	}

	monopolies := Monopolies(rides)
	require.Len(t, monopolies, 2)
	assert.Equal(t, "alice", monopolies[0].Rider)
	assert.Equal(t, "bob", monopolies[1].Rider)
}

func TestMonopolyCounts(t *testing.T) {
	rides := []ledger.Ride{
		fixedRide("alice", 0, "200", "201"),
		fixedRide("alice", 10, "201", "200"),
		fixedRide("alice", 20, "300", "301"),
		fixedRide("alice", 30, "301", "300"),
		fixedRide("bob", 40, "100", "101"),
		fixedRide("bob", 50, "101", "100"),
	}

	counts := MonopolyCounts(rides)
	assert.Equal(t, 2, counts["alice"])
	assert.Equal(t, 1, counts["bob"])
}

// =============================================================================
// SCORES
// =============================================================================

func TestSoleDigitBlock(t *testing.T) {
	cases := []struct {
		in    string
		value int64
		ok    bool
	}{
		{"4012", 4012, true},
		{"W613", 613, true},
		{"U6", 6, true},
		{"007", 7, true},
		{"ABC", 0, false},
		{"71/72", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		value, ok := SoleDigitBlock(c.in)
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		if c.ok {
			assert.Equal(t, c.value, value, "input %q", c.in)
		}
	}
}

func TestRideDivisibilityScore(t *testing.T) {
	r := ride("alice", 0, "426")
	r.Line = "71"
	assert.Equal(t, int64(71), RideDivisibilityScore(&r))

	r.Line = "5"
	assert.Equal(t, int64(0), RideDivisibilityScore(&r))

	// Only ridden vehicles score; 426 is ridden, 852 merely explicit.
	r = ride("alice", 0, "426", "852")
	r.Line = "71"
	assert.Equal(t, int64(71), RideDivisibilityScore(&r))

	// No line, no score.
	r = ride("alice", 0, "426")
	assert.Equal(t, int64(0), RideDivisibilityScore(&r))
}

func TestDivisibilityScores(t *testing.T) {
	r1 := ride("alice", 0, "426")
	r1.Line = "71"
	r2 := ride("alice", 10, "142")
	r2.Line = "71"
	r3 := ride("bob", 20, "100")
	r3.Line = "10"

	scores := DivisibilityScores([]ledger.Ride{r1, r2, r3})
	assert.Equal(t, int64(142), scores["alice"]) // 71 twice
	assert.Equal(t, int64(10), scores["bob"])
	assert.NotContains(t, scores, "carol")
}

/*
catalog.go - The achievement catalogue

Four families of rules:
  1. Number-shape predicates on a single ride's ridden vehicle
  2. Count thresholds, plain and windowed
  3. Sequences: consecutive vehicle numbers and consecutive riding days
  4. Relations: calendar echoes, takeover balance, monopolies, and the one
     manually granted achievement

Every rule answers the same question: under the current ledger, WHEN did this
rider first satisfy the condition?
*/
package achievements

import (
	"time"

	"github.com/warp/ride-ledger/analytics"
	"github.com/warp/ride-ledger/transitcal"
)

// ThursdayID is the only achievement granted by hand rather than computed
// from the ledger.
const ThursdayID ID = "it-must-be-thursday"

func isOverridable(id ID) bool { return id == ThursdayID }

// Catalog returns the full achievement catalogue.
func Catalog() []Definition {
	defs := []Definition{
		// ---- Number shapes -------------------------------------------------
		def("beastly", "Beastly", "Ride a vehicle whose number contains 666.",
			vehicleRule(vehicleContains("666"))),
		def("nice", "Nice", "Ride a vehicle whose number contains 69.",
			vehicleRule(vehicleContains("69"))),
		def("answer", "The Answer", "Ride a vehicle whose number contains 42.",
			vehicleRule(vehicleContains("42"))),
		def("mirror-mirror", "Mirror, Mirror", "Ride a vehicle whose number is a palindrome of more than two digits.",
			vehicleRule(vehiclePalindrome)),
		def("one-track-mind", "One-Track Mind", "Ride a vehicle whose number repeats a single digit at least three times.",
			vehicleRule(vehicleRepdigit)),
		def("indivisible", "Indivisible", "Ride a vehicle with a prime number.",
			vehicleRule(vehiclePrime)),
		def("stairway-up", "Stairway Up", "Ride a vehicle whose digits strictly ascend.",
			vehicleRule(vehicleAscending)),
		def("stairway-down", "Stairway Down", "Ride a vehicle whose digits strictly descend.",
			vehicleRule(vehicleDescending)),
		def("remainder-zero", "Remainder Zero", "Ride a vehicle whose number is divisible by its line.",
			vehicleRule(vehicleDivisibleByLine)),
		def("reflection", "Reflection", "Ride a vehicle whose number is its line read backwards.",
			vehicleRule(vehicleMirrorsLine)),
		def("perfect-match", "Perfect Match", "Ride a vehicle whose number equals its line.",
			vehicleRule(vehicleEqualsLine)),
		def("round-thousand", "Round Thousand", "Ride a vehicle whose number is a multiple of 1000.",
			vehicleRule(func(vehicle, _ string) bool {
				n, ok := analytics.SoleDigitBlock(vehicle)
				return ok && n != 0 && n%1000 == 0
			})),
		def("single-digit", "Small Beginnings", "Ride a vehicle with a single-digit number.",
			vehicleRule(func(vehicle, _ string) bool {
				block := digitBlock(vehicle)
				return len(block) == 1
			})),
		def("five-digits", "Heavy Iron", "Ride a vehicle with a number of five or more digits.",
			vehicleRule(func(vehicle, _ string) bool {
				n, ok := analytics.SoleDigitBlock(vehicle)
				return ok && n >= 10000
			})),

		// ---- Plain counts --------------------------------------------------
		def("first-ride", "Off We Go", "Record your first ride.", nthRideRule(1)),
		def("ten-rides", "Regular", "Record 10 rides.", nthRideRule(10)),
		def("hundred-rides", "Commuter", "Record 100 rides.", nthRideRule(100)),
		def("thousand-rides", "Inventory Auditor", "Record 1000 rides.", nthRideRule(1000)),

		def("old-friend", "Old Friend", "Ride the same vehicle 5 times.", nthSameVehicleRule(5)),
		def("soulmates", "Soulmates", "Ride the same vehicle 25 times.", nthSameVehicleRule(25)),
		def("creature-of-habit", "Creature of Habit", "Ride the same vehicle on the same line 10 times.",
			nthSameVehicleLineRule(10)),

		def("collector", "Collector", "Ride 50 distinct vehicles.", distinctVehiclesRule(50)),
		def("completionist", "Completionist", "Ride 250 distinct vehicles.", distinctVehiclesRule(250)),
		def("line-hopper", "Line Hopper", "Ride on 10 distinct lines.", distinctLinesRule(10)),
		def("network-crawler", "Network Crawler", "Ride on 25 distinct lines.", distinctLinesRule(25)),
		def("defector", "Defector", "Ride with 2 distinct companies.", distinctCompaniesRule(2)),
		def("cosmopolitan", "Cosmopolitan", "Ride with 5 distinct companies.", distinctCompaniesRule(5)),

		def("busy-day", "Busy Day", "Record 5 rides in one transport day.", ridesInOneDayRule(5)),
		def("marathon-day", "Marathon Day", "Record 15 rides in one transport day.", ridesInOneDayRule(15)),

		// ---- Windowed counts -----------------------------------------------
		def("intense-week", "Intense Week", "Record 20 rides within 7 days.",
			rollingRule(transitcal.LookbackWeek, 20)),
		def("intense-month", "Intense Month", "Record 60 rides within a month.",
			rollingRule(transitcal.LookbackMonth, 60)),
		def("year-of-the-tram", "Year of the Tram", "Record 365 rides within a year.",
			rollingRule(transitcal.LookbackYear, 365)),

		// ---- Sequences -----------------------------------------------------
		def("three-in-a-row", "Three in a Row", "Ride 3 vehicles with consecutive numbers.",
			consecutiveVehiclesRule(3)),
		def("five-in-a-row", "Five in a Row", "Ride 5 vehicles with consecutive numbers.",
			consecutiveVehiclesRule(5)),
		def("ten-in-a-row", "Ten in a Row", "Ride 10 vehicles with consecutive numbers.",
			consecutiveVehiclesRule(10)),

		def("three-day-streak", "Warming Up", "Ride on 3 consecutive days.", consecutiveDaysRule(3)),
		def("five-day-streak", "Habit Forming", "Ride on 5 consecutive days.", consecutiveDaysRule(5)),
		def("week-streak", "No Day Without", "Ride on 7 consecutive days.", consecutiveDaysRule(7)),

		// ---- Calendar echoes -----------------------------------------------
		def("deja-vu-week", "Déjà Vu", "Ride the same vehicle exactly one week later.",
			sameVehicleEchoRule(transitcal.WeekAfter)),
		def("anniversary-month", "Monthly Subscription", "Ride the same vehicle exactly one month later.",
			sameVehicleEchoRule(transitcal.MonthAfter)),
		def("anniversary-year", "Anniversary", "Ride the same vehicle exactly one year later.",
			sameVehicleEchoRule(transitcal.YearAfter)),

		// ---- Ownership and rivalry -----------------------------------------
		def("pioneer", "Pioneer", "Be the first to ride 10 vehicles.", firstRidesRule(10)),
		def("trailblazer", "Trailblazer", "Be the first to ride 100 vehicles.", firstRidesRule(100)),
		def("pickpocket", "Pickpocket", "Take a vehicle over from another rider.", takeoverRule(1)),
		def("raider", "Raider", "Take 50 vehicles over from other riders.", takeoverRule(50)),
		def("in-the-black", "In the Black", "Reach a takeover balance of 10.", balanceRule(10)),
		def("tycoon", "Tycoon", "Reach a takeover balance of 100.", balanceRule(100)),
		def("monopolist", "Monopolist", "Hold every vehicle of a fixed coupling at once.", monopolyRule(1)),
		def("cartel", "Cartel", "Hold 5 fixed couplings at once.", monopolyRule(5)),

		// ---- Scores --------------------------------------------------------
		def("long-division", "Long Division", "Reach a divisibility score of 100.", divScoreRule(100)),
		def("number-theorist", "Number Theorist", "Reach a divisibility score of 1000.", divScoreRule(1000)),
	}

	defs = append(defs, Definition{
		ID:          ThursdayID,
		Name:        "It Must Be Thursday",
		Description: "Awarded by the operators for deeds the ledger cannot see.",
		Rule:        overrideRule(ThursdayID),
	})
	return defs
}

func def(id ID, name, description string, rule Rule) Definition {
	return Definition{ID: id, Name: name, Description: description, Rule: rule}
}

// =============================================================================
// RULE BUILDERS
// =============================================================================

func vehicleRule(pred func(vehicle, line string) bool) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		return ctx.firstRideMatching(rider, pred)
	}
}

func nthRideRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		return analytics.CountThresholdReachedAt(ctx.rideTimes(rider), n)
	}
}

func nthSameVehicleRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		counts := make(map[analytics.VehicleKey]int)
		for _, ride := range ctx.ByRider[rider] {
			for _, v := range ride.RiddenVehicles() {
				key := analytics.VehicleKey{Company: ride.Company, Number: v.VehicleNumber}
				counts[key]++
				if counts[key] == n {
					return ride.Timestamp, true
				}
			}
		}
		return time.Time{}, false
	}
}

func nthSameVehicleLineRule(n int) Rule {
	type key struct {
		vehicle analytics.VehicleKey
		line    string
	}
	return func(ctx *Context, rider string) (time.Time, bool) {
		counts := make(map[key]int)
		for _, ride := range ctx.ByRider[rider] {
			if ride.Line == "" {
				continue
			}
			for _, v := range ride.RiddenVehicles() {
				k := key{
					vehicle: analytics.VehicleKey{Company: ride.Company, Number: v.VehicleNumber},
					line:    ride.Line,
				}
				counts[k]++
				if counts[k] == n {
					return ride.Timestamp, true
				}
			}
		}
		return time.Time{}, false
	}
}

func distinctVehiclesRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		seen := make(map[analytics.VehicleKey]bool)
		for _, ride := range ctx.ByRider[rider] {
			for _, v := range ride.RiddenVehicles() {
				key := analytics.VehicleKey{Company: ride.Company, Number: v.VehicleNumber}
				if seen[key] {
					continue
				}
				seen[key] = true
				if len(seen) == n {
					return ride.Timestamp, true
				}
			}
		}
		return time.Time{}, false
	}
}

func distinctLinesRule(n int) Rule {
	type key struct{ company, line string }
	return func(ctx *Context, rider string) (time.Time, bool) {
		seen := make(map[key]bool)
		for _, ride := range ctx.ByRider[rider] {
			if ride.Line == "" {
				continue
			}
			k := key{company: ride.Company, line: ride.Line}
			if seen[k] {
				continue
			}
			seen[k] = true
			if len(seen) == n {
				return ride.Timestamp, true
			}
		}
		return time.Time{}, false
	}
}

func distinctCompaniesRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		seen := make(map[string]bool)
		for _, ride := range ctx.ByRider[rider] {
			if seen[ride.Company] {
				continue
			}
			seen[ride.Company] = true
			if len(seen) == n {
				return ride.Timestamp, true
			}
		}
		return time.Time{}, false
	}
}

func ridesInOneDayRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		counts := make(map[transitcal.Date]int)
		for _, ride := range ctx.ByRider[rider] {
			day := transitcal.TransportDate(ride.Timestamp)
			counts[day]++
			if counts[day] == n {
				return ride.Timestamp, true
			}
		}
		return time.Time{}, false
	}
}

func rollingRule(lookback transitcal.Lookback, n int) Rule {
	window := lookback.Duration()
	return func(ctx *Context, rider string) (time.Time, bool) {
		return analytics.RollingCountReachedAt(ctx.rideTimes(rider), window, n)
	}
}

func consecutiveVehiclesRule(length int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		return analytics.RunReachedAt(ctx.vehicleVisits(rider), length)
	}
}

func consecutiveDaysRule(length int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		return analytics.DayStreakReachedAt(ctx.dayVisits(rider), length)
	}
}

// sameVehicleEchoRule matches riding the same vehicle on two transport days
// related by the given calendar relation. The unlock time is the echo ride.
func sameVehicleEchoRule(relation func(earlier, later transitcal.Date) bool) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		days := make(map[analytics.VehicleKey][]analytics.DayVisit)
		for _, ride := range ctx.ByRider[rider] {
			day := transitcal.TransportDate(ride.Timestamp)
			for _, v := range ride.RiddenVehicles() {
				key := analytics.VehicleKey{Company: ride.Company, Number: v.VehicleNumber}
				visits := days[key]
				for _, earlier := range visits {
					if relation(earlier.Day, day) {
						return ride.Timestamp, true
					}
				}
				if len(visits) == 0 || visits[len(visits)-1].Day != day {
					days[key] = append(visits, analytics.DayVisit{Day: day, At: ride.Timestamp})
				}
			}
		}
		return time.Time{}, false
	}
}

func firstRidesRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		var times []time.Time
		for _, t := range analytics.TakeoversBy(ctx.Ownership.Takeovers, rider, true) {
			if t.From == "" {
				times = append(times, t.At)
			}
		}
		return analytics.CountThresholdReachedAt(times, n)
	}
}

func takeoverRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		takeovers := analytics.TakeoversBy(ctx.Ownership.Takeovers, rider, false)
		times := make([]time.Time, len(takeovers))
		for i, t := range takeovers {
			times[i] = t.At
		}
		return analytics.CountThresholdReachedAt(times, n)
	}
}

func balanceRule(threshold int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		return analytics.BalanceReachedAt(ctx.Ownership.Takeovers, rider, threshold,
			analytics.OwnershipOptions{CountFirstRides: ctx.opts.CountFirstRides})
	}
}

// monopolyRule matches holding n fixed-coupling classes at once, timed at the
// n-th earliest establishment among the currently held ones.
func monopolyRule(n int) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		var times []time.Time
		for _, m := range ctx.Monopolies {
			if m.Rider == rider {
				times = append(times, m.EstablishedAt)
			}
		}
		return analytics.CountThresholdReachedAt(times, n)
	}
}

func divScoreRule(threshold int64) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		var score int64
		for i := range ctx.ByRider[rider] {
			ride := &ctx.ByRider[rider][i]
			score += analytics.RideDivisibilityScore(ride)
			if score >= threshold {
				return ride.Timestamp, true
			}
		}
		return time.Time{}, false
	}
}

func overrideRule(id ID) Rule {
	return func(ctx *Context, rider string) (time.Time, bool) {
		at, ok := ctx.Overrides[id][rider]
		return at, ok
	}
}

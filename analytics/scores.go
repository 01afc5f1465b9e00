/*
scores.go - Divisibility scores

A ride scores when its vehicle number is evenly divisible by its line number,
both read as the sole digit block of their identifier ("W613" -> 613). The
score awarded is the line number itself, so dividing by line 71 is worth more
than dividing by line 1. Scores accumulate per rider over the whole ledger.
*/
package analytics

import (
	"github.com/warp/ride-ledger/ledger"
)

// SoleDigitBlock extracts the numeric value of a string containing exactly one
// maximal run of digits ("W613" -> 613, "4012" -> 4012). Strings with zero or
// several digit runs ("ABC", "71/72") have no sole digit block.
func SoleDigitBlock(s string) (int64, bool) {
	var value int64
	inRun := false
	runs := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			if !inRun {
				inRun = true
				runs++
				if runs > 1 {
					return 0, false
				}
				value = 0
			}
			value = value*10 + int64(r-'0')
		} else {
			inRun = false
		}
	}
	if runs != 1 {
		return 0, false
	}
	return value, true
}

// RideDivisibilityScore returns the score a single ride earns: the sum of the
// line number over all ridden vehicles whose number it divides evenly.
func RideDivisibilityScore(ride *ledger.Ride) int64 {
	line, ok := SoleDigitBlock(ride.Line)
	if !ok || line == 0 {
		return 0
	}
	var score int64
	for _, v := range ride.RiddenVehicles() {
		vehicle, ok := SoleDigitBlock(v.VehicleNumber)
		if !ok {
			continue
		}
		if vehicle%line == 0 {
			score += line
		}
	}
	return score
}

// DivisibilityScores accumulates every ride's score per rider.
func DivisibilityScores(rides []ledger.Ride) map[string]int64 {
	scores := make(map[string]int64)
	for i := range rides {
		if s := RideDivisibilityScore(&rides[i]); s != 0 {
			scores[rides[i].Rider] += s
		}
	}
	return scores
}

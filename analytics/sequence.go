/*
Package analytics derives statistics from the ride ledger by replaying it.

PURPOSE:
  Nothing in this package is stored; every result is a pure function of the
  ledger's replay feed (rides ascending by timestamp, ties by id). Amending or
  deleting a ride therefore never leaves stale derived state behind, it just
  changes the next computation's answer.

KEY CONCEPTS IN THIS FILE (sequence.go):
  - Runs of consecutive integers over a visited set (vehicle numbers)
  - Day streaks over transport days (04:00 boundary)
  - Rolling-window ride counts
  All three report not only whether a milestone holds but WHEN it was first
  reached, because achievements record their unlock time.
*/
package analytics

import (
	"sort"
	"time"

	"github.com/warp/ride-ledger/transitcal"
)

// =============================================================================
// CONSECUTIVE-NUMBER RUNS
// =============================================================================

// Visit is one sighting of an integer value at a point in time.
type Visit struct {
	Value int64
	At    time.Time
}

// LongestRun returns the length of the longest run of consecutive integers
// present in values. Duplicates are ignored. An empty input has run length 0.
func LongestRun(values []int64) int {
	if len(values) == 0 {
		return 0
	}
	set := make(map[int64]bool, len(values))
	for _, v := range values {
		set[v] = true
	}

	best := 0
	for v := range set {
		if set[v-1] {
			continue // not a run start
		}
		length := 1
		for set[v+int64(length)] {
			length++
		}
		if length > best {
			best = length
		}
	}
	return best
}

// RunReachedAt returns the earliest time at which some run of `length`
// consecutive values had been fully visited. Only the FIRST visit of each
// value counts; revisits cannot make a run earlier.
//
// The answer is the minimum, over all complete windows [v, v+length-1], of the
// window's latest first-visit time.
func RunReachedAt(visits []Visit, length int) (time.Time, bool) {
	if length <= 0 {
		return time.Time{}, false
	}

	first := make(map[int64]time.Time, len(visits))
	for _, visit := range visits {
		if prev, ok := first[visit.Value]; !ok || visit.At.Before(prev) {
			first[visit.Value] = visit.At
		}
	}

	var reached time.Time
	found := false
	for start := range first {
		completeAt, ok := windowComplete(first, start, length)
		if !ok {
			continue
		}
		if !found || completeAt.Before(reached) {
			reached = completeAt
			found = true
		}
	}
	return reached, found
}

// windowComplete reports whether all of [start, start+length-1] were visited,
// and if so the latest first-visit time among them.
func windowComplete(first map[int64]time.Time, start int64, length int) (time.Time, bool) {
	var latest time.Time
	for i := int64(0); i < int64(length); i++ {
		at, ok := first[start+i]
		if !ok {
			return time.Time{}, false
		}
		if at.After(latest) {
			latest = at
		}
	}
	return latest, true
}

// =============================================================================
// DAY STREAKS
// =============================================================================

// DayVisit is one ride reduced to its transport day and timestamp.
type DayVisit struct {
	Day transitcal.Date
	At  time.Time
}

// DayStreakReachedAt replays visits in chronological order and returns the
// time the streak of consecutive transport days first reached `length`.
// Another ride on the same day neither extends nor breaks the streak; a gap
// of more than one day resets it.
func DayStreakReachedAt(visits []DayVisit, length int) (time.Time, bool) {
	if length <= 0 {
		return time.Time{}, false
	}

	sorted := append([]DayVisit(nil), visits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	streak := 0
	var last transitcal.Date
	for _, visit := range sorted {
		switch {
		case streak == 0:
			streak = 1
		case visit.Day == last:
			continue
		case last.DaysUntil(visit.Day) == 1:
			streak++
		default:
			streak = 1
		}
		last = visit.Day
		if streak >= length {
			return visit.At, true
		}
	}
	return time.Time{}, false
}

// LongestDayStreak returns the longest streak of consecutive transport days
// in the visit set.
func LongestDayStreak(visits []DayVisit) int {
	sorted := append([]DayVisit(nil), visits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	best, streak := 0, 0
	var last transitcal.Date
	for _, visit := range sorted {
		switch {
		case streak == 0:
			streak = 1
		case visit.Day == last:
			continue
		case last.DaysUntil(visit.Day) == 1:
			streak++
		default:
			streak = 1
		}
		last = visit.Day
		if streak > best {
			best = streak
		}
	}
	return best
}

// =============================================================================
// ROLLING-WINDOW COUNTS
// =============================================================================

// RollingCountReachedAt returns the earliest event time T at which at least
// `threshold` of the given times fall into the half-open window (T-window, T].
// Windows are only evaluated at event times; the count can never first cross
// the threshold between events.
func RollingCountReachedAt(times []time.Time, window time.Duration, threshold int) (time.Time, bool) {
	if threshold <= 0 || window <= 0 || len(times) < threshold {
		return time.Time{}, false
	}

	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	lo := 0
	for hi, t := range sorted {
		cutoff := t.Add(-window)
		for !sorted[lo].After(cutoff) {
			lo++
		}
		if hi-lo+1 >= threshold {
			return t, true
		}
	}
	return time.Time{}, false
}

// CountThresholdReachedAt returns the time of the n-th event, in chronological
// order. It is the plain (non-windowed) counterpart of RollingCountReachedAt.
func CountThresholdReachedAt(times []time.Time, n int) (time.Time, bool) {
	if n <= 0 || len(times) < n {
		return time.Time{}, false
	}
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[n-1], true
}

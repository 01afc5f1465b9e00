package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/ride-ledger/transitcal"
)

func at(min int) time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(min) * time.Minute)
}

func TestLongestRun(t *testing.T) {
	// GIVEN vehicles 101,102,104,105,106: the longest run is 104-106
	assert.Equal(t, 3, LongestRun([]int64{101, 102, 104, 105, 106}))

	assert.Equal(t, 0, LongestRun(nil))
	assert.Equal(t, 1, LongestRun([]int64{42}))
	assert.Equal(t, 1, LongestRun([]int64{42, 42, 42}))
	assert.Equal(t, 5, LongestRun([]int64{5, 3, 1, 2, 4}))
	// Two disjoint runs, the longer one wins.
	assert.Equal(t, 4, LongestRun([]int64{10, 11, 20, 21, 22, 23}))
}

func TestRunReachedAt(t *testing.T) {
	visits := []Visit{
		{Value: 101, At: at(0)},
		{Value: 103, At: at(1)},
		{Value: 102, At: at(2)}, // completes 101-103
		{Value: 104, At: at(3)}, // completes 102-104
	}

	reached, ok := RunReachedAt(visits, 3)
	assert.True(t, ok)
	assert.Equal(t, at(2), reached)

	// A run of 4 needs the last visit.
	reached, ok = RunReachedAt(visits, 4)
	assert.True(t, ok)
	assert.Equal(t, at(3), reached)

	_, ok = RunReachedAt(visits, 5)
	assert.False(t, ok)
}

func TestRunReachedAt_RevisitsDoNotCount(t *testing.T) {
	// 102 is revisited later; only its first visit matters.
	visits := []Visit{
		{Value: 102, At: at(0)},
		{Value: 101, At: at(1)},
		{Value: 103, At: at(2)},
		{Value: 102, At: at(9)},
	}

	reached, ok := RunReachedAt(visits, 3)
	assert.True(t, ok)
	assert.Equal(t, at(2), reached)
}

func TestRunReachedAt_EarlierWindowWins(t *testing.T) {
	// 100 arrives late: window 101-103 completes before window 100-102.
	visits := []Visit{
		{Value: 101, At: at(0)},
		{Value: 102, At: at(1)},
		{Value: 103, At: at(2)},
		{Value: 100, At: at(9)},
	}

	reached, ok := RunReachedAt(visits, 3)
	assert.True(t, ok)
	assert.Equal(t, at(2), reached)
}

func TestDayStreakReachedAt(t *testing.T) {
	day := func(d int, hour int) DayVisit {
		ts := time.Date(2024, 6, d, hour, 0, 0, 0, time.UTC)
		return DayVisit{Day: transitcal.TransportDate(ts), At: ts}
	}

	// Three consecutive days, with a second ride on day 2 that must neither
	// extend nor break the streak.
	visits := []DayVisit{day(1, 10), day(2, 9), day(2, 15), day(3, 8)}
	reached, ok := DayStreakReachedAt(visits, 3)
	assert.True(t, ok)
	assert.Equal(t, visits[3].At, reached)

	// A gap resets the streak.
	visits = []DayVisit{day(1, 10), day(2, 9), day(5, 8), day(6, 8)}
	_, ok = DayStreakReachedAt(visits, 3)
	assert.False(t, ok)
	reached, ok = DayStreakReachedAt(visits, 2)
	assert.True(t, ok)
	assert.Equal(t, visits[1].At, reached)

	assert.Equal(t, 2, LongestDayStreak(visits))
}

func TestDayStreakReachedAt_NightOwlBoundary(t *testing.T) {
	// A 03:00 ride belongs to the previous transport day, so June 1 22:00 and
	// June 2 03:00 are the SAME transport day; June 2 09:00 is then day two.
	v1 := time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC)
	v2 := time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC)
	v3 := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	visits := []DayVisit{
		{Day: transitcal.TransportDate(v1), At: v1},
		{Day: transitcal.TransportDate(v2), At: v2},
		{Day: transitcal.TransportDate(v3), At: v3},
	}

	_, ok := DayStreakReachedAt(visits, 3)
	assert.False(t, ok)

	reached, ok := DayStreakReachedAt(visits, 2)
	assert.True(t, ok)
	assert.Equal(t, v3, reached)
}

func TestRollingCountReachedAt(t *testing.T) {
	times := []time.Time{at(0), at(10), at(20), at(30), at(40)}

	// GIVEN a threshold of 5 within 60 minutes
	// THEN it is reached exactly at the fifth event
	reached, ok := RollingCountReachedAt(times, time.Hour, 5)
	assert.True(t, ok)
	assert.Equal(t, at(40), reached)

	// A 25-minute window never holds 5 events.
	_, ok = RollingCountReachedAt(times, 25*time.Minute, 5)
	assert.False(t, ok)

	// But holds 3 (events at 0,10,20 with window (t-25, t]).
	reached, ok = RollingCountReachedAt(times, 25*time.Minute, 3)
	assert.True(t, ok)
	assert.Equal(t, at(20), reached)
}

func TestRollingCountReachedAt_WindowIsHalfOpen(t *testing.T) {
	// An event exactly `window` before T has fallen out of (T-window, T].
	times := []time.Time{at(0), at(60), at(61)}

	_, ok := RollingCountReachedAt(times, time.Hour, 3)
	assert.False(t, ok)

	reached, ok := RollingCountReachedAt(times, 2*time.Hour, 3)
	assert.True(t, ok)
	assert.Equal(t, at(61), reached)
}

func TestCountThresholdReachedAt(t *testing.T) {
	times := []time.Time{at(20), at(0), at(10)}

	reached, ok := CountThresholdReachedAt(times, 2)
	assert.True(t, ok)
	assert.Equal(t, at(10), reached)

	_, ok = CountThresholdReachedAt(times, 4)
	assert.False(t, ok)
}

/*
Package transitcal provides the transport-day calendar.

PURPOSE:
  Public transport does not stop at midnight. A ride at 01:30 belongs to the
  service day that started the previous morning, so every day-based aggregate
  in this system works on "transport dates": the day boundary sits at 04:00,
  not at 00:00.

KEY CONCEPTS:
  - Date: a plain civil date (no time zone, no clock) used as map key and
    streak unit
  - TransportDate: timestamp -> Date with the 04:00 boundary applied
  - Lookback: the query-surface time-window keywords (last-day, last-week,
    last-month, last-year)
  - Saturation-safe month/year relations for "same vehicle a month later"
    style queries: components are re-derived instead of naively added, so
    Jan 31 + 1 month never silently becomes Mar 2

SEE ALSO:
  - analytics: day streaks are computed over transport dates
  - achievements: date-relation rules use the WeekAfter/MonthAfter/YearAfter
    helpers
*/
package transitcal

import (
	"fmt"
	"regexp"
	"time"
)

// =============================================================================
// DATE - Civil date, the unit of all per-day aggregation
// =============================================================================

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates a timestamp to its calendar date in the timestamp's
// location, ignoring the transport-day boundary.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// TransportDate returns the transport date of a timestamp: hours 0-3 count
// towards the previous day.
func TransportDate(t time.Time) Date {
	d := DateOf(t)
	if t.Hour() < 4 {
		return d.AddDays(-1)
	}
	return d
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date { return DateOf(d.time().AddDate(0, 0, n)) }

func (d Date) Before(other Date) bool { return d.time().Before(other.time()) }
func (d Date) After(other Date) bool  { return d.time().After(other.time()) }

// DaysUntil returns the number of calendar days from d to other
// (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.time().Sub(d.time()).Hours() / 24)
}

func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// monthIndex counts months since year 0 so that cross-year month arithmetic
// stays a plain integer comparison.
func (d Date) monthIndex() int { return d.Year*12 + int(d.Month) - 1 }

// =============================================================================
// DATE RELATIONS - Saturation-safe "same day, N periods later"
// =============================================================================
// Naive AddDate arithmetic overflows short months (Jan 31 + 1 month = Mar 2
// or 3). These relations re-derive components instead: "a month later" means
// the same day-of-month in the immediately following month, which simply has
// no match when that month is too short.

// WeekAfter reports whether b is exactly 7 days after a.
func WeekAfter(a, b Date) bool { return a.DaysUntil(b) == 7 }

// MonthAfter reports whether b falls on the same day-of-month in the month
// immediately after a's month.
func MonthAfter(a, b Date) bool {
	return b.Day == a.Day && b.monthIndex() == a.monthIndex()+1
}

// YearAfter reports whether b falls on the same day and month one year
// after a.
func YearAfter(a, b Date) bool {
	return b.Day == a.Day && b.Month == a.Month && b.Year == a.Year+1
}

// =============================================================================
// LOOKBACK - Query-surface time-window keywords
// =============================================================================

type Lookback time.Duration

const (
	LookbackDay   Lookback = Lookback(24 * time.Hour)
	LookbackWeek  Lookback = Lookback(7 * 24 * time.Hour)
	LookbackMonth Lookback = Lookback(31 * 24 * time.Hour)
	LookbackYear  Lookback = Lookback(366 * 24 * time.Hour)
)

// ParseLookback maps a window keyword to its duration.
func ParseLookback(keyword string) (Lookback, error) {
	switch keyword {
	case "last-day":
		return LookbackDay, nil
	case "last-week":
		return LookbackWeek, nil
	case "last-month":
		return LookbackMonth, nil
	case "last-year":
		return LookbackYear, nil
	default:
		return 0, fmt.Errorf("unknown lookback keyword %q", keyword)
	}
}

func (l Lookback) Duration() time.Duration { return time.Duration(l) }

// Start returns the beginning of the window ending at now.
func (l Lookback) Start(now time.Time) time.Time { return now.Add(-time.Duration(l)) }

// =============================================================================
// TIMESTAMP PARSING
// =============================================================================

// TimestampInputFormat documents the accepted explicit-timestamp syntax.
const TimestampInputFormat = "YYYY-MM-DD hh:mm[:ss]"

var timestampRe = regexp.MustCompile(
	`^(\d{4})-(\d{2})-(\d{2})[ T](\d{2}):(\d{2})(?::(\d{2}))?$`,
)

// ParseTimestamp parses an explicit ride timestamp. With utc set the input is
// interpreted as UTC, otherwise as local time; the result is always returned
// in local time.
func ParseTimestamp(s string, utc bool) (time.Time, error) {
	m := timestampRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %s", s, TimestampInputFormat)
	}

	layout := "2006-01-02 15:04:05"
	normalized := fmt.Sprintf("%s-%s-%s %s:%s:%s", m[1], m[2], m[3], m[4], m[5], orZero(m[6]))

	loc := time.Local
	if utc {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, normalized, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.Local(), nil
}

func orZero(s string) string {
	if s == "" {
		return "00"
	}
	return s
}

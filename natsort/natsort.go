/*
Package natsort provides natural (alphanumeric) string comparison.

PURPOSE:
  Vehicle numbers and line names are free-form strings that frequently embed
  numbers ("4012", "W613", "U6"). Sorting them byte-wise puts "12" before "3",
  which is never what a human wants. This package compares strings the way a
  human reads them: digit runs by numeric value, everything else by code point.

KEY PROPERTIES:
  - "3" < "12" (numeric runs compared by magnitude, not lexically)
  - "007" < "7" (numerically equal runs tie-break on the raw digit text,
    keeping the ordering total for non-canonical zero padding)
  - "abc3def" < "abc12def" (mixed runs alternate digit / non-digit)
  - Total order: reflexive, antisymmetric, transitive. Safe as a sort key
    and as a tree ordering function.

USAGE:
  sort.Slice(nums, func(i, j int) bool { return natsort.Less(nums[i], nums[j]) })

SEE ALSO:
  - ledger: vehicle numbers sorted for display and range reporting
  - analytics: stable ordering of report rows
*/
package natsort

import "sort"

// =============================================================================
// COMPARISON
// =============================================================================

// Compare returns -1, 0 or +1 ordering a relative to b.
//
// The strings are scanned in lock-step, alternately consuming maximal runs of
// ASCII digits and maximal runs of non-digits. Digit runs compare numerically
// first (leading zeros carry no magnitude), then by their raw text; non-digit
// runs compare by code point. If all runs compare equal, the shorter string
// sorts first.
func Compare(a, b string) int {
	ar := []rune(a)
	br := []rune(b)

	ai, bi := 0, 0
	for ai < len(ar) && bi < len(br) {
		aDigits := runPrefix(ar[ai:], isDigit)
		bDigits := runPrefix(br[bi:], isDigit)

		// One side has digits, the other does not: the empty digit run
		// sorts first, so the side starting with a non-digit orders before
		// the side starting with a digit.
		if (len(aDigits) == 0) != (len(bDigits) == 0) {
			return compareRunes(aDigits, bDigits)
		}

		if len(aDigits) > 0 {
			if c := compareDigitRuns(aDigits, bDigits); c != 0 {
				return c
			}
			ai += len(aDigits)
			bi += len(bDigits)
		}

		aWord := runPrefix(ar[ai:], isNonDigit)
		bWord := runPrefix(br[bi:], isNonDigit)
		if c := compareRunes(aWord, bWord); c != 0 {
			return c
		}
		ai += len(aWord)
		bi += len(bWord)
	}

	// All runs equal so far; the shorter string sorts first.
	switch {
	case len(ar) < len(br):
		return -1
	case len(ar) > len(br):
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts before b in natural order.
func Less(a, b string) bool { return Compare(a, b) < 0 }

// Sort sorts ss in place in natural order.
func Sort(ss []string) {
	sort.Slice(ss, func(i, j int) bool { return Less(ss[i], ss[j]) })
}

// =============================================================================
// INTERNALS
// =============================================================================

func isDigit(r rune) bool    { return r >= '0' && r <= '9' }
func isNonDigit(r rune) bool { return !isDigit(r) }

// runPrefix returns the maximal prefix of rs for which pred holds.
func runPrefix(rs []rune, pred func(rune) bool) []rune {
	for i, r := range rs {
		if !pred(r) {
			return rs[:i]
		}
	}
	return rs
}

// compareDigitRuns compares two all-digit runs numerically, tie-breaking
// numerically equal runs on their raw text so that "007" sorts before "7".
func compareDigitRuns(a, b []rune) int {
	// Strip leading zeros; after that the longer run is the larger number.
	ta := a
	for len(ta) > 0 && ta[0] == '0' {
		ta = ta[1:]
	}
	tb := b
	for len(tb) > 0 && tb[0] == '0' {
		tb = tb[1:]
	}

	switch {
	case len(ta) < len(tb):
		return -1
	case len(ta) > len(tb):
		return 1
	}

	// Same magnitude: compare digit by digit over the original runs.
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}

	// Numerically equal; the run with fewer leading zeros sorts last.
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareRunes(a, b []rune) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

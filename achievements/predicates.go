/*
predicates.go - Number-shape predicates for achievement rules

These operate on vehicle and line identifiers. Most rules look at the sole
digit block of the identifier ("W613" -> 613), a few at the raw string.
*/
package achievements

import (
	"strings"

	"github.com/warp/ride-ledger/analytics"
)

// digitBlock returns the digits of the identifier's sole digit block, or ""
// if there is no sole block.
func digitBlock(s string) string {
	start, end := -1, -1
	runs := 0
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start == -1 || end != i {
				runs++
				if runs > 1 {
					return ""
				}
				start = i
			}
			end = i + 1
		}
	}
	if runs != 1 {
		return ""
	}
	return s[start:end]
}

func isPalindrome(s string) bool {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		if s[i] != s[j] {
			return false
		}
	}
	return true
}

func isRepdigit(s string) bool {
	if s == "" {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	for d := int64(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func hasAscendingDigits(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return false
		}
	}
	return true
}

func hasDescendingDigits(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] >= s[i-1] {
			return false
		}
	}
	return true
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// =============================================================================
// VEHICLE-LEVEL PREDICATES
// =============================================================================

// vehicleContains matches vehicles whose digit block contains the substring.
func vehicleContains(sub string) func(vehicle, line string) bool {
	return func(vehicle, _ string) bool {
		return strings.Contains(digitBlock(vehicle), sub)
	}
}

// vehiclePalindrome matches digit blocks that read the same both ways, are
// longer than two digits, and are not all the same digit (a repdigit reads
// the same both ways trivially and has its own achievement).
func vehiclePalindrome(vehicle, _ string) bool {
	block := digitBlock(vehicle)
	return len(block) > 2 && isPalindrome(block) && !isRepdigit(block)
}

func vehicleRepdigit(vehicle, _ string) bool {
	block := digitBlock(vehicle)
	return len(block) >= 3 && isRepdigit(block)
}

func vehiclePrime(vehicle, _ string) bool {
	n, ok := analytics.SoleDigitBlock(vehicle)
	return ok && isPrime(n)
}

func vehicleAscending(vehicle, _ string) bool {
	return hasAscendingDigits(digitBlock(vehicle))
}

func vehicleDescending(vehicle, _ string) bool {
	return hasDescendingDigits(digitBlock(vehicle))
}

func vehicleDivisibleByLine(vehicle, line string) bool {
	v, ok := analytics.SoleDigitBlock(vehicle)
	if !ok {
		return false
	}
	l, ok := analytics.SoleDigitBlock(line)
	return ok && l != 0 && v%l == 0
}

func vehicleMirrorsLine(vehicle, line string) bool {
	vb, lb := digitBlock(vehicle), digitBlock(line)
	if vb == "" || lb == "" {
		return false
	}
	// Compare numerically so leading zeros don't spoil the mirror.
	v, _ := analytics.SoleDigitBlock(vehicle)
	l, _ := analytics.SoleDigitBlock(reverseString(lb))
	return v == l && v != 0
}

func vehicleEqualsLine(vehicle, line string) bool {
	v, okV := analytics.SoleDigitBlock(vehicle)
	l, okL := analytics.SoleDigitBlock(line)
	return okV && okL && v == l
}

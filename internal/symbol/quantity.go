package symbol

import (
	"regexp"
	"strconv"
)

var (
	leadingQuantity  = regexp.MustCompile(`^(\d+)(\D.*)$`)
	trailingQuantity = regexp.MustCompile(`^(.*\D)(\d+)$`)
)

// quantityRule decides whether a numeric prefix or suffix is a multiplier.
type quantityRule func(n int) bool

// Bybit lists multiplied contracts from 10 upward ("10000LADYS", "SHIB1000").
func bybitQuantity(n int) bool { return n >= 10 }

// Binance only uses round multipliers of at least 1000 ("1000SHIB").
func binanceQuantity(n int) bool { return n >= 1000 && n%10 == 0 }

// extractQuantity splits a numeric multiplier off a base code. The left side
// is tried first; the right side only when the left does not qualify.
func extractQuantity(base string, accept quantityRule) (int, string) {
	if m := leadingQuantity.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && accept(n) {
			return n, m[2]
		}
	}
	if m := trailingQuantity.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && accept(n) {
			return n, m[1]
		}
	}
	return 1, base
}

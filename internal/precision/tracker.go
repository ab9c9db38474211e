// Package precision keeps the number of fractional digits shown per symbol
// stable across refreshes: once a symbol has been seen with N decimals it
// is always rendered with at least N.
package precision

import (
	"math/big"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Tracker records the maximum observed fractional-digit count per symbol.
// The zero value is not usable; call NewTracker.
type Tracker struct {
	mu       sync.RWMutex
	decimals map[string]int32
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{decimals: make(map[string]int32)}
}

// Decimals returns the fractional digits of d as written, so "1.50" counts 2.
func Decimals(d decimal.Decimal) int32 {
	if exp := d.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}

// Track raises the symbol's precision to the digits of value if larger.
func (t *Tracker) Track(symbol string, value decimal.Decimal) {
	n := Decimals(value)

	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.decimals[symbol]; !ok || n > cur {
		t.decimals[symbol] = n
	}
}

// MaxDecimals returns the tracked precision, 0 for unseen symbols.
func (t *Tracker) MaxDecimals(symbol string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.decimals[symbol])
}

// Reset forgets the given symbols, or every symbol when none are given.
func (t *Tracker) Reset(symbols ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(symbols) == 0 {
		t.decimals = make(map[string]int32)
		return
	}
	for _, s := range symbols {
		delete(t.decimals, s)
	}
}

// Format renders value with exactly MaxDecimals(symbol) fractional digits.
// A negative value keeps its sign even when it rounds to zero.
func (t *Tracker) Format(symbol string, value decimal.Decimal, groupThousands bool) string {
	places := int32(t.MaxDecimals(symbol))
	return formatFixed(value, places, groupThousands, false)
}

// FormatSigned is Format with an explicit "+" on positive values, for deltas.
func (t *Tracker) FormatSigned(symbol string, value decimal.Decimal, groupThousands bool) string {
	places := int32(t.MaxDecimals(symbol))
	return formatFixed(value, places, groupThousands, true)
}

func formatFixed(value decimal.Decimal, places int32, group, plus bool) string {
	s := value.Abs().StringFixed(places)

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if group {
		if n, ok := new(big.Int).SetString(intPart, 10); ok {
			intPart = humanize.BigComma(n)
		}
	}

	var b strings.Builder
	switch {
	case value.IsNegative():
		b.WriteByte('-')
	case plus && value.IsPositive():
		b.WriteByte('+')
	}
	b.WriteString(intPart)
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

package query

import (
	"fmt"
	"slices"
	"strings"

	"crypto_board/internal/domain"
)

// SortKey selects the ordering applied after search.
type SortKey string

const (
	SortNone          SortKey = "" // keep search ranking
	SortChangePercent SortKey = "changePercent"
	SortPrice         SortKey = "price"
	SortVolume        SortKey = "volume"
	SortTurnover      SortKey = "turnover"
	SortSymbol        SortKey = "symbol"
	SortWarning       SortKey = "warning" // flagged first, each group by turnover desc
)

// SortOrder is ascending or descending. SortWarning ignores it.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

var sortKeys = []SortKey{SortNone, SortChangePercent, SortPrice, SortVolume, SortTurnover, SortSymbol, SortWarning}

// ParseSortKey validates a sort key name.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range sortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ParseSortOrder validates an order name; the empty string means Desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(s) {
	case "", string(Desc):
		return Desc, nil
	case string(Asc):
		return Asc, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Sort orders records in place. The sort is stable.
func Sort(records []domain.Ticker, key SortKey, order SortOrder) {
	if key == SortNone {
		return
	}
	if key == SortWarning {
		slices.SortStableFunc(records, compareWarning)
		return
	}

	cmp := comparator(key)
	if order == Asc {
		slices.SortStableFunc(records, cmp)
		return
	}
	slices.SortStableFunc(records, func(a, b domain.Ticker) int { return cmp(b, a) })
}

func comparator(key SortKey) func(a, b domain.Ticker) int {
	switch key {
	case SortChangePercent:
		return func(a, b domain.Ticker) int { return a.ChangePercent.Cmp(b.ChangePercent) }
	case SortPrice:
		return func(a, b domain.Ticker) int { return a.Price.Cmp(b.Price) }
	case SortVolume:
		return func(a, b domain.Ticker) int { return a.Volume.Cmp(b.Volume) }
	case SortTurnover:
		return func(a, b domain.Ticker) int { return a.Turnover.Cmp(b.Turnover) }
	default:
		return func(a, b domain.Ticker) int { return strings.Compare(a.DisplaySymbol, b.DisplaySymbol) }
	}
}

func compareWarning(a, b domain.Ticker) int {
	af, bf := a.Flagged(), b.Flagged()
	switch {
	case af && !bf:
		return -1
	case !af && bf:
		return 1
	}
	return b.Turnover.Cmp(a.Turnover)
}

// Query filters records by term and orders the result. The input slice is
// not modified.
func Query(records []domain.Ticker, term string, key SortKey, order SortOrder) []domain.Ticker {
	out := Search(records, term)
	Sort(out, key, order)
	return out
}

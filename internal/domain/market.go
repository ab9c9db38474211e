package domain

// Exchange identifies an upstream venue.
type Exchange string

const (
	ExchangeBithumb Exchange = "bithumb"
	ExchangeBybit   Exchange = "bybit"
	ExchangeBinance Exchange = "binance"
)

// Exchanges lists every supported venue in display order.
var Exchanges = []Exchange{ExchangeBithumb, ExchangeBybit, ExchangeBinance}

// Category is the cross-exchange market type taxonomy.
type Category string

const (
	CategorySpot    Category = "spot"
	CategoryUM      Category = "um"      // USD-margined derivatives
	CategoryCM      Category = "cm"      // coin-margined derivatives
	CategoryOptions Category = "options" // options
)

// categoryPair is one row of an exchange's category table.
type categoryPair struct {
	integrated Category
	raw        string
}

// categoryTables maps integrated categories to the raw names each exchange
// uses in its API. Order matters: it is the order returned by Categories.
var categoryTables = map[Exchange][]categoryPair{
	ExchangeBithumb: {
		{CategorySpot, "spot"},
	},
	ExchangeBybit: {
		{CategorySpot, "spot"},
		{CategoryUM, "linear"},
		{CategoryCM, "inverse"},
		{CategoryOptions, "option"},
	},
	ExchangeBinance: {
		{CategorySpot, "spot"},
		{CategoryUM, "usdm"},
		{CategoryCM, "coinm"},
	},
}

// RawCategory returns the exchange-specific name of an integrated category.
func RawCategory(ex Exchange, c Category) (string, bool) {
	for _, p := range categoryTables[ex] {
		if p.integrated == c {
			return p.raw, true
		}
	}
	return "", false
}

// IntegratedCategory resolves an exchange-specific category name.
func IntegratedCategory(ex Exchange, raw string) (Category, bool) {
	for _, p := range categoryTables[ex] {
		if p.raw == raw {
			return p.integrated, true
		}
	}
	return "", false
}

// Categories returns the integrated categories an exchange supports.
func Categories(ex Exchange) []Category {
	pairs := categoryTables[ex]
	out := make([]Category, len(pairs))
	for i, p := range pairs {
		out[i] = p.integrated
	}
	return out
}

// Supports reports whether the exchange lists the given category.
func Supports(ex Exchange, c Category) bool {
	_, ok := RawCategory(ex, c)
	return ok
}

// ParseExchange validates an exchange name.
func ParseExchange(s string) (Exchange, error) {
	for _, ex := range Exchanges {
		if string(ex) == s {
			return ex, nil
		}
	}
	return "", ErrUnknownExchange
}

// SlotKey is the persistent store key of one (exchange, category) slot.
func SlotKey(ex Exchange, c Category) string {
	return string(ex) + "-" + string(c)
}

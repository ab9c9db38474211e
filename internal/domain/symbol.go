package domain

import "strconv"

// CanonicalSymbol is the exchange-independent identity of an instrument.
type CanonicalSymbol struct {
	RawSymbol      string `json:"raw_symbol"`
	DisplaySymbol  string `json:"display_symbol"`
	BaseCode       string `json:"base_code"`
	QuoteCode      string `json:"quote_code"`
	Quantity       int    `json:"quantity"` // contract multiplier, 1 unless a numeric prefix/suffix qualified
	SettlementCode string `json:"settlement_code"`
	RestOfSymbol   string `json:"rest_of_symbol,omitempty"`
}

// Display renders the human form of the symbol, e.g. "1000SHIB/USDT" or
// "BTC/USD-27DEC24". A symbol without a quote code renders as its base.
func (s CanonicalSymbol) Display() string {
	base := s.BaseCode
	if s.Quantity > 1 {
		base = strconv.Itoa(s.Quantity) + base
	}
	if s.QuoteCode == "" {
		return base
	}
	out := base + "/" + s.QuoteCode
	if s.RestOfSymbol != "" {
		out += "-" + s.RestOfSymbol
	}
	return out
}

// IsFallback reports whether normalization could not split the symbol.
func (s CanonicalSymbol) IsFallback() bool {
	return s.QuoteCode == ""
}

// Instrument is a canonical symbol plus the metadata kept in the cache.
type Instrument struct {
	CanonicalSymbol
	Remark    string   `json:"remark,omitempty"`     // localized name or non-trading status
	Warnings  []string `json:"warnings,omitempty"`   // exchange warning codes
	SearchTag string   `json:"search_tag,omitempty"` // extra searchable text
}

// Flagged reports whether the exchange attached any warning.
func (i Instrument) Flagged() bool {
	return len(i.Warnings) > 0
}

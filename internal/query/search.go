// Package query filters ticker records by a free-text term and orders them.
package query

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"crypto_board/internal/domain"
)

// Field weights.
const (
	weightSymbol     = 10.0 // raw, display, base, quote
	weightExchange   = 8.0
	weightLocalized  = 6.0 // localized name, search tag
	weightCategory   = 4.0
	weightSettlement = 3.0
	weightStatus     = 1.0 // status, warning type, market warning
)

// Match multipliers.
const (
	multExact     = 2.0
	multPrefix    = 1.5
	multSubstring = 1.0
)

// marketWarningText is the searchable text of a set MarketWarning flag.
const marketWarningText = "warning"

type field struct {
	text   string
	weight float64
}

// fold normalizes to NFC and applies Unicode case folding.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func searchFields(t *domain.Ticker) []field {
	fs := []field{
		{fold(t.RawSymbol), weightSymbol},
		{fold(t.DisplaySymbol), weightSymbol},
		{fold(t.BaseCode), weightSymbol},
		{fold(t.QuoteCode), weightSymbol},
		{fold(string(t.Exchange)), weightExchange},
		{fold(t.LocalizedName), weightLocalized},
		{fold(t.SearchTag), weightLocalized},
		{fold(string(t.Category)), weightCategory},
		{fold(t.SettlementCode), weightSettlement},
		{fold(t.Status), weightStatus},
		{fold(t.WarningType), weightStatus},
	}
	if name := fold(t.LocalizedName); name != "" {
		if tl := Transliterate(name); tl != name {
			fs = append(fs, field{fold(tl), weightLocalized})
		}
	}
	if t.MarketWarning {
		fs = append(fs, field{marketWarningText, weightStatus})
	}
	return fs
}

func matchScore(text, token string) float64 {
	switch {
	case text == "" || token == "":
		return 0
	case text == token:
		return multExact
	case strings.HasPrefix(text, token):
		return multPrefix
	case strings.Contains(text, token):
		return multSubstring
	}
	return 0
}

// tokenScore is the token's best weighted match across all fields.
func tokenScore(fs []field, token string) float64 {
	best := 0.0
	for _, f := range fs {
		if s := f.weight * matchScore(f.text, token); s > best {
			best = s
		}
	}
	return best
}

// Tokenize splits a search term into folded tokens. Each token is paired
// with its keyboard transliteration when that differs.
func Tokenize(term string) [][]string {
	var out [][]string
	for _, tok := range strings.Fields(fold(term)) {
		variants := []string{tok}
		if tl := Transliterate(tok); tl != tok {
			variants = append(variants, fold(tl))
		}
		out = append(out, variants)
	}
	return out
}

// Score returns the relevance of t for the tokenized term, or 0 when any
// token matches nothing.
func Score(t *domain.Ticker, tokens [][]string) float64 {
	fs := searchFields(t)
	total := 0.0
	for _, variants := range tokens {
		best := 0.0
		for _, v := range variants {
			if s := tokenScore(fs, v); s > best {
				best = s
			}
		}
		if best == 0 {
			return 0
		}
		total += best
	}
	return total
}

// Search keeps the records matching every token of term, highest score
// first; equal scores keep input order. A blank term returns a copy of
// records unchanged.
func Search(records []domain.Ticker, term string) []domain.Ticker {
	tokens := Tokenize(term)
	if len(tokens) == 0 {
		return slices.Clone(records)
	}

	type scored struct {
		ticker domain.Ticker
		score  float64
	}
	var hits []scored
	for i := range records {
		if s := Score(&records[i], tokens); s > 0 {
			hits = append(hits, scored{records[i], s})
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	out := make([]domain.Ticker, len(hits))
	for i, h := range hits {
		out[i] = h.ticker
	}
	return out
}

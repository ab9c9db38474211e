// Package symbol turns exchange-specific instrument descriptions into
// canonical symbols. Normalization never fails: input that does not match
// an exchange's pattern degrades to a record whose base code is the raw
// symbol and whose quote code is empty.
package symbol

import (
	"strings"

	"crypto_board/internal/domain"
)

// Normalize maps a raw instrument of the given exchange to its canonical form.
func Normalize(ex domain.Exchange, raw Raw) domain.CanonicalSymbol {
	if raw == nil {
		return fallback("")
	}
	switch ex {
	case domain.ExchangeBithumb:
		if m, ok := raw.(BithumbMarket); ok {
			return NormalizeBithumb(m)
		}
	case domain.ExchangeBybit:
		if i, ok := raw.(BybitInstrument); ok {
			return NormalizeBybit(i)
		}
	case domain.ExchangeBinance:
		if i, ok := raw.(BinanceInstrument); ok {
			return NormalizeBinance(i)
		}
	}
	return fallback(raw.RawSymbol())
}

// ToInstrument normalizes and attaches the cache metadata of a raw instrument.
func ToInstrument(ex domain.Exchange, raw Raw) domain.Instrument {
	inst := domain.Instrument{CanonicalSymbol: Normalize(ex, raw)}
	switch r := raw.(type) {
	case BithumbMarket:
		inst.Remark = r.KoreanName
		inst.SearchTag = r.EnglishName
		inst.Warnings = bithumbWarnings(r)
	case BybitInstrument:
		if r.Status != "" && r.Status != "Trading" {
			inst.Remark = r.Status
		}
		inst.SearchTag = r.OptionsType
	case BinanceInstrument:
		if s := r.TradingStatus(); s != "" && s != "TRADING" {
			inst.Remark = s
		}
		if r.ContractType != "PERPETUAL" {
			inst.SearchTag = r.ContractType
		}
	}
	return inst
}

// NormalizeBithumb maps a "{quote}-{base}" market code. Bithumb is spot-only,
// so the quantity is always 1 and settlement is the quote currency.
func NormalizeBithumb(m BithumbMarket) domain.CanonicalSymbol {
	quote, base, ok := strings.Cut(m.Market, "-")
	if !ok || quote == "" || base == "" || strings.Contains(base, "-") {
		return fallback(m.Market)
	}
	return build(domain.CanonicalSymbol{
		RawSymbol:      m.Market,
		BaseCode:       base,
		QuoteCode:      quote,
		Quantity:       1,
		SettlementCode: quote,
	})
}

// NormalizeBybit maps a v5 instrument of any category.
func NormalizeBybit(i BybitInstrument) domain.CanonicalSymbol {
	if i.BaseCoin == "" || i.QuoteCoin == "" {
		return fallback(i.Symbol)
	}
	qty, base := extractQuantity(i.BaseCoin, bybitQuantity)

	settle := i.SettleCoin
	if settle == "" {
		settle = i.QuoteCoin
	}
	if isBybitOption(i) && i.QuoteCoin == "USD" {
		settle = base
	}

	rest := i.Symbol
	if i.QuoteCoin == "USDC" {
		rest = strings.TrimSuffix(rest, i.BaseCoin+"PERP")
	}

	return build(domain.CanonicalSymbol{
		RawSymbol:      i.Symbol,
		BaseCode:       base,
		QuoteCode:      i.QuoteCoin,
		Quantity:       qty,
		SettlementCode: settle,
		RestOfSymbol:   restOf(rest, i.BaseCoin, i.QuoteCoin),
	})
}

func isBybitOption(i BybitInstrument) bool {
	return i.Category == domain.CategoryOptions || i.OptionsType != ""
}

// NormalizeBinance maps an exchangeInfo symbol of spot, USD-M or COIN-M.
func NormalizeBinance(i BinanceInstrument) domain.CanonicalSymbol {
	if i.BaseAsset == "" || i.QuoteAsset == "" {
		return fallback(i.Symbol)
	}
	qty, base := extractQuantity(i.BaseAsset, binanceQuantity)

	settle := i.MarginAsset
	if settle == "" {
		settle = i.QuoteAsset
	}

	return build(domain.CanonicalSymbol{
		RawSymbol:      i.Symbol,
		BaseCode:       base,
		QuoteCode:      i.QuoteAsset,
		Quantity:       qty,
		SettlementCode: settle,
		RestOfSymbol:   restOf(i.Symbol, i.BaseAsset, i.QuoteAsset),
	})
}

// restOf strips the raw base and quote codes from a symbol and trims the
// separators left behind, e.g. "BTCUSD_PERP" -> "PERP".
func restOf(symbol, base, quote string) string {
	rest := strings.Replace(symbol, base, "", 1)
	if quote != "" {
		rest = strings.Replace(rest, quote, "", 1)
	}
	return strings.Trim(rest, "-_")
}

func fallback(raw string) domain.CanonicalSymbol {
	return build(domain.CanonicalSymbol{
		RawSymbol: raw,
		BaseCode:  raw,
		Quantity:  1,
	})
}

func build(s domain.CanonicalSymbol) domain.CanonicalSymbol {
	s.DisplaySymbol = s.Display()
	return s
}

func bithumbWarnings(m BithumbMarket) []string {
	var out []string
	if m.MarketWarning != "" && m.MarketWarning != "NONE" {
		out = append(out, m.MarketWarning)
	}
	for _, w := range m.WarningTypes {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

package domain

import "github.com/shopspring/decimal"

// Ticker represents one instrument's 24h snapshot on a single exchange.
type Ticker struct {
	CanonicalSymbol

	Exchange      Exchange `json:"exchange"`
	Category      Category `json:"category"`
	LocalizedName string   `json:"localized_name,omitempty"`
	SearchTag     string   `json:"search_tag,omitempty"` // English name, option or contract type
	Status        string   `json:"status,omitempty"`

	Price         decimal.Decimal `json:"price"`
	PrevPrice     decimal.Decimal `json:"prev_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"` // 24h change (%)
	Volume        decimal.Decimal `json:"volume"`         // base units
	Turnover      decimal.Decimal `json:"turnover"`       // quote units
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`

	Extension Extension `json:"-"`

	// Warning metadata
	WarningType   string `json:"warning_type,omitempty"`
	MarketWarning bool   `json:"market_warning,omitempty"`
}

// Flagged reports whether the ticker carries any exchange warning.
func (t *Ticker) Flagged() bool {
	return t.MarketWarning || t.WarningType != ""
}

// ChangeDirection returns "positive", "negative", or "neutral"
func (t *Ticker) ChangeDirection() string {
	if t.ChangePercent.IsPositive() {
		return "positive"
	}
	if t.ChangePercent.IsNegative() {
		return "negative"
	}
	return "neutral"
}

// Extension is the exchange-specific part of a ticker. It is sealed: only
// the three variants below implement it.
type Extension interface {
	exchange() Exchange
}

// BithumbExtension carries Bithumb-only ticker fields.
type BithumbExtension struct {
	OpeningPrice       decimal.Decimal
	AccTradeVolume     decimal.Decimal // since 00:00 KST
	AccTradePrice      decimal.Decimal
	Highest52WeekPrice decimal.Decimal
	Lowest52WeekPrice  decimal.Decimal
}

// BybitExtension carries Bybit-only ticker fields.
type BybitExtension struct {
	MarkPrice       decimal.Decimal
	IndexPrice      decimal.Decimal
	FundingRate     decimal.Decimal
	OpenInterest    decimal.Decimal
	NextFundingTime int64 // unix ms, 0 for spot/options
	Delta           decimal.Decimal
}

// BinanceExtension carries Binance-only ticker fields.
type BinanceExtension struct {
	WeightedAvgPrice decimal.Decimal
	OpenPrice        decimal.Decimal
	LastQty          decimal.Decimal
	TradeCount       int64
}

func (BithumbExtension) exchange() Exchange { return ExchangeBithumb }
func (BybitExtension) exchange() Exchange   { return ExchangeBybit }
func (BinanceExtension) exchange() Exchange { return ExchangeBinance }

// MatchExtension dispatches on the variant. Every caller supplies a handler
// for each exchange; a nil extension yields the zero value of T.
func MatchExtension[T any](
	ext Extension,
	onBithumb func(BithumbExtension) T,
	onBybit func(BybitExtension) T,
	onBinance func(BinanceExtension) T,
) T {
	switch v := ext.(type) {
	case BithumbExtension:
		return onBithumb(v)
	case BybitExtension:
		return onBybit(v)
	case BinanceExtension:
		return onBinance(v)
	default:
		var zero T
		return zero
	}
}

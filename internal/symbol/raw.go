package symbol

import "crypto_board/internal/domain"

// Raw is an exchange-specific instrument as returned by the upstream API.
type Raw interface {
	RawSymbol() string
}

// BithumbMarket is one entry of Bithumb's /v1/market/all.
type BithumbMarket struct {
	Market        string   `json:"market"` // "KRW-BTC"
	KoreanName    string   `json:"korean_name"`
	EnglishName   string   `json:"english_name"`
	MarketWarning string   `json:"market_warning"` // "NONE", "CAUTION"
	WarningTypes  []string `json:"-"`              // merged from /v1/market/virtual_asset_warning
}

func (m BithumbMarket) RawSymbol() string { return m.Market }

// BybitInstrument is one entry of Bybit's /v5/market/instruments-info.
type BybitInstrument struct {
	Symbol       string `json:"symbol"`
	BaseCoin     string `json:"baseCoin"`
	QuoteCoin    string `json:"quoteCoin"`
	SettleCoin   string `json:"settleCoin"`
	ContractType string `json:"contractType"` // LinearPerpetual, InverseFutures, ...
	OptionsType  string `json:"optionsType"`  // Call, Put
	Status       string `json:"status"`

	Category domain.Category `json:"-"`
}

func (i BybitInstrument) RawSymbol() string { return i.Symbol }

// BinanceInstrument is one entry of a Binance exchangeInfo symbol list.
type BinanceInstrument struct {
	Symbol         string `json:"symbol"`
	Pair           string `json:"pair"`
	BaseAsset      string `json:"baseAsset"`
	QuoteAsset     string `json:"quoteAsset"`
	MarginAsset    string `json:"marginAsset"`
	ContractType   string `json:"contractType"`
	Status         string `json:"status"`
	ContractStatus string `json:"contractStatus"` // coin-margined uses this instead of status

	Category domain.Category `json:"-"`
}

func (i BinanceInstrument) RawSymbol() string { return i.Symbol }

// TradingStatus returns whichever status field the endpoint filled.
func (i BinanceInstrument) TradingStatus() string {
	if i.Status != "" {
		return i.Status
	}
	return i.ContractStatus
}

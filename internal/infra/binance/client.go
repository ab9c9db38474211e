// Package binance fetches spot, USD-M and COIN-M instruments and 24h
// tickers from Binance's public REST APIs. Each category lives on its own
// host and path prefix.
package binance

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
	"crypto_board/internal/symbol"
)

// Default hosts.
const (
	SpotURL     = "https://api.binance.com"
	FuturesURL  = "https://fapi.binance.com"
	DeliveryURL = "https://dapi.binance.com"
)

// Endpoints holds the host of each category. Empty fields use the defaults.
type Endpoints struct {
	Spot     string
	Futures  string
	Delivery string
}

type route struct {
	host   string
	prefix string
}

type exchangeInfo struct {
	Symbols []symbol.BinanceInstrument `json:"symbols"`
}

type tickerEntry struct {
	Symbol             string          `json:"symbol"`
	PriceChange        decimal.Decimal `json:"priceChange"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"` // already in percent
	WeightedAvgPrice   decimal.Decimal `json:"weightedAvgPrice"`
	PrevClosePrice     decimal.Decimal `json:"prevClosePrice"`
	LastPrice          decimal.Decimal `json:"lastPrice"`
	LastQty            decimal.Decimal `json:"lastQty"`
	OpenPrice          decimal.Decimal `json:"openPrice"`
	HighPrice          decimal.Decimal `json:"highPrice"`
	LowPrice           decimal.Decimal `json:"lowPrice"`
	Volume             decimal.Decimal `json:"volume"`      // COIN-M: contracts
	QuoteVolume        decimal.Decimal `json:"quoteVolume"` // absent on COIN-M
	BaseVolume         decimal.Decimal `json:"baseVolume"`  // COIN-M only
	Count              int64           `json:"count"`
}

// Client implements domain.ExchangeClient for Binance.
type Client struct {
	routes map[domain.Category]route
	rest   *infra.RESTClient
	logger *slog.Logger
}

// NewClient creates a Binance client.
func NewClient(ep Endpoints, rest *infra.RESTClient, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		routes: map[domain.Category]route{
			domain.CategorySpot: {host: hostOr(ep.Spot, SpotURL), prefix: "/api/v3"},
			domain.CategoryUM:   {host: hostOr(ep.Futures, FuturesURL), prefix: "/fapi/v1"},
			domain.CategoryCM:   {host: hostOr(ep.Delivery, DeliveryURL), prefix: "/dapi/v1"},
		},
		rest:   rest,
		logger: logger.With(slog.String("module", "binance")),
	}
}

func hostOr(host, def string) string {
	if host == "" {
		host = def
	}
	return strings.TrimRight(host, "/")
}

// Exchange implements domain.ExchangeClient.
func (c *Client) Exchange() domain.Exchange { return domain.ExchangeBinance }

func (c *Client) route(cat domain.Category, op string) (route, error) {
	r, ok := c.routes[cat]
	if !ok || !domain.Supports(domain.ExchangeBinance, cat) {
		return route{}, &domain.FetchError{Exchange: domain.ExchangeBinance, Category: cat, Op: op, Err: domain.ErrUnsupportedCategory}
	}
	return r, nil
}

// FetchInstruments implements domain.InstrumentSource.
func (c *Client) FetchInstruments(ctx context.Context, cat domain.Category) ([]domain.Instrument, error) {
	r, err := c.route(cat, "instruments")
	if err != nil {
		return nil, err
	}

	var info exchangeInfo
	if err := c.rest.GetJSON(ctx, "exchange_info", r.host+r.prefix+"/exchangeInfo", &info); err != nil {
		return nil, wrap(cat, "instruments", err)
	}

	out := make([]domain.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		s.Category = cat
		inst := symbol.ToInstrument(domain.ExchangeBinance, s)
		if inst.IsFallback() {
			c.logger.Debug("Unparsed symbol", slog.Any("error", &domain.ParseError{Exchange: domain.ExchangeBinance, RawSymbol: s.Symbol}))
		}
		out = append(out, inst)
	}
	return out, nil
}

// FetchTickers implements domain.TickerSource.
func (c *Client) FetchTickers(ctx context.Context, cat domain.Category) (map[string]domain.Ticker, error) {
	r, err := c.route(cat, "tickers")
	if err != nil {
		return nil, err
	}

	var entries []tickerEntry
	if err := c.rest.GetJSON(ctx, "ticker_24hr", r.host+r.prefix+"/ticker/24hr", &entries); err != nil {
		return nil, wrap(cat, "tickers", err)
	}

	out := make(map[string]domain.Ticker, len(entries))
	for _, e := range entries {
		out[e.Symbol] = toTicker(e, cat)
	}
	return out, nil
}

func toTicker(e tickerEntry, cat domain.Category) domain.Ticker {
	volume, turnover := e.Volume, e.QuoteVolume
	if cat == domain.CategoryCM {
		// COIN-M volume counts contracts; report base units and value them
		// at the weighted average price.
		volume = e.BaseVolume
		turnover = e.BaseVolume.Mul(e.WeightedAvgPrice)
	}

	return domain.Ticker{
		CanonicalSymbol: domain.CanonicalSymbol{RawSymbol: e.Symbol, DisplaySymbol: e.Symbol, BaseCode: e.Symbol, Quantity: 1},
		Exchange:        domain.ExchangeBinance,
		Category:        cat,
		Price:           e.LastPrice,
		PrevPrice:       e.PrevClosePrice,
		Change:          e.PriceChange,
		ChangePercent:   e.PriceChangePercent,
		Volume:          volume,
		Turnover:        turnover,
		High:            e.HighPrice,
		Low:             e.LowPrice,
		Extension: domain.BinanceExtension{
			WeightedAvgPrice: e.WeightedAvgPrice,
			OpenPrice:        e.OpenPrice,
			LastQty:          e.LastQty,
			TradeCount:       e.Count,
		},
	}
}

func wrap(cat domain.Category, op string, err error) error {
	return &domain.FetchError{
		Exchange:  domain.ExchangeBinance,
		Category:  cat,
		Op:        op,
		Err:       err,
		Retriable: domain.IsRetriable(err),
	}
}

// Package bithumb fetches Bithumb's KRW/BTC/USDT spot markets and their
// 24h tickers over the public v1 REST API.
package bithumb

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
	"crypto_board/internal/symbol"
)

// BaseURL is the public API host.
const BaseURL = "https://api.bithumb.com"

// tickerBatch bounds how many markets go into one /v1/ticker query.
const tickerBatch = 100

var hundred = decimal.NewFromInt(100)

type warningEntry struct {
	Market      string `json:"market"`
	WarningType string `json:"warning_type"`
	EndDate     string `json:"end_date"`
}

type tickerEntry struct {
	Market             string          `json:"market"`
	TradePrice         decimal.Decimal `json:"trade_price"`
	PrevClosingPrice   decimal.Decimal `json:"prev_closing_price"`
	OpeningPrice       decimal.Decimal `json:"opening_price"`
	HighPrice          decimal.Decimal `json:"high_price"`
	LowPrice           decimal.Decimal `json:"low_price"`
	SignedChangePrice  decimal.Decimal `json:"signed_change_price"`
	SignedChangeRate   decimal.Decimal `json:"signed_change_rate"` // fraction, 0.0123 = 1.23%
	AccTradeVolume     decimal.Decimal `json:"acc_trade_volume"`
	AccTradePrice      decimal.Decimal `json:"acc_trade_price"`
	AccTradeVolume24h  decimal.Decimal `json:"acc_trade_volume_24h"`
	AccTradePrice24h   decimal.Decimal `json:"acc_trade_price_24h"`
	Highest52WeekPrice decimal.Decimal `json:"highest_52_week_price"`
	Lowest52WeekPrice  decimal.Decimal `json:"lowest_52_week_price"`
}

// Client implements domain.ExchangeClient for Bithumb.
type Client struct {
	baseURL string
	rest    *infra.RESTClient
	logger  *slog.Logger
}

// NewClient creates a Bithumb client. An empty baseURL means BaseURL.
func NewClient(baseURL string, rest *infra.RESTClient, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    rest,
		logger:  logger.With(slog.String("module", "bithumb")),
	}
}

// Exchange implements domain.ExchangeClient.
func (c *Client) Exchange() domain.Exchange { return domain.ExchangeBithumb }

func (c *Client) markets(ctx context.Context) ([]symbol.BithumbMarket, error) {
	var markets []symbol.BithumbMarket
	if err := c.rest.GetJSON(ctx, "market_all", c.baseURL+"/v1/market/all?isDetails=true", &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// warnings returns the active warning types per market. The endpoint is
// optional: a failure only drops the extra warning detail.
func (c *Client) warnings(ctx context.Context) map[string][]string {
	var entries []warningEntry
	if err := c.rest.GetJSON(ctx, "virtual_asset_warning", c.baseURL+"/v1/market/virtual_asset_warning", &entries); err != nil {
		c.logger.Warn("Warning list unavailable", slog.Any("error", err))
		return nil
	}
	out := make(map[string][]string)
	for _, e := range entries {
		if e.WarningType != "" {
			out[e.Market] = append(out[e.Market], e.WarningType)
		}
	}
	return out
}

// FetchInstruments implements domain.InstrumentSource.
func (c *Client) FetchInstruments(ctx context.Context, cat domain.Category) ([]domain.Instrument, error) {
	if !domain.Supports(domain.ExchangeBithumb, cat) {
		return nil, &domain.FetchError{Exchange: domain.ExchangeBithumb, Category: cat, Op: "instruments", Err: domain.ErrUnsupportedCategory}
	}

	markets, err := c.markets(ctx)
	if err != nil {
		return nil, wrap(cat, "instruments", err)
	}
	warnings := c.warnings(ctx)

	out := make([]domain.Instrument, 0, len(markets))
	for _, m := range markets {
		m.WarningTypes = warnings[m.Market]
		inst := symbol.ToInstrument(domain.ExchangeBithumb, m)
		if inst.IsFallback() {
			c.logger.Debug("Unparsed market", slog.Any("error", &domain.ParseError{Exchange: domain.ExchangeBithumb, RawSymbol: m.Market}))
		}
		out = append(out, inst)
	}
	return out, nil
}

// FetchTickers implements domain.TickerSource.
func (c *Client) FetchTickers(ctx context.Context, cat domain.Category) (map[string]domain.Ticker, error) {
	if !domain.Supports(domain.ExchangeBithumb, cat) {
		return nil, &domain.FetchError{Exchange: domain.ExchangeBithumb, Category: cat, Op: "tickers", Err: domain.ErrUnsupportedCategory}
	}

	markets, err := c.markets(ctx)
	if err != nil {
		return nil, wrap(cat, "tickers", err)
	}

	names := make([]string, len(markets))
	for i, m := range markets {
		names[i] = m.Market
	}

	out := make(map[string]domain.Ticker, len(names))
	for start := 0; start < len(names); start += tickerBatch {
		end := min(start+tickerBatch, len(names))

		var entries []tickerEntry
		u := c.baseURL + "/v1/ticker?markets=" + url.QueryEscape(strings.Join(names[start:end], ","))
		if err := c.rest.GetJSON(ctx, "ticker", u, &entries); err != nil {
			return nil, wrap(cat, "tickers", err)
		}
		for _, e := range entries {
			out[e.Market] = toTicker(e)
		}
	}
	return out, nil
}

func toTicker(e tickerEntry) domain.Ticker {
	return domain.Ticker{
		CanonicalSymbol: symbol.NormalizeBithumb(symbol.BithumbMarket{Market: e.Market}),
		Exchange:        domain.ExchangeBithumb,
		Category:        domain.CategorySpot,
		Price:           e.TradePrice,
		PrevPrice:       e.PrevClosingPrice,
		Change:          e.SignedChangePrice,
		ChangePercent:   e.SignedChangeRate.Mul(hundred),
		Volume:          e.AccTradeVolume24h,
		Turnover:        e.AccTradePrice24h,
		High:            e.HighPrice,
		Low:             e.LowPrice,
		Extension: domain.BithumbExtension{
			OpeningPrice:       e.OpeningPrice,
			AccTradeVolume:     e.AccTradeVolume,
			AccTradePrice:      e.AccTradePrice,
			Highest52WeekPrice: e.Highest52WeekPrice,
			Lowest52WeekPrice:  e.Lowest52WeekPrice,
		},
	}
}

func wrap(cat domain.Category, op string, err error) error {
	return &domain.FetchError{
		Exchange:  domain.ExchangeBithumb,
		Category:  cat,
		Op:        op,
		Err:       err,
		Retriable: domain.IsRetriable(err),
	}
}

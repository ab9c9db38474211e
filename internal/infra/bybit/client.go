// Package bybit fetches instruments and 24h tickers from Bybit's v5
// market REST API for spot, linear, inverse and option categories.
package bybit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
	"crypto_board/internal/symbol"
)

// BaseURL is the public API host.
const BaseURL = "https://api.bybit.com"

const (
	pageLimit = 1000
	maxPages  = 50
)

// DefaultOptionBaseCoins are the underlyings queried for option instruments
// and tickers; the v5 API answers one base coin per request.
var DefaultOptionBaseCoins = []string{"BTC", "ETH", "SOL"}

var hundred = decimal.NewFromInt(100)

// Rate-limit return codes.
var retriableCodes = map[int]bool{
	10006: true, // too many visits
	10016: true, // server error
}

// apiError is a response with a non-zero retCode.
type apiError struct {
	Code int
	Msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bybit api error: code=%d msg=%s", e.Code, e.Msg)
}

func (e *apiError) IsRetriable() bool { return retriableCodes[e.Code] }

type envelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category       string `json:"category"`
		List           []T    `json:"list"`
		NextPageCursor string `json:"nextPageCursor"`
	} `json:"result"`
}

type tickerEntry struct {
	Symbol          string          `json:"symbol"`
	LastPrice       decimal.Decimal `json:"lastPrice"`
	PrevPrice24h    decimal.Decimal `json:"prevPrice24h"`
	Price24hPcnt    decimal.Decimal `json:"price24hPcnt"` // fraction; spot, linear, inverse
	Change24h       decimal.Decimal `json:"change24h"`    // fraction; option
	HighPrice24h    decimal.Decimal `json:"highPrice24h"`
	LowPrice24h     decimal.Decimal `json:"lowPrice24h"`
	Volume24h       decimal.Decimal `json:"volume24h"`
	Turnover24h     decimal.Decimal `json:"turnover24h"`
	MarkPrice       decimal.Decimal `json:"markPrice"`
	IndexPrice      decimal.Decimal `json:"indexPrice"`
	FundingRate     decimal.Decimal `json:"fundingRate"`
	OpenInterest    decimal.Decimal `json:"openInterest"`
	NextFundingTime string          `json:"nextFundingTime"`
	Delta           decimal.Decimal `json:"delta"`
}

// Client implements domain.ExchangeClient for Bybit.
type Client struct {
	baseURL         string
	rest            *infra.RESTClient
	optionBaseCoins []string
	logger          *slog.Logger
}

// NewClient creates a Bybit client. An empty baseURL means BaseURL.
func NewClient(baseURL string, rest *infra.RESTClient, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		rest:            rest,
		optionBaseCoins: DefaultOptionBaseCoins,
		logger:          logger.With(slog.String("module", "bybit")),
	}
}

// SetOptionBaseCoins replaces the underlyings queried for options.
func (c *Client) SetOptionBaseCoins(coins []string) {
	c.optionBaseCoins = coins
}

// Exchange implements domain.ExchangeClient.
func (c *Client) Exchange() domain.Exchange { return domain.ExchangeBybit }

// queries returns the base query per request: one for most categories,
// one per underlying for options.
func (c *Client) queries(raw string, cat domain.Category) []url.Values {
	if cat != domain.CategoryOptions {
		return []url.Values{{"category": {raw}}}
	}
	out := make([]url.Values, 0, len(c.optionBaseCoins))
	for _, coin := range c.optionBaseCoins {
		out = append(out, url.Values{"category": {raw}, "baseCoin": {coin}})
	}
	return out
}

// FetchInstruments implements domain.InstrumentSource. Results are paged
// with nextPageCursor.
func (c *Client) FetchInstruments(ctx context.Context, cat domain.Category) ([]domain.Instrument, error) {
	raw, ok := domain.RawCategory(domain.ExchangeBybit, cat)
	if !ok {
		return nil, &domain.FetchError{Exchange: domain.ExchangeBybit, Category: cat, Op: "instruments", Err: domain.ErrUnsupportedCategory}
	}

	var out []domain.Instrument
	for _, q := range c.queries(raw, cat) {
		cursor := ""
		for page := 0; page < maxPages; page++ {
			q.Set("limit", strconv.Itoa(pageLimit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			var resp envelope[symbol.BybitInstrument]
			if err := c.get(ctx, cat, "instruments_info", "/v5/market/instruments-info", q, &resp); err != nil {
				return nil, wrap(cat, "instruments", err)
			}
			for _, inst := range resp.Result.List {
				inst.Category = cat
				normalized := symbol.ToInstrument(domain.ExchangeBybit, inst)
				if normalized.IsFallback() {
					c.logger.Debug("Unparsed symbol", slog.Any("error", &domain.ParseError{Exchange: domain.ExchangeBybit, RawSymbol: inst.Symbol}))
				}
				out = append(out, normalized)
			}

			cursor = resp.Result.NextPageCursor
			if cursor == "" || len(resp.Result.List) == 0 {
				break
			}
		}
	}
	return out, nil
}

// FetchTickers implements domain.TickerSource.
func (c *Client) FetchTickers(ctx context.Context, cat domain.Category) (map[string]domain.Ticker, error) {
	raw, ok := domain.RawCategory(domain.ExchangeBybit, cat)
	if !ok {
		return nil, &domain.FetchError{Exchange: domain.ExchangeBybit, Category: cat, Op: "tickers", Err: domain.ErrUnsupportedCategory}
	}

	out := make(map[string]domain.Ticker)
	for _, q := range c.queries(raw, cat) {
		var resp envelope[tickerEntry]
		if err := c.get(ctx, cat, "tickers", "/v5/market/tickers", q, &resp); err != nil {
			return nil, wrap(cat, "tickers", err)
		}
		for _, e := range resp.Result.List {
			out[e.Symbol] = toTicker(e, cat)
		}
	}
	return out, nil
}

// get decodes one response and rejects a non-zero retCode or a result
// labelled with a category other than cat.
func (c *Client) get(ctx context.Context, cat domain.Category, op, path string, q url.Values, out interface{ meta() (int, string, string) }) error {
	if err := c.rest.GetJSON(ctx, op, c.baseURL+path+"?"+q.Encode(), out); err != nil {
		return err
	}
	code, msg, raw := out.meta()
	if code != 0 {
		return &apiError{Code: code, Msg: msg}
	}
	if raw == "" {
		return nil
	}
	if got, ok := domain.IntegratedCategory(domain.ExchangeBybit, raw); !ok || got != cat {
		return fmt.Errorf("response category %q does not match %s", raw, cat)
	}
	return nil
}

func (e *envelope[T]) meta() (int, string, string) { return e.RetCode, e.RetMsg, e.Result.Category }

func toTicker(e tickerEntry, cat domain.Category) domain.Ticker {
	t := domain.Ticker{
		CanonicalSymbol: domain.CanonicalSymbol{RawSymbol: e.Symbol, DisplaySymbol: e.Symbol, BaseCode: e.Symbol, Quantity: 1},
		Exchange:        domain.ExchangeBybit,
		Category:        cat,
		Price:           e.LastPrice,
		PrevPrice:       e.PrevPrice24h,
		High:            e.HighPrice24h,
		Low:             e.LowPrice24h,
		Volume:          e.Volume24h,
		Turnover:        e.Turnover24h,
	}

	pcnt := e.Price24hPcnt
	if cat == domain.CategoryOptions {
		pcnt = e.Change24h
	}
	t.ChangePercent = pcnt.Mul(hundred)

	if !t.PrevPrice.IsZero() {
		t.Change = t.Price.Sub(t.PrevPrice)
	}

	nextFunding, _ := strconv.ParseInt(e.NextFundingTime, 10, 64)
	t.Extension = domain.BybitExtension{
		MarkPrice:       e.MarkPrice,
		IndexPrice:      e.IndexPrice,
		FundingRate:     e.FundingRate,
		OpenInterest:    e.OpenInterest,
		NextFundingTime: nextFunding,
		Delta:           e.Delta,
	}
	return t
}

func wrap(cat domain.Category, op string, err error) error {
	return &domain.FetchError{
		Exchange:  domain.ExchangeBybit,
		Category:  cat,
		Op:        op,
		Err:       err,
		Retriable: domain.IsRetriable(err),
	}
}

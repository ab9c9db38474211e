package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
)

const linearPage1 = `{"retCode":0,"retMsg":"OK","result":{"category":"linear","nextPageCursor":"page2","list":[
  {"symbol":"BTCUSDT","baseCoin":"BTC","quoteCoin":"USDT","settleCoin":"USDT","contractType":"LinearPerpetual","status":"Trading"},
  {"symbol":"1000PEPEUSDT","baseCoin":"1000PEPE","quoteCoin":"USDT","settleCoin":"USDT","contractType":"LinearPerpetual","status":"Trading"}
]}}`

const linearPage2 = `{"retCode":0,"retMsg":"OK","result":{"category":"linear","nextPageCursor":"","list":[
  {"symbol":"ETHUSDT","baseCoin":"ETH","quoteCoin":"USDT","settleCoin":"USDT","contractType":"LinearPerpetual","status":"Trading"}
]}}`

const optionPage = `{"retCode":0,"retMsg":"OK","result":{"category":"option","nextPageCursor":"","list":[
  {"symbol":"%s-27DEC24-100000-C","baseCoin":"%s","quoteCoin":"USD","settleCoin":"USDC","optionsType":"Call","status":"Trading"}
]}}`

const linearTickers = `{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
  {"symbol":"BTCUSDT","lastPrice":"95000.50","prevPrice24h":"94000.00","price24hPcnt":"0.010643","highPrice24h":"95500",
   "lowPrice24h":"93800","volume24h":"12345.678","turnover24h":"1172839506.1","markPrice":"95001.2","indexPrice":"95000.9",
   "fundingRate":"0.0001","openInterest":"52000.5","nextFundingTime":"1772366400000"}
]}}`

const optionTickers = `{"retCode":0,"retMsg":"OK","result":{"category":"option","list":[
  {"symbol":"BTC-27DEC24-100000-C","lastPrice":"1250","change24h":"-0.05","highPrice24h":"1400","lowPrice24h":"1100",
   "volume24h":"12","turnover24h":"1140000","markPrice":"1255","indexPrice":"95000","delta":"0.42"}
]}}`

func newTestClient(url string) *Client {
	retrier := infra.NewRetrier(infra.RetryConfig{Attempts: 1, Timeout: time.Second}, nil)
	return NewClient(url, infra.NewRESTClient(domain.ExchangeBybit, retrier, nil, nil), nil)
}

func TestFetchInstruments_Paginates(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if r.URL.Path != "/v5/market/instruments-info" || q.Get("category") != "linear" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if q.Get("limit") != "1000" {
			t.Errorf("limit = %q", q.Get("limit"))
		}
		if q.Get("cursor") == "page2" {
			w.Write([]byte(linearPage2))
			return
		}
		w.Write([]byte(linearPage1))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).FetchInstruments(context.Background(), domain.CategoryUM)
	if err != nil {
		t.Fatalf("FetchInstruments failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 pages, got %d requests", calls.Load())
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 instruments, got %d", len(got))
	}
	if got[0].DisplaySymbol != "BTC/USDT" {
		t.Errorf("got[0] = %q", got[0].DisplaySymbol)
	}
	if got[1].Quantity != 1000 || got[1].BaseCode != "PEPE" {
		t.Errorf("quantity not extracted: %+v", got[1].CanonicalSymbol)
	}
	if got[2].RawSymbol != "ETHUSDT" {
		t.Errorf("got[2] = %q", got[2].RawSymbol)
	}
}

func TestFetchInstruments_OptionsPerBaseCoin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("category") != "option" {
			t.Errorf("category = %q", q.Get("category"))
		}
		coin := q.Get("baseCoin")
		w.Write([]byte(fmtOption(coin)))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.SetOptionBaseCoins([]string{"BTC", "ETH"})

	got, err := c.FetchInstruments(context.Background(), domain.CategoryOptions)
	if err != nil {
		t.Fatalf("FetchInstruments failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one option per base coin, got %d", len(got))
	}
	if got[0].BaseCode != "BTC" || got[1].BaseCode != "ETH" {
		t.Errorf("unexpected bases %q %q", got[0].BaseCode, got[1].BaseCode)
	}
}

func fmtOption(coin string) string {
	return fmt.Sprintf(optionPage, coin, coin)
}

func TestFetchTickers_Linear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/tickers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(linearTickers))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).FetchTickers(context.Background(), domain.CategoryUM)
	if err != nil {
		t.Fatalf("FetchTickers failed: %v", err)
	}
	btc, ok := got["BTCUSDT"]
	if !ok {
		t.Fatal("BTCUSDT missing")
	}
	if btc.Price.String() != "95000.5" {
		t.Errorf("price = %s", btc.Price)
	}
	if btc.ChangePercent.String() != "1.0643" {
		t.Errorf("change percent = %s", btc.ChangePercent)
	}
	if btc.Change.String() != "1000.5" {
		t.Errorf("change = %s", btc.Change)
	}
	if btc.Category != domain.CategoryUM || btc.Exchange != domain.ExchangeBybit {
		t.Errorf("unexpected slot %s/%s", btc.Exchange, btc.Category)
	}

	ext, ok := btc.Extension.(domain.BybitExtension)
	if !ok {
		t.Fatalf("expected BybitExtension, got %T", btc.Extension)
	}
	if ext.FundingRate.String() != "0.0001" || ext.NextFundingTime != 1772366400000 {
		t.Errorf("unexpected extension %+v", ext)
	}
}

func TestFetchTickers_Options(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("baseCoin") != "BTC" {
			w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"option","list":[]}}`))
			return
		}
		w.Write([]byte(optionTickers))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).FetchTickers(context.Background(), domain.CategoryOptions)
	if err != nil {
		t.Fatalf("FetchTickers failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 ticker, got %d", len(got))
	}
	opt := got["BTC-27DEC24-100000-C"]
	if opt.ChangePercent.String() != "-5" {
		t.Errorf("change percent = %s", opt.ChangePercent)
	}
	if !opt.Change.IsZero() {
		t.Errorf("options carry no previous price, change = %s", opt.Change)
	}
	if ext := opt.Extension.(domain.BybitExtension); ext.Delta.String() != "0.42" {
		t.Errorf("delta = %s", ext.Delta)
	}
}

func TestRetCodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10006,"retMsg":"Too many visits!","result":{}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTickers(context.Background(), domain.CategorySpot)
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Code != 10006 {
		t.Fatalf("expected apiError 10006, got %v", err)
	}
	if !domain.IsRetriable(err) {
		t.Error("rate limit should be retriable")
	}

	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Exchange != domain.ExchangeBybit || fe.Category != domain.CategorySpot {
		t.Errorf("expected FetchError for bybit/spot, got %v", err)
	}
}

func TestRetCodeError_NotRetriable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchInstruments(context.Background(), domain.CategorySpot)
	if err == nil || domain.IsRetriable(err) {
		t.Errorf("expected non-retriable error, got %v", err)
	}
}

func TestFetchTickers_CategoryMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(linearTickers))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTickers(context.Background(), domain.CategoryCM)
	if err == nil {
		t.Fatal("expected an error for a linear result on an inverse request")
	}
	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Category != domain.CategoryCM || fe.Retriable {
		t.Errorf("expected non-retriable FetchError for bybit/cm, got %v", err)
	}
}

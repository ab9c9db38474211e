package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"crypto_board/internal/domain"
	"crypto_board/internal/precision"
	"crypto_board/internal/query"
	"crypto_board/internal/service"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPercent(t *testing.T) {
	tests := map[string]string{
		"1.0643": "+1.06",
		"-5":     "-5.00",
		"0":      "0.00",
		"0.001":  "0.00",
	}
	for in, want := range tests {
		if got := percent(dec(in)); got != want {
			t.Errorf("percent(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestAmount(t *testing.T) {
	if got := amount(dec("1172839506.6")); got != "1,172,839,507" {
		t.Errorf("amount = %q", got)
	}
	if got := amount(decimal.Zero); got != "0" {
		t.Errorf("amount(0) = %q", got)
	}
}

func TestExtra(t *testing.T) {
	tracker := precision.NewTracker()
	bithumb := &domain.Ticker{
		CanonicalSymbol: domain.CanonicalSymbol{RawSymbol: "KRW-BTC"},
		Exchange:        domain.ExchangeBithumb,
		Category:        domain.CategorySpot,
		Extension:       domain.BithumbExtension{Highest52WeekPrice: dec("150000000")},
	}
	tracker.Track(service.PrecisionKey(bithumb), dec("95000000.5"))

	tests := []struct {
		name string
		t    *domain.Ticker
		want string
	}{
		{"bithumb 52 week high", bithumb, "52w 150,000,000.0"},
		{"bybit funding", &domain.Ticker{Extension: domain.BybitExtension{FundingRate: dec("0.0001")}}, "fund 0.0100%"},
		{"bybit option delta", &domain.Ticker{Extension: domain.BybitExtension{Delta: dec("0.42")}}, "delta 0.42"},
		{"bybit spot", &domain.Ticker{Extension: domain.BybitExtension{}}, ""},
		{"binance trades", &domain.Ticker{Extension: domain.BinanceExtension{TradeCount: 1234567}}, "trades 1,234,567"},
		{"no extension", &domain.Ticker{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extra(tt.t, tracker); got != tt.want {
				t.Errorf("extra = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	market := service.NewMarketService(nil, nil, nil, nil)
	market.ProcessTickers(service.SlotUpdate{
		Exchange: domain.ExchangeBinance,
		Category: domain.CategorySpot,
		Records: []domain.Ticker{
			{
				CanonicalSymbol: domain.CanonicalSymbol{RawSymbol: "BTCUSDT", DisplaySymbol: "BTC/USDT"},
				Exchange:        domain.ExchangeBinance,
				Category:        domain.CategorySpot,
				Price:           dec("95000.10"),
				Change:          dec("-120.5"),
				ChangePercent:   dec("-0.126"),
				Turnover:        dec("2500000000.4"),
				Extension:       domain.BinanceExtension{TradeCount: 42},
			},
			{
				CanonicalSymbol: domain.CanonicalSymbol{RawSymbol: "ETHUSDT", DisplaySymbol: "ETH/USDT"},
				Exchange:        domain.ExchangeBinance,
				Category:        domain.CategorySpot,
				Price:           dec("3500"),
				Turnover:        dec("100"),
				Status:          "BREAK",
			},
		},
	})

	var buf bytes.Buffer
	render(&buf, market, view{
		Exchange: domain.ExchangeBinance,
		Category: domain.CategorySpot,
		Key:      query.SortTurnover,
		Order:    query.Desc,
		Limit:    1,
	})
	out := buf.String()

	for _, want := range []string{"1 rows", "BTC/USDT", "95,000.10", "-120.50", "-0.13", "2,500,000,000", "trades 42"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ETH/USDT") {
		t.Errorf("limit not applied:\n%s", out)
	}
}

package domain

import (
	"errors"
	"testing"
)

func TestCategoryTables_RoundTrip(t *testing.T) {
	for _, ex := range Exchanges {
		for _, c := range Categories(ex) {
			raw, ok := RawCategory(ex, c)
			if !ok {
				t.Fatalf("%s: no raw name for %s", ex, c)
			}
			back, ok := IntegratedCategory(ex, raw)
			if !ok || back != c {
				t.Errorf("%s: %s -> %s -> %s", ex, c, raw, back)
			}
		}
	}
}

func TestCategoryTables_Names(t *testing.T) {
	tests := []struct {
		ex   Exchange
		c    Category
		raw  string
		want bool
	}{
		{ExchangeBybit, CategoryUM, "linear", true},
		{ExchangeBybit, CategoryCM, "inverse", true},
		{ExchangeBybit, CategoryOptions, "option", true},
		{ExchangeBinance, CategoryUM, "usdm", true},
		{ExchangeBinance, CategoryCM, "coinm", true},
		{ExchangeBinance, CategoryOptions, "", false},
		{ExchangeBithumb, CategorySpot, "spot", true},
		{ExchangeBithumb, CategoryUM, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.ex)+"/"+string(tt.c), func(t *testing.T) {
			raw, ok := RawCategory(tt.ex, tt.c)
			if ok != tt.want || raw != tt.raw {
				t.Errorf("RawCategory = (%q, %v), want (%q, %v)", raw, ok, tt.raw, tt.want)
			}
			if Supports(tt.ex, tt.c) != tt.want {
				t.Errorf("Supports mismatch")
			}
		})
	}
}

func TestParseExchange(t *testing.T) {
	ex, err := ParseExchange("bybit")
	if err != nil || ex != ExchangeBybit {
		t.Fatalf("ParseExchange(bybit) = %v, %v", ex, err)
	}
	if _, err := ParseExchange("upbit"); !errors.Is(err, ErrUnknownExchange) {
		t.Errorf("expected ErrUnknownExchange, got %v", err)
	}
}

func TestSlotKey(t *testing.T) {
	if got := SlotKey(ExchangeBinance, CategoryCM); got != "binance-cm" {
		t.Errorf("SlotKey = %s", got)
	}
}

func TestCanonicalSymbol_Display(t *testing.T) {
	tests := []struct {
		name string
		in   CanonicalSymbol
		want string
	}{
		{"spot", CanonicalSymbol{BaseCode: "BTC", QuoteCode: "KRW", Quantity: 1}, "BTC/KRW"},
		{"quantity", CanonicalSymbol{BaseCode: "SHIB", QuoteCode: "USDT", Quantity: 1000}, "1000SHIB/USDT"},
		{"rest", CanonicalSymbol{BaseCode: "BTC", QuoteCode: "USD", Quantity: 1, RestOfSymbol: "27DEC24"}, "BTC/USD-27DEC24"},
		{"fallback", CanonicalSymbol{BaseCode: "WEIRD", Quantity: 1}, "WEIRD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

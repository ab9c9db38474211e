package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"crypto_board/internal/domain"
	"crypto_board/internal/precision"
	"crypto_board/internal/query"
	"crypto_board/internal/service"
)

var hundred = decimal.NewFromInt(100)

// view is one table request.
type view struct {
	Exchange domain.Exchange
	Category domain.Category
	Term     string
	Key      query.SortKey
	Order    query.SortOrder
	Limit    int
}

func render(w io.Writer, market *service.MarketService, v view) {
	records := market.Query(v.Exchange, v.Category, v.Term, v.Key, v.Order)
	_, updated := market.GetData(v.Exchange, v.Category)
	if v.Limit > 0 && len(records) > v.Limit {
		records = records[:v.Limit]
	}

	tracker := market.Tracker()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s %s  %d rows  %s\t\n", v.Exchange, v.Category, len(records), updated.Format(time.TimeOnly))
	fmt.Fprintln(tw, "SYMBOL\tNAME\tPRICE\tCHANGE\tCHG(pct)\tTURNOVER\tEXTRA\tFLAG\t")
	for i := range records {
		t := &records[i]
		k := service.PrecisionKey(t)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			t.DisplaySymbol,
			name(t),
			tracker.Format(k, t.Price, true),
			tracker.FormatSigned(k, t.Change, true),
			percent(t.ChangePercent),
			amount(t.Turnover),
			extra(t, tracker),
			flags(t),
		)
	}
	tw.Flush()
}

// percent renders a change percentage with two places and an explicit sign.
func percent(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Round(2).IsPositive() {
		return "+" + s
	}
	return s
}

// amount renders a whole-unit total with thousands separators.
func amount(d decimal.Decimal) string {
	return humanize.BigComma(d.Round(0).BigInt())
}

// extra is the exchange-specific column.
func extra(t *domain.Ticker, tracker *precision.Tracker) string {
	return domain.MatchExtension(t.Extension,
		func(e domain.BithumbExtension) string {
			if e.Highest52WeekPrice.IsZero() {
				return ""
			}
			return "52w " + tracker.Format(service.PrecisionKey(t), e.Highest52WeekPrice, true)
		},
		func(e domain.BybitExtension) string {
			switch {
			case !e.FundingRate.IsZero():
				return "fund " + e.FundingRate.Mul(hundred).StringFixed(4) + "%"
			case !e.Delta.IsZero():
				return "delta " + e.Delta.StringFixed(2)
			}
			return ""
		},
		func(e domain.BinanceExtension) string {
			if e.TradeCount == 0 {
				return ""
			}
			return "trades " + humanize.Comma(e.TradeCount)
		},
	)
}

func name(t *domain.Ticker) string {
	if t.LocalizedName != "" {
		return t.LocalizedName
	}
	return t.SearchTag
}

func flags(t *domain.Ticker) string {
	var parts []string
	if t.MarketWarning {
		parts = append(parts, "!")
	}
	if t.Status != "" {
		parts = append(parts, t.Status)
	}
	return strings.Join(parts, " ")
}

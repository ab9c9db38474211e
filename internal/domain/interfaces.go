package domain

import (
	"context"
)

// InstrumentSource lists the normalized instruments of one category.
type InstrumentSource interface {
	FetchInstruments(ctx context.Context, category Category) ([]Instrument, error)
}

// TickerSource returns the live 24h snapshots of one category, keyed by raw symbol.
type TickerSource interface {
	FetchTickers(ctx context.Context, category Category) (map[string]Ticker, error)
}

// ExchangeClient is the full upstream collaborator for one venue.
type ExchangeClient interface {
	InstrumentSource
	TickerSource
	Exchange() Exchange
}

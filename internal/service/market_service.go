package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"crypto_board/internal/cache"
	"crypto_board/internal/domain"
	"crypto_board/internal/precision"
	"crypto_board/internal/query"
)

// marketWarningCode is the instrument warning that sets Ticker.MarketWarning.
const marketWarningCode = "CAUTION"

// ErrPollingRunning is returned by StartPolling while a previous run is active.
var ErrPollingRunning = errors.New("ticker polling already running")

// InstrumentProvider returns the cached instrument list of a slot.
type InstrumentProvider interface {
	Instruments(ctx context.Context, ex domain.Exchange, cat domain.Category) ([]domain.Instrument, error)
}

// SlotUpdate is one merged ticker snapshot of a slot.
type SlotUpdate struct {
	Exchange domain.Exchange
	Category domain.Category
	Records  []domain.Ticker
}

// MarketService joins cached instruments with live tickers and keeps the
// latest merged records per slot.
type MarketService struct {
	instruments InstrumentProvider
	tickers     map[domain.Exchange]domain.TickerSource
	tracker     *precision.Tracker
	logger      *slog.Logger

	mu        sync.RWMutex
	records   map[string][]domain.Ticker
	updatedAt map[string]time.Time

	tickerChan chan SlotUpdate

	pollMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMarketService creates a MarketService. A nil tracker gets a fresh one.
func NewMarketService(instruments InstrumentProvider, tickers map[domain.Exchange]domain.TickerSource, tracker *precision.Tracker, logger *slog.Logger) *MarketService {
	if tracker == nil {
		tracker = precision.NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{
		instruments: instruments,
		tickers:     tickers,
		tracker:     tracker,
		logger:      logger.With(slog.String("module", "market")),
		records:     make(map[string][]domain.Ticker),
		updatedAt:   make(map[string]time.Time),
		tickerChan:  make(chan SlotUpdate, 16),
	}
}

// Tracker returns the precision tracker fed by this service.
func (s *MarketService) Tracker() *precision.Tracker {
	return s.tracker
}

// PrecisionKey identifies a record in the precision tracker.
func PrecisionKey(t *domain.Ticker) string {
	return domain.SlotKey(t.Exchange, t.Category) + ":" + t.RawSymbol
}

// Update fetches instruments (through the cache) and live tickers for a
// slot, merges them and stores the result.
func (s *MarketService) Update(ctx context.Context, ex domain.Exchange, cat domain.Category) ([]domain.Ticker, error) {
	records, err := s.fetch(ctx, ex, cat)
	if err != nil {
		return nil, err
	}
	s.ProcessTickers(SlotUpdate{Exchange: ex, Category: cat, Records: records})
	return slices.Clone(records), nil
}

func (s *MarketService) fetch(ctx context.Context, ex domain.Exchange, cat domain.Category) ([]domain.Ticker, error) {
	src, ok := s.tickers[ex]
	if !ok {
		return nil, &domain.FetchError{Exchange: ex, Category: cat, Op: "tickers", Err: domain.ErrUnknownExchange}
	}

	instruments, err := s.instruments.Instruments(ctx, ex, cat)
	if err != nil {
		return nil, err
	}
	tickers, err := src.FetchTickers(ctx, cat)
	if err != nil {
		return nil, err
	}
	return Merge(ex, cat, instruments, tickers), nil
}

// Merge overlays instrument identity and metadata onto tickers. Records
// follow instrument order; instruments without a ticker are dropped and
// tickers unknown to the instrument list are appended by raw symbol.
func Merge(ex domain.Exchange, cat domain.Category, instruments []domain.Instrument, tickers map[string]domain.Ticker) []domain.Ticker {
	out := make([]domain.Ticker, 0, len(tickers))
	seen := make(map[string]bool, len(instruments))

	for _, inst := range instruments {
		t, ok := tickers[inst.RawSymbol]
		if !ok || seen[inst.RawSymbol] {
			continue
		}
		seen[inst.RawSymbol] = true
		applyInstrument(&t, ex, inst)
		t.Exchange, t.Category = ex, cat
		out = append(out, t)
	}

	var extra []string
	for raw := range tickers {
		if !seen[raw] {
			extra = append(extra, raw)
		}
	}
	slices.Sort(extra)
	for _, raw := range extra {
		t := tickers[raw]
		t.Exchange, t.Category = ex, cat
		out = append(out, t)
	}
	return out
}

func applyInstrument(t *domain.Ticker, ex domain.Exchange, inst domain.Instrument) {
	t.CanonicalSymbol = inst.CanonicalSymbol
	t.SearchTag = inst.SearchTag
	if ex == domain.ExchangeBithumb {
		t.LocalizedName = inst.Remark
	} else {
		t.Status = inst.Remark
	}

	var types []string
	for _, w := range inst.Warnings {
		if w == marketWarningCode {
			t.MarketWarning = true
			continue
		}
		types = append(types, w)
	}
	t.WarningType = strings.Join(types, ",")
}

// ProcessTickers tracks the precision of the update's price fields and
// replaces the slot's records.
func (s *MarketService) ProcessTickers(u SlotUpdate) {
	for i := range u.Records {
		t := &u.Records[i]
		key := PrecisionKey(t)
		s.tracker.Track(key, t.Price)
		s.tracker.Track(key, t.High)
		s.tracker.Track(key, t.Low)
		s.tracker.Track(key, t.Change)
	}

	slot := domain.SlotKey(u.Exchange, u.Category)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[slot] = u.Records
	s.updatedAt[slot] = time.Now()
}

// GetData returns a copy of the slot's latest records and when they were stored.
func (s *MarketService) GetData(ex domain.Exchange, cat domain.Category) ([]domain.Ticker, time.Time) {
	slot := domain.SlotKey(ex, cat)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records[slot]), s.updatedAt[slot]
}

// Query searches and sorts the slot's latest records.
func (s *MarketService) Query(ex domain.Exchange, cat domain.Category, term string, key query.SortKey, order query.SortOrder) []domain.Ticker {
	records, _ := s.GetData(ex, cat)
	return query.Query(records, term, key, order)
}

// StartPolling refreshes each slot's tickers every period until ctx is
// cancelled or Stop is called. Results go through the ticker channel and
// are applied by a single processor goroutine.
func (s *MarketService) StartPolling(ctx context.Context, period time.Duration, slots ...cache.Slot) error {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.cancel != nil {
		return ErrPollingRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processLoop(ctx)
	}()

	for _, slot := range slots {
		s.wg.Add(1)
		go func(ex domain.Exchange, cat domain.Category) {
			defer s.wg.Done()
			s.pollLoop(ctx, ex, cat, period)
		}(slot.Exchange, slot.Category)
	}

	s.logger.Info("Ticker polling started", slog.Int("slots", len(slots)), slog.Duration("period", period))
	return nil
}

// Stop cancels polling and waits for its goroutines to exit.
func (s *MarketService) Stop() {
	s.pollMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Ticker polling stopped")
}

func (s *MarketService) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.tickerChan:
			s.ProcessTickers(u)
		}
	}
}

func (s *MarketService) pollLoop(ctx context.Context, ex domain.Exchange, cat domain.Category, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		records, err := s.fetch(ctx, ex, cat)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.Warn("Ticker poll failed",
				slog.String("slot", domain.SlotKey(ex, cat)),
				slog.Any("error", err),
			)
		case err == nil:
			select {
			case s.tickerChan <- SlotUpdate{Exchange: ex, Category: cat, Records: records}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

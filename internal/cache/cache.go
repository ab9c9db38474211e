// Package cache persists one encoded instrument list per (exchange,
// category) slot and refreshes it from upstream when its interval expires.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"crypto_board/internal/codec"
	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
)

// Store is the key-value persistence behind the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// refreshTimeout bounds a shared refresh once it no longer follows
// the context of the caller that started it.
const refreshTimeout = 2 * time.Minute

// IntervalFunc returns how long a slot stays fresh.
type IntervalFunc func(ex domain.Exchange, cat domain.Category) time.Duration

// Entry is a decoded slot.
type Entry struct {
	domain.CacheRecord
	Instruments []domain.Instrument
}

// Cache implements the refresh policy over a Store.
type Cache struct {
	store    Store
	sources  map[domain.Exchange]domain.InstrumentSource
	interval IntervalFunc
	retrier  *infra.Retrier
	metrics  *infra.Metrics
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRetrier sets the policy used for store calls.
func WithRetrier(r *infra.Retrier) Option {
	return func(c *Cache) { c.retrier = r }
}

// WithMetrics records refresh outcomes.
func WithMetrics(m *infra.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache over store, fetching from the per-exchange sources.
func New(store Store, sources map[domain.Exchange]domain.InstrumentSource, interval IntervalFunc, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		sources:  sources,
		interval: interval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = infra.NewRetrier(infra.RetryConfig{Attempts: 1}, c.logger)
	}
	c.logger = c.logger.With(slog.String("module", "cache"))
	return c
}

// Load reads and decodes a slot. A slot whose timestamp or payload cannot
// be read, or whose payload is empty, is reported as absent.
func (c *Cache) Load(ctx context.Context, ex domain.Exchange, cat domain.Category) (Entry, bool, error) {
	key := domain.SlotKey(ex, cat)

	var value string
	var found bool
	err := c.retrier.Do(ctx, key+".get", func(ctx context.Context) error {
		var err error
		value, found, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return Entry{}, false, err
	}
	if !found {
		return Entry{}, false, nil
	}

	ts, payload, ok := splitValue(value)
	if !ok || payload == "" {
		return Entry{}, false, nil
	}

	instruments, err := codec.Decode(payload)
	if err != nil {
		c.metrics.RecordDecodeFailure(string(ex), string(cat))
		c.logger.Warn("Discarding undecodable slot", slog.String("key", key), slog.Any("error", err))
		return Entry{}, false, nil
	}

	return Entry{
		CacheRecord: domain.CacheRecord{
			Exchange:  ex,
			Category:  cat,
			Timestamp: ts,
			Payload:   payload,
		},
		Instruments: instruments,
	}, true, nil
}

// NeedsUpdate reports whether the slot is absent, empty or older than its
// interval. A store read error counts as absent.
func (c *Cache) NeedsUpdate(ctx context.Context, ex domain.Exchange, cat domain.Category) bool {
	entry, ok, err := c.Load(ctx, ex, cat)
	if err != nil {
		c.logger.Warn("Slot read failed", slog.String("key", domain.SlotKey(ex, cat)), slog.Any("error", err))
		return true
	}
	if !ok {
		return true
	}
	return c.now().Sub(entry.Timestamp) >= c.interval(ex, cat)
}

// Refresh fetches the slot's instruments and writes them back. Concurrent
// calls for the same slot share one fetch. The shared fetch is detached from
// the caller's cancellation and bounded by the refresh timeout; a caller
// whose ctx ends stops waiting without cancelling it for the others.
//
// A failed fetch is swallowed while a valid record exists and returned as a
// *domain.FetchError otherwise. A rejected write is returned as is and
// leaves the previous record in place.
func (c *Cache) Refresh(ctx context.Context, ex domain.Exchange, cat domain.Category) error {
	if !domain.Supports(ex, cat) {
		return &domain.FetchError{Exchange: ex, Category: cat, Op: "refresh", Err: domain.ErrUnsupportedCategory}
	}
	key := domain.SlotKey(ex, cat)
	ch := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, c.refresh(ctx, ex, cat)
	})

	select {
	case <-ctx.Done():
		return &domain.FetchError{Exchange: ex, Category: cat, Op: "refresh", Err: ctx.Err()}
	case res := <-ch:
		return res.Err
	}
}

func (c *Cache) refresh(ctx context.Context, ex domain.Exchange, cat domain.Category) error {
	key := domain.SlotKey(ex, cat)
	start := c.now()

	instruments, fetchErr := c.fetch(ctx, ex, cat)

	prev, hasPrev, err := c.Load(ctx, ex, cat)
	if err != nil {
		c.logger.Warn("Slot read failed", slog.String("key", key), slog.Any("error", err))
	}

	if fetchErr != nil {
		if hasPrev {
			c.metrics.RecordRefresh(string(ex), string(cat), infra.RefreshStale)
			c.logger.Warn("Refresh failed, keeping cached instruments",
				slog.String("key", key),
				slog.Time("cached_at", prev.Timestamp),
				slog.Any("error", fetchErr),
			)
			return nil
		}
		c.metrics.RecordRefresh(string(ex), string(cat), infra.RefreshFailed)
		return &domain.FetchError{
			Exchange:  ex,
			Category:  cat,
			Op:        "refresh",
			Err:       fetchErr,
			Retriable: domain.IsRetriable(fetchErr),
		}
	}

	if hasPrev && prev.Timestamp.After(start) {
		c.metrics.RecordRefresh(string(ex), string(cat), infra.RefreshSkipped)
		c.logger.Debug("Newer record already stored", slog.String("key", key))
		return nil
	}

	value := joinValue(c.now(), codec.Encode(instruments))
	err = c.retrier.Do(ctx, key+".set", func(ctx context.Context) error {
		return c.store.Set(ctx, key, value)
	})
	if err != nil {
		var qe *domain.QuotaError
		if errors.As(err, &qe) {
			c.metrics.RecordStoreRejection(key)
			c.metrics.RecordRefresh(string(ex), string(cat), infra.RefreshQuota)
			c.logger.Error("Store rejected slot write",
				slog.String("key", key),
				slog.Int("bytes", len(value)),
				slog.Any("error", err),
			)
			return err
		}
		c.metrics.RecordRefresh(string(ex), string(cat), infra.RefreshFailed)
		return err
	}

	c.metrics.RecordRefresh(string(ex), string(cat), infra.RefreshOK)
	c.logger.Info("Slot refreshed", slog.String("key", key), slog.Int("instruments", len(instruments)))
	return nil
}

func (c *Cache) fetch(ctx context.Context, ex domain.Exchange, cat domain.Category) ([]domain.Instrument, error) {
	src, ok := c.sources[ex]
	if !ok {
		return nil, domain.NewFatalFetchError("instruments", domain.ErrUnknownExchange)
	}

	// Sources retry their own requests; only store calls go through c.retrier.
	instruments, err := src.FetchInstruments(ctx, cat)
	if err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, domain.NewFatalFetchError("instruments", domain.ErrEmptyResponse)
	}
	return instruments, nil
}

// Instruments returns the slot's instruments, refreshing first when stale.
// A stale but valid record is preferred over a failed refresh.
func (c *Cache) Instruments(ctx context.Context, ex domain.Exchange, cat domain.Category) ([]domain.Instrument, error) {
	var refreshErr error
	if c.NeedsUpdate(ctx, ex, cat) {
		refreshErr = c.Refresh(ctx, ex, cat)
	}

	entry, ok, err := c.Load(ctx, ex, cat)
	if err == nil && ok {
		if refreshErr != nil {
			c.logger.Warn("Serving cached instruments after refresh error",
				slog.String("key", domain.SlotKey(ex, cat)),
				slog.Any("error", refreshErr),
			)
		}
		return entry.Instruments, nil
	}
	if refreshErr != nil {
		return nil, refreshErr
	}
	if err != nil {
		return nil, err
	}
	return nil, &domain.FetchError{Exchange: ex, Category: cat, Op: "load", Err: domain.ErrNoData}
}

// joinValue builds the stored form "{unixMillis}|{payload}".
func joinValue(ts time.Time, payload string) string {
	return strconv.FormatInt(ts.UnixMilli(), 10) + "|" + payload
}

func splitValue(v string) (time.Time, string, bool) {
	msStr, payload, ok := strings.Cut(v, "|")
	if !ok {
		return time.Time{}, "", false
	}
	ms, err := strconv.ParseInt(msStr, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, "", false
	}
	return time.UnixMilli(ms), payload, true
}

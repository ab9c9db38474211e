package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
)

// Slot names one (exchange, category) pair.
type Slot struct {
	Exchange domain.Exchange
	Category domain.Category
}

func (s Slot) String() string {
	return domain.SlotKey(s.Exchange, s.Category)
}

// AllSlots lists every category of the given exchanges, or of every
// supported exchange when none are given.
func AllSlots(exchanges ...domain.Exchange) []Slot {
	if len(exchanges) == 0 {
		exchanges = domain.Exchanges
	}
	var out []Slot
	for _, ex := range exchanges {
		for _, cat := range domain.Categories(ex) {
			out = append(out, Slot{Exchange: ex, Category: cat})
		}
	}
	return out
}

// maxConcurrentRefresh bounds in-flight slot refreshes per round.
const maxConcurrentRefresh = 4

// ErrPollerRunning is returned by Start on a poller that was already started.
var ErrPollerRunning = errors.New("poller already running")

// Poller periodically refreshes stale slots until stopped.
type Poller struct {
	cache   *Cache
	slots   []Slot
	period  time.Duration
	metrics *infra.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller that checks slots every period.
func NewPoller(c *Cache, slots []Slot, period time.Duration) *Poller {
	return &Poller{
		cache:   c,
		slots:   slots,
		period:  period,
		metrics: c.metrics,
		logger:  c.logger.With(slog.String("component", "poller")),
	}
}

// RunOnce refreshes every stale slot concurrently and returns the first
// error encountered. Other slots still complete.
func (p *Poller) RunOnce(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentRefresh)

	for _, s := range p.slots {
		g.Go(func() error {
			if !p.cache.NeedsUpdate(ctx, s.Exchange, s.Category) {
				return nil
			}
			if err := p.cache.Refresh(ctx, s.Exchange, s.Category); err != nil {
				p.logger.Warn("Slot refresh failed", slog.String("slot", s.String()), slog.Any("error", err))
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Start runs one round immediately and then one per period, until ctx is
// cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrPollerRunning
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.metrics.IncrementPollers()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.metrics.DecrementPollers()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Poller panic recovered", slog.Any("panic", r))
			}
		}()

		p.RunOnce(ctx)

		ticker := time.NewTicker(p.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Poller stopped")
				return
			case <-ticker.C:
				p.RunOnce(ctx)
			}
		}
	}()

	return nil
}

// Stop cancels the poller and waits for the in-flight round to finish.
// A stopped poller can be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

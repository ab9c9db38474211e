package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
)

func TestAllSlots(t *testing.T) {
	slots := AllSlots(domain.ExchangeBithumb, domain.ExchangeBinance)
	keys := make([]string, len(slots))
	for i, s := range slots {
		keys[i] = s.String()
	}
	assert.Equal(t, []string{"bithumb-spot", "binance-spot", "binance-um", "binance-cm"}, keys)

	assert.Len(t, AllSlots(), 8)
}

func TestPoller_RunOnceRefreshesStaleSlots(t *testing.T) {
	store := newMemStore()
	store.data["bybit-spot"] = stored(t0.Add(-5*time.Minute), "BTC/USDT=BTCUSDT")
	src := &fakeSource{instruments: []domain.Instrument{btcInstrument()}}
	c := newTestCache(store, src, &fakeClock{t: t0}, nil)

	p := NewPoller(c, AllSlots(domain.ExchangeBybit), time.Minute)
	require.NoError(t, p.RunOnce(context.Background()))

	// spot was fresh; linear, inverse and option were absent
	assert.EqualValues(t, 3, src.calls.Load())
	assert.NotEmpty(t, store.raw("bybit-um"))
	assert.NotEmpty(t, store.raw("bybit-options"))
}

func TestPoller_StartStop(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{instruments: []domain.Instrument{btcInstrument()}}
	m := infra.NewMetrics()
	c := newTestCache(store, src, &fakeClock{t: t0}, m)

	p := NewPoller(c, []Slot{{domain.ExchangeBybit, domain.CategorySpot}}, 10*time.Millisecond)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrPollerRunning)

	require.Eventually(t, func() bool { return store.raw("bybit-spot") != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.Snapshot().ActivePollers)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 0, m.Snapshot().ActivePollers)

	// Clock never advances, so the slot stays fresh after the first round
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestPoller_StopsOnContextCancel(t *testing.T) {
	c := newTestCache(newMemStore(), &fakeSource{instruments: []domain.Instrument{btcInstrument()}}, &fakeClock{t: t0}, nil)
	p := NewPoller(c, AllSlots(domain.ExchangeBithumb), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller goroutine did not exit after cancel")
	}
}

func TestPoller_RestartAfterStop(t *testing.T) {
	store := newMemStore()
	src := &fakeSource{instruments: []domain.Instrument{btcInstrument()}}
	clock := &fakeClock{t: t0}
	c := newTestCache(store, src, clock, nil)

	p := NewPoller(c, []Slot{{domain.ExchangeBybit, domain.CategorySpot}}, 10*time.Millisecond)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()

	clock.Advance(2 * time.Hour)
	require.NoError(t, p.Start(context.Background()), "a stopped poller starts again")
	defer p.Stop()

	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

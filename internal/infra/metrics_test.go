package infra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_RecordRefresh(t *testing.T) {
	m := NewMetrics()

	m.RecordRefresh("bybit", "um", RefreshOK)
	m.RecordRefresh("bybit", "um", RefreshOK)
	m.RecordRefresh("bybit", "um", RefreshStale)
	m.RecordRefresh("binance", "spot", RefreshFailed)

	snap := m.Snapshot()

	if got := snap.Refresh("bybit", "um", RefreshOK); got != 2 {
		t.Errorf("Expected 2 ok refreshes, got %d", got)
	}
	if got := snap.Refresh("bybit", "um", RefreshStale); got != 1 {
		t.Errorf("Expected 1 stale refresh, got %d", got)
	}
	if got := snap.Refresh("binance", "spot", RefreshFailed); got != 1 {
		t.Errorf("Expected 1 failed refresh, got %d", got)
	}
	if got := snap.Refresh("bithumb", "spot", RefreshOK); got != 0 {
		t.Errorf("Expected 0 for untouched slot, got %d", got)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveFetch("bithumb", "instruments", 120*time.Millisecond)
	m.ObserveFetch("bithumb", "tickers", 80*time.Millisecond)
	m.RecordDecodeFailure("bithumb", "spot")
	m.RecordStoreRejection("bithumb-spot")
	m.RecordStoreRejection("bithumb-spot")

	snap := m.Snapshot()
	if snap.Fetches != 2 {
		t.Errorf("Expected 2 fetches, got %d", snap.Fetches)
	}
	if snap.DecodeFailures != 1 {
		t.Errorf("Expected 1 decode failure, got %d", snap.DecodeFailures)
	}
	if snap.StoreRejections != 2 {
		t.Errorf("Expected 2 rejections, got %d", snap.StoreRejections)
	}
}

func TestMetrics_Pollers(t *testing.T) {
	m := NewMetrics()

	m.IncrementPollers()
	m.IncrementPollers()
	if snap := m.Snapshot(); snap.ActivePollers != 2 {
		t.Errorf("Expected 2 pollers, got %d", snap.ActivePollers)
	}

	m.DecrementPollers()
	if snap := m.Snapshot(); snap.ActivePollers != 1 {
		t.Errorf("Expected 1 poller, got %d", snap.ActivePollers)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.RecordRefresh("bybit", "spot", RefreshOK)
	m.ObserveFetch("bybit", "tickers", time.Second)
	m.IncrementPollers()

	snap := m.Snapshot()
	if len(snap.Refreshes) != 0 || snap.ActivePollers != 0 {
		t.Error("Expected empty snapshot from nil metrics")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 from nil metrics, got %d", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordRefresh("bithumb", "spot", RefreshOK)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	want := `crypto_board_refresh_total{category="spot",exchange="bithumb",result="ok"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("exposition missing %q:\n%s", want, body)
	}
}

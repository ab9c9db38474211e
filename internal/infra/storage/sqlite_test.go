package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"crypto_board/internal/domain"
)

func setupTestDB(t *testing.T, maxValueBytes int) *SQLiteStore {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path, maxValueBytes)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := setupTestDB(t, 0)
	ctx := context.Background()

	// 1. Missing
	if _, ok, err := s.Get(ctx, "bybit-spot"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	// 2. Create
	if err := s.Set(ctx, "bybit-spot", "1700000000000|BTC/USDT=BTCUSDT"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// 3. Get
	v, ok, err := s.Get(ctx, "bybit-spot")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if v != "1700000000000|BTC/USDT=BTCUSDT" {
		t.Errorf("unexpected value %q", v)
	}
}

func TestOverwrite(t *testing.T) {
	s := setupTestDB(t, 0)
	ctx := context.Background()

	s.Set(ctx, "binance-um", "1|before")
	if err := s.Set(ctx, "binance-um", "2|after"); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	v, _, _ := s.Get(ctx, "binance-um")
	if v != "2|after" {
		t.Errorf("expected '2|after', got %q", v)
	}

	var rows int64
	if err := s.db.Model(&domain.CacheSlot{}).Count(&rows).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected a single row, got %d", rows)
	}
}

func TestQuotaExceeded(t *testing.T) {
	s := setupTestDB(t, 16)
	ctx := context.Background()

	s.Set(ctx, "bithumb-spot", "1|small")

	err := s.Set(ctx, "bithumb-spot", "2|"+strings.Repeat("X", 64))
	var qe *domain.QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if qe.Limit != 16 || qe.Key != "bithumb-spot" {
		t.Errorf("unexpected quota error %+v", qe)
	}

	// Previous value intact
	v, _, _ := s.Get(ctx, "bithumb-spot")
	if v != "1|small" {
		t.Errorf("previous value lost, got %q", v)
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crypto_board/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore keeps cache slots in a single SQLite table.
type SQLiteStore struct {
	db            *gorm.DB
	maxValueBytes int
}

// NewSQLiteStore opens (or creates) the database at path.
// maxValueBytes caps one slot value; 0 disables the check.
func NewSQLiteStore(path string, maxValueBytes int) (*SQLiteStore, error) {
	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.CacheSlot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db, maxValueBytes: maxValueBytes}, nil
}

// Get returns the slot value. A missing key is not an error.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var slot domain.CacheSlot
	err := s.db.WithContext(ctx).Where(&domain.CacheSlot{Key: key}).Take(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.NewFetchError("store.get", err)
	}
	return slot.Value, true, nil
}

// Set replaces the slot value in one statement.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return &domain.QuotaError{Key: key, Size: len(value), Limit: s.maxValueBytes}
	}

	slot := domain.CacheSlot{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Save(&slot).Error; err != nil {
		return domain.NewFetchError("store.set", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

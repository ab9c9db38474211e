package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crypto_board/internal/domain"
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	MaxValueBytes int
}

// RedisStore keeps each cache slot as one plain Redis string.
type RedisStore struct {
	client        *goredis.Client
	maxValueBytes int
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.MaxValueBytes), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *goredis.Client, maxValueBytes int) *RedisStore {
	return &RedisStore{client: client, maxValueBytes: maxValueBytes}
}

// Get returns the slot value. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.NewFetchError("store.get", err)
	}
	return v, true, nil
}

// Set writes the slot value without expiry. An out-of-memory reply maps to
// a QuotaError.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return &domain.QuotaError{Key: key, Size: len(value), Limit: s.maxValueBytes}
	}

	err := s.client.Set(ctx, key, value, 0).Err()
	if err == nil {
		return nil
	}
	if isOOM(err) {
		return &domain.QuotaError{Key: key, Size: len(value), Err: err}
	}
	return domain.NewFetchError("store.set", err)
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// isOOM matches Redis's maxmemory rejection ("OOM command not allowed ...").
func isOOM(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM ")
}

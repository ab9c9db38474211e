package infra

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crypto_board/internal/domain"
)

// Retrier runs an operation under a bounded per-attempt timeout, a fixed
// number of attempts and a linearly growing pause between attempts.
type Retrier struct {
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetrier builds a retrier. Attempts below 1 are raised to 1.
func NewRetrier(cfg RetryConfig, logger *slog.Logger) *Retrier {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{cfg: cfg, logger: logger.With(slog.String("module", "retry"))}
}

// Do calls fn until it succeeds, returns a non-retriable error, or the
// attempts run out. The last error is returned unchanged.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i < r.cfg.Attempts; i++ {
		if i > 0 {
			delay := time.Duration(i) * r.cfg.Backoff
			r.logger.Debug("Retrying", slog.String("op", op), slog.Int("attempt", i+1), slog.Duration("delay", delay))
			if err := wait(ctx, delay); err != nil {
				return err
			}
		}

		err := r.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return err
		}
		if !shouldRetry(err) {
			return err
		}
		r.logger.Warn("Attempt failed", slog.String("op", op), slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return lastErr
}

func (r *Retrier) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.cfg.Timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return fn(actx)
}

// shouldRetry honours errors that classify themselves; per-attempt
// timeouts and unclassified errors are retried.
func shouldRetry(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var re domain.RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return true
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

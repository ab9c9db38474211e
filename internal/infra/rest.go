package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"crypto_board/internal/domain"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// StatusError is a non-200 upstream answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.StatusCode, e.Body)
}

// IsRetriable reports rate limiting and server errors as transient.
func (e *StatusError) IsRetriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RESTClient issues JSON GET requests for one exchange through the shared
// retry policy.
type RESTClient struct {
	exchange   domain.Exchange
	httpClient *http.Client
	retrier    *Retrier
	metrics    *Metrics
	logger     *slog.Logger
}

// NewRESTClient creates a client. Per-attempt deadlines come from the
// retrier, so the http.Client itself carries no timeout.
func NewRESTClient(exchange domain.Exchange, retrier *Retrier, metrics *Metrics, logger *slog.Logger) *RESTClient {
	if retrier == nil {
		retrier = NewRetrier(RetryConfig{Attempts: 1, Timeout: 10 * time.Second}, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RESTClient{
		exchange:   exchange,
		httpClient: &http.Client{},
		retrier:    retrier,
		metrics:    metrics,
		logger:     logger.With(slog.String("module", "rest"), slog.String("exchange", string(exchange))),
	}
}

// GetJSON fetches url and decodes the body into out. op names the call in
// logs and metrics.
func (c *RESTClient) GetJSON(ctx context.Context, op, url string, out any) error {
	start := time.Now()
	err := c.retrier.Do(ctx, string(c.exchange)+"."+op, func(ctx context.Context) error {
		return c.doGet(ctx, url, out)
	})
	c.metrics.ObserveFetch(string(c.exchange), op, time.Since(start))
	if err != nil {
		c.logger.Warn("Request failed", slog.String("op", op), slog.String("url", url), slog.Any("error", err))
		return err
	}
	return nil
}

func (c *RESTClient) doGet(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.NewFatalFetchError("build request", err)
	}

	// Add browser-like User-Agent to avoid bot detection
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewFetchError("http get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewFetchError("read body", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewFatalFetchError("decode body", err)
	}
	return nil
}

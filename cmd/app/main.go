package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto_board/internal/app"
	"crypto_board/internal/cache"
	"crypto_board/internal/domain"
	"crypto_board/internal/query"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	exchangeName := flag.String("exchange", "bybit", "exchange: bithumb, bybit or binance")
	categoryName := flag.String("category", "spot", "integrated category: spot, um, cm or options")
	search := flag.String("search", "", "search term (defaults to query.search)")
	sortBy := flag.String("sort", "", "sort key (defaults to query.sort)")
	order := flag.String("order", "", "asc or desc (defaults to query.order)")
	limit := flag.Int("limit", 30, "rows to print, 0 for all")
	poll := flag.Bool("poll", false, "keep refreshing until interrupted")
	metricsAddr := flag.String("metrics", "", "serve /metrics on this address, e.g. :9090")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		return 1
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	logger := bootstrap.Logger

	ex, err := domain.ParseExchange(*exchangeName)
	if err != nil {
		logger.Error("Invalid exchange", slog.String("exchange", *exchangeName), slog.Any("error", err))
		return 2
	}
	cat := domain.Category(*categoryName)
	if !domain.Supports(ex, cat) {
		logger.Error("Unsupported category", slog.String("exchange", string(ex)), slog.String("category", *categoryName))
		return 2
	}

	key, err := query.ParseSortKey(firstNonEmpty(*sortBy, cfg.Query.Sort))
	if err != nil {
		logger.Error("Invalid sort key", slog.Any("error", err))
		return 2
	}
	dir, err := query.ParseSortOrder(firstNonEmpty(*order, cfg.Query.Order))
	if err != nil {
		logger.Error("Invalid sort order", slog.Any("error", err))
		return 2
	}
	v := view{
		Exchange: ex,
		Category: cat,
		Term:     firstNonEmpty(*search, cfg.Query.Search),
		Key:      key,
		Order:    dir,
		Limit:    *limit,
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, bootstrap, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	market := bootstrap.Market
	if _, err := market.Update(ctx, ex, cat); err != nil {
		logger.Error("Initial update failed", slog.Any("error", err))
		return 1
	}
	render(os.Stdout, market, v)

	if !*poll {
		return 0
	}

	// 3. Background refresh: instrument slots and live tickers
	if err := bootstrap.Poller.Start(ctx); err != nil {
		logger.Error("Failed to start poller", slog.Any("error", err))
	}
	period := cfg.Refresh.Tickers.Interval(ex, cat)
	if err := market.StartPolling(ctx, period, cache.Slot{Exchange: ex, Category: cat}); err != nil {
		logger.Error("Failed to start ticker polling", slog.Any("error", err))
	}
	logger.Info("Polling. Press Ctrl+C to exit.", slog.Duration("period", period))

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down gracefully...")
			return 0
		case <-ticker.C:
			render(os.Stdout, market, v)
		}
	}
}

func serveMetrics(addr string, bootstrap *app.Bootstrap, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", bootstrap.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()
	return srv
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

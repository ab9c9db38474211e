package app

import (
	"errors"
	"fmt"
	"log/slog"

	"crypto_board/internal/cache"
	"crypto_board/internal/domain"
	"crypto_board/internal/infra"
	"crypto_board/internal/infra/binance"
	"crypto_board/internal/infra/bithumb"
	"crypto_board/internal/infra/bybit"
	"crypto_board/internal/infra/storage"
	"crypto_board/internal/service"
)

// SlotStore is a cache.Store that owns a connection.
type SlotStore interface {
	cache.Store
	Close() error
}

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Logger  *slog.Logger
	Metrics *infra.Metrics
	Store   SlotStore
	Clients map[domain.Exchange]domain.ExchangeClient
	Cache   *cache.Cache
	Poller  *cache.Poller
	Market  *service.MarketService
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the config at path and builds the object graph.
func (b *Bootstrap) Initialize(path string) error {
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err
	}
	return b.InitializeWith(cfg)
}

// InitializeWith builds the object graph from an already loaded config.
func (b *Bootstrap) InitializeWith(cfg *infra.Config) error {
	b.Config = cfg

	// 1. Logger
	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)
	b.Logger.Info("Bootstrapping", slog.String("version", cfg.App.Version))

	// 2. Metrics
	b.Metrics = infra.NewMetrics()

	// 3. Storage
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	b.Store = store
	b.Logger.Info("Slot store ready", slog.String("driver", cfg.Storage.Driver))

	// 4. Exchange clients share one retry policy
	retrier := infra.NewRetrier(cfg.Fetch, b.Logger)
	b.Clients = newClients(cfg, retrier, b.Metrics, b.Logger)

	instrumentSources := make(map[domain.Exchange]domain.InstrumentSource, len(b.Clients))
	tickerSources := make(map[domain.Exchange]domain.TickerSource, len(b.Clients))
	for ex, c := range b.Clients {
		instrumentSources[ex] = c
		tickerSources[ex] = c
	}

	// 5. Cache, poller and market service
	b.Cache = cache.New(store, instrumentSources, cfg.Refresh.Instruments.Interval,
		cache.WithRetrier(retrier),
		cache.WithMetrics(b.Metrics),
		cache.WithLogger(b.Logger),
	)
	b.Poller = cache.NewPoller(b.Cache, cache.AllSlots(), cfg.Refresh.PollPeriod)
	b.Market = service.NewMarketService(b.Cache, tickerSources, nil, b.Logger)

	b.Logger.Info("Bootstrap complete", slog.Int("exchanges", len(b.Clients)))
	return nil
}

// Close stops background work and releases the store.
func (b *Bootstrap) Close() error {
	if b.Market != nil {
		b.Market.Stop()
	}
	if b.Poller != nil {
		b.Poller.Stop()
	}
	if b.Store != nil {
		return b.Store.Close()
	}
	return nil
}

func openStore(cfg *infra.Config) (SlotStore, error) {
	switch cfg.Storage.Driver {
	case infra.StorageSQLite:
		return storage.NewSQLiteStore(cfg.Storage.SQLite.Path, cfg.Storage.MaxValueBytes)
	case infra.StorageRedis:
		return storage.NewRedisStore(storage.RedisConfig{
			Addr:          cfg.Storage.Redis.Addr,
			Password:      cfg.Storage.Redis.Password,
			DB:            cfg.Storage.Redis.DB,
			MaxValueBytes: cfg.Storage.MaxValueBytes,
		})
	}
	return nil, errors.New("unknown storage driver")
}

func newClients(cfg *infra.Config, retrier *infra.Retrier, metrics *infra.Metrics, logger *slog.Logger) map[domain.Exchange]domain.ExchangeClient {
	rest := func(ex domain.Exchange) *infra.RESTClient {
		return infra.NewRESTClient(ex, retrier, metrics, logger)
	}

	bybitClient := bybit.NewClient(cfg.API.Bybit.RestURL, rest(domain.ExchangeBybit), logger)
	bybitClient.SetOptionBaseCoins(cfg.API.Bybit.OptionBaseCoins)

	return map[domain.Exchange]domain.ExchangeClient{
		domain.ExchangeBithumb: bithumb.NewClient(cfg.API.Bithumb.RestURL, rest(domain.ExchangeBithumb), logger),
		domain.ExchangeBybit:   bybitClient,
		domain.ExchangeBinance: binance.NewClient(binance.Endpoints{
			Spot:     cfg.API.Binance.SpotURL,
			Futures:  cfg.API.Binance.FuturesURL,
			Delivery: cfg.API.Binance.DeliveryURL,
		}, rest(domain.ExchangeBinance), logger),
	}
}

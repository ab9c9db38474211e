package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"crypto_board/internal/domain"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Storage struct {
		Driver string `yaml:"driver"` // sqlite | redis
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		// MaxValueBytes caps a single slot value; 0 disables the check.
		MaxValueBytes int `yaml:"max_value_bytes"`
	} `yaml:"storage"`

	API struct {
		Bithumb struct {
			RestURL string `yaml:"rest_url"`
		} `yaml:"bithumb"`
		Bybit struct {
			RestURL         string   `yaml:"rest_url"`
			OptionBaseCoins []string `yaml:"option_base_coins"`
		} `yaml:"bybit"`
		Binance struct {
			SpotURL     string `yaml:"spot_url"`
			FuturesURL  string `yaml:"futures_url"`  // USDⓈ-M
			DeliveryURL string `yaml:"delivery_url"` // COIN-M
		} `yaml:"binance"`
	} `yaml:"api"`

	Fetch RetryConfig `yaml:"fetch"`

	Refresh struct {
		// PollPeriod is how often the poller checks instrument slots for staleness.
		PollPeriod  time.Duration `yaml:"poll_period"`
		Instruments IntervalTable `yaml:"instruments"`
		Tickers     IntervalTable `yaml:"tickers"`
	} `yaml:"refresh"`

	Query struct {
		Sort   string `yaml:"sort"`
		Order  string `yaml:"order"`
		Search string `yaml:"search"`
	} `yaml:"query"`
}

// RetryConfig is the shared policy for upstream and store calls.
type RetryConfig struct {
	Timeout  time.Duration `yaml:"timeout"`  // per attempt
	Attempts int           `yaml:"attempts"` // total, including the first
	Backoff  time.Duration `yaml:"backoff"`  // grows linearly: n * Backoff before attempt n+1
}

// IntervalTable holds a default refresh interval plus per-slot overrides
// keyed "{exchange}-{category}".
type IntervalTable struct {
	Default   time.Duration            `yaml:"default"`
	Overrides map[string]time.Duration `yaml:"overrides"`
}

// Interval returns the interval configured for one slot.
func (t IntervalTable) Interval(ex domain.Exchange, cat domain.Category) time.Duration {
	if d, ok := t.Overrides[domain.SlotKey(ex, cat)]; ok {
		return d
	}
	return t.Default
}

// DefaultConfig returns the settings used when a field is left empty.
func DefaultConfig() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	applyDefaults(&cfg)

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "crypto_board"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "logs/app.log"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageSQLite
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/cache.db"
	}
	if cfg.API.Bithumb.RestURL == "" {
		cfg.API.Bithumb.RestURL = "https://api.bithumb.com"
	}
	if cfg.API.Bybit.RestURL == "" {
		cfg.API.Bybit.RestURL = "https://api.bybit.com"
	}
	if cfg.API.Binance.SpotURL == "" {
		cfg.API.Binance.SpotURL = "https://api.binance.com"
	}
	if cfg.API.Binance.FuturesURL == "" {
		cfg.API.Binance.FuturesURL = "https://fapi.binance.com"
	}
	if cfg.API.Binance.DeliveryURL == "" {
		cfg.API.Binance.DeliveryURL = "https://dapi.binance.com"
	}
	if len(cfg.API.Bybit.OptionBaseCoins) == 0 {
		cfg.API.Bybit.OptionBaseCoins = []string{"BTC", "ETH", "SOL"}
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 10 * time.Second
	}
	if cfg.Fetch.Attempts == 0 {
		cfg.Fetch.Attempts = 3
	}
	if cfg.Fetch.Backoff == 0 {
		cfg.Fetch.Backoff = time.Second
	}
	if cfg.Refresh.PollPeriod == 0 {
		cfg.Refresh.PollPeriod = time.Minute
	}
	if cfg.Refresh.Instruments.Default == 0 {
		cfg.Refresh.Instruments.Default = time.Hour
	}
	if cfg.Refresh.Tickers.Default == 0 {
		cfg.Refresh.Tickers.Default = 5 * time.Second
	}
	if cfg.Query.Order == "" {
		cfg.Query.Order = "desc"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageSQLite:
		if c.Storage.SQLite.Path == "" {
			return &domain.ConfigError{Field: "storage.sqlite.path", Err: errors.New("required")}
		}
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return &domain.ConfigError{Field: "storage.redis.addr", Err: errors.New("required")}
		}
	default:
		return &domain.ConfigError{Field: "storage.driver", Err: fmt.Errorf("unknown driver %q", c.Storage.Driver)}
	}
	if c.Storage.MaxValueBytes < 0 {
		return &domain.ConfigError{Field: "storage.max_value_bytes", Err: errors.New("must not be negative")}
	}

	urls := map[string]string{
		"api.bithumb.rest_url":     c.API.Bithumb.RestURL,
		"api.bybit.rest_url":       c.API.Bybit.RestURL,
		"api.binance.spot_url":     c.API.Binance.SpotURL,
		"api.binance.futures_url":  c.API.Binance.FuturesURL,
		"api.binance.delivery_url": c.API.Binance.DeliveryURL,
	}
	for field, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return &domain.ConfigError{Field: field, Err: fmt.Errorf("invalid URL %q", u)}
		}
	}

	if c.Fetch.Attempts < 1 {
		return &domain.ConfigError{Field: "fetch.attempts", Err: errors.New("must be at least 1")}
	}
	if c.Fetch.Timeout <= 0 {
		return &domain.ConfigError{Field: "fetch.timeout", Err: errors.New("must be positive")}
	}
	if c.Fetch.Backoff < 0 {
		return &domain.ConfigError{Field: "fetch.backoff", Err: errors.New("must not be negative")}
	}

	if c.Refresh.PollPeriod <= 0 {
		return &domain.ConfigError{Field: "refresh.poll_period", Err: errors.New("must be positive")}
	}
	for name, table := range map[string]IntervalTable{
		"refresh.instruments": c.Refresh.Instruments,
		"refresh.tickers":     c.Refresh.Tickers,
	} {
		if table.Default <= 0 {
			return &domain.ConfigError{Field: name + ".default", Err: errors.New("must be positive")}
		}
		for key, d := range table.Overrides {
			if d <= 0 {
				return &domain.ConfigError{Field: name + ".overrides." + key, Err: errors.New("must be positive")}
			}
		}
	}

	switch c.Query.Order {
	case "asc", "desc":
	default:
		return &domain.ConfigError{Field: "query.order", Err: fmt.Errorf("unknown order %q", c.Query.Order)}
	}

	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("CRYPTO_REDIS_ADDR"); addr != "" {
		cfg.Storage.Redis.Addr = addr
	}
	if pass := os.Getenv("CRYPTO_REDIS_PASSWORD"); pass != "" {
		cfg.Storage.Redis.Password = pass
	}
	if db := os.Getenv("CRYPTO_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.Storage.Redis.DB = n
		}
	}
	if path := os.Getenv("CRYPTO_SQLITE_PATH"); path != "" {
		cfg.Storage.SQLite.Path = path
	}
	if level := os.Getenv("CRYPTO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ModelArena/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"3001"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Arena struct {
		TickInterval    time.Duration `yaml:"tick_interval" default:"10s"`
		MaxFighters     int           `yaml:"max_fighters" default:"50"`
		StartingCash    float64       `yaml:"starting_cash" default:"10000"`
		TradeFraction   float64       `yaml:"trade_fraction" default:"0.1"`
		MinCash         float64       `yaml:"min_cash" default:"1"`
		Dust            float64       `yaml:"dust" default:"0.0001"`
		PriceHistoryCap int           `yaml:"price_history_cap" default:"200"`
		TradeLogCap     int           `yaml:"trade_log_cap" default:"500"`
		FighterTradeCap int           `yaml:"fighter_trade_cap" default:"500"`
		PortfolioCap    int           `yaml:"portfolio_cap" default:"1000"`
		SignalCap       int           `yaml:"signal_cap" default:"100"`
		RestoreOnStart  bool          `yaml:"restore_on_start" default:"true"`
	} `yaml:"arena"`
	PriceFeed struct {
		Source    string `yaml:"source" default:"coingecko"`
		CoinGecko struct {
			BaseURL    string        `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
			APIKey     string        `yaml:"api_key"`
			CoinID     string        `yaml:"coin_id" default:"binancecoin"`
			VsCurrency string        `yaml:"vs_currency" default:"usd"`
			CacheTTL   time.Duration `yaml:"cache_ttl" default:"12s"`
			Timeout    time.Duration `yaml:"timeout" default:"5s"`
			RPS        int           `yaml:"rps" default:"1"`
			MaxRetry   time.Duration `yaml:"max_retry" default:"4s"`
		} `yaml:"coingecko"`
		Finnhub struct {
			APIKey       string        `yaml:"api_key"`
			WebSocketURL string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
			Symbol       string        `yaml:"symbol" default:"BINANCE:BNBUSDT"`
			MaxStaleness time.Duration `yaml:"max_staleness" default:"30s"`
			PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
		} `yaml:"finnhub"`
	} `yaml:"price_feed"`
	Persistence struct {
		Backend    string        `yaml:"backend" default:"memory"`
		Queue      string        `yaml:"queue" default:"memory"`
		Workers    int           `yaml:"workers" default:"2"`
		QueueSize  int           `yaml:"queue_size" default:"1024"`
		RetryLimit int           `yaml:"retry_limit" default:"0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"2s"`
	} `yaml:"persistence"`
	Postgres struct {
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns" default:"10"`
		MaxIdleConns int    `yaml:"max_idle_conns" default:"5"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" default:"arena.db"`
	} `yaml:"sqlite"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"arena"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"4"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"2"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix" default:"arena"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"arena.trades"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	RateLimit struct {
		JoinPerMinute int `yaml:"join_per_minute" default:"6"`
		Burst         int `yaml:"burst" default:"3"`
	} `yaml:"ratelimit"`
}

// Load reads and parses a YAML configuration file. Missing keys fall back to
// struct tag defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is honoured when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = util.ParseIntDefault(os.Getenv("PORT"), c.Server.Port)
	c.Redis.DB = util.ParseIntDefault(os.Getenv("REDIS_DB"), c.Redis.DB)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PRICE_SOURCE"); v != "" {
		c.PriceFeed.Source = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.PriceFeed.CoinGecko.APIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.PriceFeed.Finnhub.APIKey = v
	}
	if v := os.Getenv("PERSISTENCE_BACKEND"); v != "" {
		c.Persistence.Backend = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Arena.TickInterval <= 0 {
		return errors.New("arena.tick_interval must be positive")
	}
	if c.Arena.MaxFighters <= 0 {
		return errors.New("arena.max_fighters must be positive")
	}
	if c.Arena.StartingCash <= 0 {
		return errors.New("arena.starting_cash must be positive")
	}
	if c.Arena.TradeFraction <= 0 || c.Arena.TradeFraction > 1 {
		return fmt.Errorf("arena.trade_fraction must be in (0,1], got %v", c.Arena.TradeFraction)
	}
	if c.Arena.PriceHistoryCap <= 0 || c.Arena.TradeLogCap <= 0 {
		return errors.New("arena history caps must be positive")
	}

	switch c.PriceFeed.Source {
	case "coingecko":
	case "finnhub":
		if c.PriceFeed.Finnhub.APIKey == "" {
			return errors.New("price_feed.finnhub.api_key is required for the finnhub source")
		}
	default:
		return fmt.Errorf("price_feed.source must be 'coingecko' or 'finnhub', got '%s'", c.PriceFeed.Source)
	}

	switch c.Persistence.Backend {
	case "memory", "sqlite", "clickhouse":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("persistence.backend must be one of memory, postgres, sqlite, clickhouse; got '%s'", c.Persistence.Backend)
	}

	switch c.Persistence.Queue {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("persistence.queue 'redis' requires redis.enabled")
		}
	default:
		return fmt.Errorf("persistence.queue must be 'memory' or 'redis', got '%s'", c.Persistence.Queue)
	}
	if c.Persistence.Workers <= 0 || c.Persistence.QueueSize <= 0 {
		return errors.New("persistence.workers and persistence.queue_size must be positive")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

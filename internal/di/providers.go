package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"ModelArena/internal/domain/repository"
	"ModelArena/internal/handler/api"
	internalrepo "ModelArena/internal/repository"
	"ModelArena/internal/service/coingecko"
	"ModelArena/internal/service/finnhub"
	"ModelArena/internal/service/ratelimit"
	"ModelArena/internal/services/inference"
	"ModelArena/internal/usecase"
	"ModelArena/pkg/cache"
	pkgch "ModelArena/pkg/clickhouse"
	"ModelArena/pkg/config"
	xhttp "ModelArena/pkg/http"
	pkgkafka "ModelArena/pkg/kafka"
	applogger "ModelArena/pkg/logger"
	"ModelArena/pkg/metrics"
	"ModelArena/pkg/queue"
	"ModelArena/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedisClient connects to Redis when enabled. Nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvidePriceCache returns a Redis-backed layered cache when Redis is
// available and an in-process cache otherwise.
func ProvidePriceCache(cfg *config.Config, client *redis.Client) cache.Service {
	if client == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(64))
	}
	rc := cache.NewRedisCache(client, cache.WithRedisPrefix(cfg.Redis.KeyPrefix))
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(64))
}

// ProvidePriceFeed builds the configured price source.
func ProvidePriceFeed(cfg *config.Config, lgr *applogger.Logger, priceCache cache.Service) repository.PriceFeed {
	pf := cfg.PriceFeed
	if pf.Source == "finnhub" {
		return finnhub.New(lgr.With("finnhub"),
			finnhub.WithURL(pf.Finnhub.WebSocketURL),
			finnhub.WithAPIKey(pf.Finnhub.APIKey),
			finnhub.WithSymbol(pf.Finnhub.Symbol),
			finnhub.WithMaxStaleness(pf.Finnhub.MaxStaleness),
			finnhub.WithPingInterval(pf.Finnhub.PingInterval),
		)
	}

	httpClient := xhttp.NewClient(
		xhttp.WithTimeout(pf.CoinGecko.Timeout),
		xhttp.WithRateLimit(pf.CoinGecko.RPS),
		xhttp.WithMaxRetry(pf.CoinGecko.MaxRetry),
	)
	return coingecko.New(lgr.With("coingecko"), httpClient, priceCache,
		coingecko.WithBaseURL(pf.CoinGecko.BaseURL),
		coingecko.WithAPIKey(pf.CoinGecko.APIKey),
		coingecko.WithCoin(pf.CoinGecko.CoinID, pf.CoinGecko.VsCurrency),
		coingecko.WithCacheTTL(pf.CoinGecko.CacheTTL),
	)
}

// ProvideStore opens the configured persistence backend and ensures its
// schema. When the backend is unreachable the arena still runs, on an
// in-memory store.
func ProvideStore(cfg *config.Config, lgr *applogger.Logger, rec *metrics.Recorder) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	store, err := openStore(ctx, cfg, lgr)
	if err != nil {
		lgr.Error("persistence backend unavailable, falling back to memory",
			applogger.String("backend", cfg.Persistence.Backend),
			applogger.Error(err),
		)
		if rec != nil {
			rec.RecordError("store_init")
		}
		return internalrepo.NewMemoryStore(), nil
	}
	return store, nil
}

func openStore(ctx context.Context, cfg *config.Config, lgr *applogger.Logger) (repository.Store, error) {
	var store repository.Store
	switch cfg.Persistence.Backend {
	case "postgres":
		db, err := internalrepo.OpenPostgres(lgr, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		store = internalrepo.NewGormStore(lgr, db)
	case "sqlite":
		db, err := internalrepo.OpenSQLite(lgr, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		store = internalrepo.NewGormStore(lgr, db)
	case "clickhouse":
		ch := cfg.ClickHouse
		client, err := pkgch.NewClient(ctx,
			pkgch.WithHost(ch.Host),
			pkgch.WithPort(ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithHTTP(ch.UseHTTP),
			pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
			pkgch.WithPool(ch.MaxOpenConns, ch.MaxIdleConns),
			pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewClickHouseStore(lgr, client)
	default:
		store = internalrepo.NewMemoryStore()
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s store init: %w", cfg.Persistence.Backend, err)
	}
	return store, nil
}

// ProvideTradePublisher creates the Kafka trade stream. Nil when Kafka is
// disabled.
func ProvideTradePublisher(cfg *config.Config) (repository.TradePublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithTopic(k.Topic),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaTradePublisher(producer), nil
}

// ProvideQueue creates the write-behind queue.
func ProvideQueue(cfg *config.Config, lgr *applogger.Logger, client *redis.Client, rec *metrics.Recorder) queue.Queue {
	qc := &queue.QueueConfig{
		Workers:    cfg.Persistence.Workers,
		QueueSize:  cfg.Persistence.QueueSize,
		RetryLimit: cfg.Persistence.RetryLimit,
		RetryDelay: cfg.Persistence.RetryDelay,
	}
	if cfg.Persistence.Queue == "redis" && client != nil {
		return queue.NewRedisQueue(lgr, qc, client,
			queue.WithKeyPrefix(cfg.Redis.KeyPrefix+":queue"),
			queue.WithRedisObserver(rec),
		)
	}
	return queue.NewMemoryQueue(lgr, qc, queue.WithMemoryObserver(rec))
}

// ProvideMirror wires persistence jobs onto the queue.
func ProvideMirror(
	lgr *applogger.Logger,
	q queue.Queue,
	store repository.Store,
	pub repository.TradePublisher,
	rec *metrics.Recorder,
) *usecase.Mirror {
	return usecase.NewMirror(lgr, q, store, pub, rec)
}

// ProvideArena creates the arena use case.
func ProvideArena(
	cfg *config.Config,
	lgr *applogger.Logger,
	feed repository.PriceFeed,
	rec *metrics.Recorder,
	mirror *usecase.Mirror,
	store repository.Store,
) *usecase.Arena {
	a := cfg.Arena
	return usecase.NewArena(lgr, feed, inference.NewEngine(), rec,
		usecase.WithArenaConfig(usecase.ArenaConfig{
			TickInterval:    a.TickInterval,
			MaxFighters:     a.MaxFighters,
			StartingCash:    a.StartingCash,
			TradeFraction:   a.TradeFraction,
			MinCash:         a.MinCash,
			Dust:            a.Dust,
			PriceHistoryCap: a.PriceHistoryCap,
			TradeLogCap:     a.TradeLogCap,
			FighterTradeCap: a.FighterTradeCap,
			PortfolioCap:    a.PortfolioCap,
			SignalCap:       a.SignalCap,
		}),
		usecase.WithPersister(mirror),
		usecase.WithLoader(store),
	)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.JoinPerMinute, cfg.RateLimit.Burst)
}

func ProvideArenaHandler(
	lgr *applogger.Logger,
	arena *usecase.Arena,
	store repository.Store,
	limiter *ratelimit.Limiter,
) *api.ArenaEchoHandler {
	return api.NewArenaEchoHandler(lgr, arena, store, limiter)
}

// ProvideHTTPServer creates the Echo server with every route registered.
func ProvideHTTPServer(cfg *config.Config, lgr *applogger.Logger, h *api.ArenaEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, xhttp.WithCORS(cfg.Server.CORSOrigins))
	}
	path := cfg.Metrics.Path
	if !cfg.Metrics.Enabled {
		path = ""
	}
	opts = append(opts, xhttp.WithMetrics(path, prometheus.DefaultRegisterer, prometheus.DefaultGatherer))
	return xhttp.NewServer(lgr.With("http"), []xhttp.Handler{h}, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	arena *usecase.Arena,
	store repository.Store,
	q queue.Queue,
	srv *xhttp.Server,
	feed repository.PriceFeed,
	pub repository.TradePublisher,
	priceCache cache.Service,
	client *redis.Client,
) *server.App {
	app := server.New(cfg, lgr, arena, store, q, srv)
	if r, ok := feed.(server.Runner); ok {
		app.AddRunner(r)
	}
	if pub != nil {
		app.AddCloser(pub)
	}
	app.AddCloser(priceCache)
	if client != nil {
		app.AddCloser(client)
	}
	return app
}

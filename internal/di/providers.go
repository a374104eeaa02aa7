package di

import (
	"context"
	"fmt"
	"time"

	"FactorLens/internal/domain/repository"
	"FactorLens/internal/handler/api"
	"FactorLens/internal/handler/ws"
	internalrepo "FactorLens/internal/repository"
	"FactorLens/internal/scheduler"
	"FactorLens/internal/service/ratelimit"
	"FactorLens/internal/services/risk"
	"FactorLens/internal/usecase"
	"FactorLens/pkg/cache"
	pkgch "FactorLens/pkg/clickhouse"
	"FactorLens/pkg/config"
	xhttp "FactorLens/pkg/http"
	pkgkafka "FactorLens/pkg/kafka"
	applogger "FactorLens/pkg/logger"
	"FactorLens/pkg/metrics"
	"FactorLens/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

func usesClickHouse(cfg *config.Config) bool {
	return cfg.Data.Source == "clickhouse" || cfg.Backend.Type == "clickhouse"
}

// ProvideClickHouseClient connects to ClickHouse when the price source or the
// result backend needs it, and returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !usesClickHouse(cfg) {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvidePriceSource selects the configured price source.
func ProvidePriceSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.PriceSource, error) {
	switch repository.NormalizeSource(cfg.Data.Source) {
	case repository.SourceCSV:
		return internalrepo.NewCSVPriceSource(cfg.Data.Path), nil
	case repository.SourceHTTP:
		client := xhttp.NewClient(
			xhttp.WithTimeout(cfg.Data.Timeout),
			xhttp.WithRetry(cfg.Data.Retries, time.Second),
			xhttp.WithUserAgent("factorlens/"+cfg.Environment),
		)
		return internalrepo.NewHTTPPriceSource(cfg.Data.URL, client), nil
	case repository.SourceClickHouse:
		if ch == nil {
			return nil, fmt.Errorf("price source: clickhouse client not configured")
		}
		src := internalrepo.NewCHPriceSource(ch, cfg.Data.Table)
		src.SetLogger(l)
		return src, nil
	default:
		return nil, fmt.Errorf("price source: unknown source %q", cfg.Data.Source)
	}
}

// ProvideResultStore opens the configured result backend and ensures its
// schema. backend "none" yields a nil store.
func ProvideResultStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.ResultStore, func(), error) {
	var store *internalrepo.SQLResultStore
	switch cfg.Backend.Type {
	case "none":
		return nil, func() {}, nil
	case "sqlite":
		s, err := internalrepo.NewSQLiteResultStore(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		store = s
	case "clickhouse":
		if ch == nil {
			return nil, nil, fmt.Errorf("result store: clickhouse client not configured")
		}
		store = internalrepo.NewClickHouseResultStore(ch)
	default:
		return nil, nil, fmt.Errorf("result store: unknown backend %q", cfg.Backend.Type)
	}
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("result store schema: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyOrdering(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRunPublisher publishes finished runs to Kafka; nil without a producer.
func ProvideRunPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.BetasTopic, cfg.Kafka.RunsTopic, risk.InferRegion)
}

// ProvideKafkaConsumer creates the refresh-command consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l)))
	return consumer, nil
}

// ProvideArchiver uploads runs to S3 when archiving is enabled.
func ProvideArchiver(cfg *config.Config, l *applogger.Logger) (repository.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a, err := internalrepo.NewS3Archiver(ctx, internalrepo.S3ArchiverConfig{
		Bucket:   cfg.Archive.Bucket,
		Prefix:   cfg.Archive.Prefix,
		Region:   cfg.Archive.Region,
		Endpoint: cfg.Archive.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 archiver: %w", err)
	}
	a.SetLogger(l)
	return a, nil
}

// ProvideCache uses Redis behind an in-process layer when Redis is enabled and
// a plain memory cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		c := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
			cache.WithMemoryCleanup(cfg.Cache.Cleanup),
		)
		return c, func() { _ = c.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix("factorlens"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	c := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MaxEntries),
		cache.WithLayeredMemoryTTL(time.Minute),
	)
	return c, func() { _ = c.Close() }, nil
}

// ProvideUniverse starts from the built-in Asia universe and applies the
// configured ticker and factor overrides.
func ProvideUniverse(cfg *config.Config) *risk.Universe {
	u := risk.DefaultUniverse()
	if len(cfg.Universe.Tickers) > 0 {
		u.Tickers = append([]string(nil), cfg.Universe.Tickers...)
	}
	if len(cfg.Universe.Factors) > 0 {
		u.Factors = append([]string(nil), cfg.Universe.Factors...)
	}
	return u
}

// ProvideEngine creates the beta engine.
func ProvideEngine(cfg *config.Config, u *risk.Universe, l *applogger.Logger) *risk.Engine {
	return risk.NewEngine(risk.EngineConfig{
		Window:   cfg.Engine.Window,
		Alpha:    cfg.Engine.RidgeAlpha,
		Coverage: cfg.Engine.Coverage,
		Workers:  cfg.Engine.Workers,
	}, u, l)
}

// ProvideWebsocketHub creates the run-event hub.
func ProvideWebsocketHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideRiskService wires the engine to its source and every optional sink.
func ProvideRiskService(
	cfg *config.Config,
	engine *risk.Engine,
	source repository.PriceSource,
	rec *metrics.Recorder,
	l *applogger.Logger,
	store repository.ResultStore,
	pub repository.Publisher,
	arch repository.Archiver,
	hub *ws.Hub,
	c cache.Service,
) *usecase.RiskService {
	opts := []usecase.RiskOption{usecase.WithBroadcaster(hub), usecase.WithCache(c)}
	if store != nil {
		opts = append(opts, usecase.WithResultStore(store))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	if arch != nil {
		opts = append(opts, usecase.WithArchiver(arch))
	}
	return usecase.NewRiskService(engine, source, rec, l, usecase.RiskConfig{
		StartDate:   cfg.StartDate(),
		ShockFactor: cfg.Engine.ShockFactor,
		ShockSize:   cfg.Engine.ShockSize,
		Tail:        risk.Tail(cfg.Engine.Tail),
		LockTTL:     cfg.Engine.LockTTL,
		CacheTTL:    cfg.Redis.TTL,
	}, opts...)
}

// ProvideRefreshHandler creates the Kafka refresh-command handler.
func ProvideRefreshHandler(cfg *config.Config, svc *usecase.RiskService, rec *metrics.Recorder, l *applogger.Logger) *usecase.RefreshHandler {
	return usecase.NewRefreshHandler(cfg.Kafka.RefreshTopic, svc, rec, l)
}

// ProvideScheduler creates the cron scheduler. A job run is bounded by the
// refresh lock TTL.
func ProvideScheduler(cfg *config.Config, l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(l, cfg.Engine.LockTTL)
}

// ProvideRateLimiter limits manual refresh requests per client.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
}

// ProvideRiskHandler creates the REST handler.
func ProvideRiskHandler(l *applogger.Logger, svc *usecase.RiskService, rec *metrics.Recorder, limiter *ratelimit.Limiter) *api.RiskHandler {
	return api.NewRiskHandler(l, svc, rec, limiter)
}

// ProvideHTTPServer creates the echo server with the REST and websocket routes.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, rh *api.RiskHandler, hub *ws.Hub) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{rh, hub},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp assembles the application and attaches the log collector when
// error logs should be shipped to Kafka.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.RiskService,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	refresh *usecase.RefreshHandler,
	producer *pkgkafka.Producer,
	pub repository.Publisher,
	source repository.PriceSource,
) *server.App {
	var handler pkgkafka.MessageHandler
	if consumer != nil {
		handler = refresh
	}
	app := server.New(cfg, l, svc, httpServer, hub, sched, consumer, handler)
	app.AddCloser("price source", source.Close)

	if producer == nil {
		return app
	}
	// the publisher owns the producer; the collector must flush before it closes
	if pub != nil {
		app.AddCloser("kafka publisher", pub.Close)
	} else {
		app.AddCloser("kafka producer", producer.Close)
	}
	if cfg.Logging.Collect.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collect.FlushInterval,
			CountThreshold: cfg.Logging.Collect.MaxErrors,
			Topic:          cfg.Logging.Collect.Topic,
			Publisher:      producer,
		})
		app.AddCloser("log collector", func() error {
			l.RemoveCollector()
			return nil
		})
	}
	return app
}

package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	domrepo "GapSight/internal/domain/repository"
	"GapSight/internal/handler/api"
	mid "GapSight/internal/middleware"
	internalrepo "GapSight/internal/repository"
	scache "GapSight/internal/service/cache"
	smetrics "GapSight/internal/service/metrics"
	"GapSight/internal/service/ratelimit"
	"GapSight/internal/services/charts"
	"GapSight/internal/services/upstream"
	"GapSight/internal/usecase"
	"GapSight/pkg/cache"
	pkgch "GapSight/pkg/clickhouse"
	"GapSight/pkg/config"
	xhttp "GapSight/pkg/http"
	pkgkafka "GapSight/pkg/kafka"
	"GapSight/pkg/logger"
	"GapSight/pkg/metrics"
	"GapSight/pkg/queue"
	"GapSight/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(logger.String("env", cfg.Environment))
	return l, l.RemoveCollector, nil
}

// ProvideRegisterer returns the default registry, or a private one when metrics are disabled
// so collectors still work but nothing is exposed.
func ProvideRegisterer(cfg *config.Config) prometheus.Registerer {
	if cfg.Metrics.Disabled {
		return prometheus.NewRegistry()
	}
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates the snapshot pipeline recorder.
func ProvideMetrics(reg prometheus.Registerer) domrepo.Metrics {
	return metrics.New(reg)
}

func ProvideDashboardMetrics(reg prometheus.Registerer) smetrics.Dashboard {
	smetrics.Register(reg)
	return smetrics.Dashboard{}
}

// ProvideUpstream creates the analytics API client.
func ProvideUpstream(cfg *config.Config, dm smetrics.Dashboard) *upstream.Client {
	return upstream.New(cfg.Upstream.BaseURL,
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithRetry(cfg.Upstream.RetryAttempts, cfg.Upstream.RetryBase),
		upstream.WithRecorder(dm),
		upstream.WithHTTPOptions(xhttp.WithUserAgent("gapsight-dashboard")),
	)
}

// ProvideRedisClient connects to Redis when the cache or the queue needs it; otherwise nil.
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.NeedsRedis() {
		return nil, func() {}, nil
	}
	client, _, err := cache.NewRedisClient(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache creates the response cache selected by cache.backend.
func ProvideCache(cfg *config.Config, rc *redis.Client) (cache.Service, func(), error) {
	switch cfg.Cache.Backend {
	case "memory":
		c := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
			cache.WithMemoryDefaultTTL(cfg.Cache.TTL.Summary),
		)
		return c, func() { _ = c.Close() }, nil
	case "redis":
		c := cache.NewRedisCacheWithClient(rc, cfg.Redis.Prefix)
		return c, func() { _ = c.Close() }, nil
	case "layered":
		c := cache.NewLayeredCache(cache.NewRedisCacheWithClient(rc, cfg.Redis.Prefix),
			cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
			cache.WithLayeredL1TTL(cfg.Cache.TTL.Summary),
		)
		return c, func() { _ = c.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// ProvideChartCache keeps rendered PNGs in Redis when responses are shared there, else in process.
func ProvideChartCache(cfg *config.Config, rc *redis.Client) scache.BytesCache {
	if rc != nil && cfg.Cache.Backend != "memory" {
		return scache.NewRedisCache(rc, cfg.Redis.Prefix+":charts")
	}
	return scache.NewLRUCache(cfg.Cache.ChartSize, cfg.Cache.TTL.Chart)
}

func ProvideUseCaseOptions(cfg *config.Config, c cache.Service, dm smetrics.Dashboard, l *logger.Logger) usecase.Options {
	return usecase.Options{
		Cache: c,
		TTL: usecase.CacheTTL{
			Summary:  cfg.Cache.TTL.Summary,
			Growth:   cfg.Cache.TTL.Growth,
			Insights: cfg.Cache.TTL.Insights,
			Chart:    cfg.Cache.TTL.Chart,
		},
		Observer: dm,
		Logger:   l,
		Timeout:  cfg.Upstream.Timeout * 2,
	}
}

// ProvideQueue creates the Redis job queue, or nil when queue.enabled is false.
func ProvideQueue(cfg *config.Config, rc *redis.Client, l *logger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, queue.QueueConfig{
		Name:       cfg.Queue.Name,
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc)
}

// ProvideClickHouseClient connects to ClickHouse, or returns nil when it is disabled.
func ProvideClickHouseClient(ctx context.Context, cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideSnapshotStorage creates the snapshot table and returns its repository, or nil without ClickHouse.
func ProvideSnapshotStorage(ctx context.Context, ch *pkgch.Client) (*internalrepo.ClickHouseSnapshotStorage, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSnapshotStorage(ch.DB(), internalrepo.DefaultSnapshotTable)
	ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Init(ictx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates the producer shared by snapshots and the log collector, or nil.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Log.Collect {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval: cfg.Log.CollectInterval,
			Topic:        cfg.Kafka.LogTopic,
			Publisher:    producer,
		})
	}
	return producer, func() {
		// Flush collected logs while the producer can still deliver them.
		l.RemoveCollector()
		_ = producer.Close()
	}, nil
}

func ProvideDashboardUseCase(src *upstream.Client, opts usecase.Options) *usecase.DashboardUseCase {
	return usecase.NewDashboardUseCase(src, opts)
}

// ProvideCompetitorsUseCase adds the archive fallback when snapshots are stored in ClickHouse.
func ProvideCompetitorsUseCase(
	cfg *config.Config,
	src *upstream.Client,
	opts usecase.Options,
	store *internalrepo.ClickHouseSnapshotStorage,
	chartCache scache.BytesCache,
) *usecase.CompetitorsUseCase {
	extra := []usecase.CompetitorsOption{
		usecase.WithChartRenderer(charts.NewRenderer("Competitor growth"), chartCache),
	}
	if store != nil {
		extra = append(extra, usecase.WithHistory(store, cfg.Snapshots.HistoryDays))
	}
	return usecase.NewCompetitorsUseCase(src, opts, extra...)
}

// ProvideInsightsUseCase queues refreshes when a queue exists and registers the job that runs them.
func ProvideInsightsUseCase(src *upstream.Client, opts usecase.Options, q *queue.RedisQueue) *usecase.InsightsUseCase {
	if q == nil {
		return usecase.NewInsightsUseCase(src, opts, nil)
	}
	uc := usecase.NewInsightsUseCase(src, opts, q)
	q.RegisterJob(usecase.NewInsightsRefreshJob(uc))
	return uc
}

func ProvideReportsUseCase(src *upstream.Client, l *logger.Logger) *usecase.ReportsUseCase {
	return usecase.NewReportsUseCase(src, l)
}

func ProvideGrowthHub(cfg *config.Config, l *logger.Logger, uc *usecase.CompetitorsUseCase) *api.GrowthHub {
	return api.NewGrowthHub(l.With(logger.String("component", "growth_ws")), uc, cfg.Server.CORSOrigins)
}

// ProvideSnapshotProcessor routes snapshots to the configured backend, or returns nil when
// snapshots are disabled.
func ProvideSnapshotProcessor(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	store *internalrepo.ClickHouseSnapshotStorage,
	m domrepo.Metrics,
) (*usecase.SnapshotProcessor, error) {
	if !cfg.Snapshots.Enabled {
		return nil, nil
	}
	var (
		pub domrepo.SnapshotPublisher
		st  domrepo.SnapshotStorage
	)
	if producer != nil {
		pub = internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
	}
	if store != nil {
		st = store
	}
	return usecase.NewSnapshotProcessor(pub, st, m, cfg.Snapshots.Backend, cfg.Snapshots.BatchSize, cfg.Snapshots.BatchTimeout)
}

// ProvideSnapshotCollector builds the poll -> pipeline -> processor chain, or nil without a processor.
func ProvideSnapshotCollector(
	cfg *config.Config,
	src *upstream.Client,
	proc *usecase.SnapshotProcessor,
	m domrepo.Metrics,
	hub *api.GrowthHub,
	l *logger.Logger,
) (*usecase.SnapshotCollector, error) {
	if proc == nil {
		return nil, nil
	}
	pipe, err := mid.NewSnapshotPipeline(proc, m,
		mid.WithBufferSize(10000),
		mid.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot pipeline: %w", err)
	}
	return usecase.NewSnapshotCollector(src, pipe, m, hub, cfg.Snapshots.Interval, l), nil
}

// ProvideKafkaConsumer archives the snapshot topic into ClickHouse. It is nil unless
// snapshots flow through Kafka and ClickHouse is available to receive them.
func ProvideKafkaConsumer(
	cfg *config.Config,
	store *internalrepo.ClickHouseSnapshotStorage,
	m domrepo.Metrics,
	l *logger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Snapshots.Backend != usecase.BackendKafka || store == nil {
		return nil, nil
	}
	handler := usecase.NewKafkaSnapshotsHandler(cfg.Kafka.Topic, store, m)
	consumer, err := pkgkafka.NewConsumer(handler, l.With(logger.String("component", "kafka_consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Use(pkgkafka.HookFuncs{
		After: func(_ context.Context, _ kafkago.Message, err error, took time.Duration) {
			m.RecordLatency("kafka_snapshot_handle", took.Seconds())
			if err != nil {
				m.RecordError("kafka_snapshot_handle")
			}
		},
		DLQ: func(_ context.Context, msg kafkago.Message, err error) {
			l.Warn("snapshot message dead-lettered",
				logger.Int("partition", msg.Partition), logger.Int64("offset", msg.Offset), logger.Error(err))
		},
	})
	return consumer, nil
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.PerMinute(cfg.Server.ReportsPerMinute)
}

// ProvideHTTPHandler collects every route of the API.
func ProvideHTTPHandler(
	l *logger.Logger,
	src *upstream.Client,
	dashboard *usecase.DashboardUseCase,
	competitors *usecase.CompetitorsUseCase,
	insights *usecase.InsightsUseCase,
	reports *usecase.ReportsUseCase,
	hub *api.GrowthHub,
	limiter *ratelimit.Limiter,
	ch *pkgch.Client,
	rc *redis.Client,
) xhttp.Handler {
	health := api.NewHealthHandler(l, src)
	if ch != nil {
		health.AddCheck("clickhouse", ch.Health)
	}
	if rc != nil {
		health.AddCheck("redis", func(ctx context.Context) error { return rc.Ping(ctx).Err() })
	}
	return xhttp.Handlers{
		health,
		api.NewDashboardHandler(l, dashboard),
		api.NewCompetitorsHandler(l, competitors),
		api.NewInsightsHandler(l, insights, limiter),
		api.NewReportsHandler(l, reports, limiter),
		hub,
	}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *logger.Logger) *xhttp.Server {
	path := cfg.Metrics.Path
	if cfg.Metrics.Disabled {
		path = ""
	}
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(path),
		xhttp.WithLogger(l.With(logger.String("component", "http"))),
	)
}

func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	hub *api.GrowthHub,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
) *server.App {
	return server.New(cfg, l, srv, hub, collector, consumer, q)
}

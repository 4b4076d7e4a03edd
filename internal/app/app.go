package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/catalog"
	catalogES "github.com/utafrali/catalog-search/internal/catalog/elasticsearch"
	catalogmem "github.com/utafrali/catalog-search/internal/catalog/memory"
	catalogpg "github.com/utafrali/catalog-search/internal/catalog/postgres"
	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/internal/event"
	"github.com/utafrali/catalog-search/internal/feedback"
	feedbackmem "github.com/utafrali/catalog-search/internal/feedback/memory"
	feedbackpg "github.com/utafrali/catalog-search/internal/feedback/postgres"
	handler "github.com/utafrali/catalog-search/internal/handler/http"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/internal/search"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/internal/synonym"
	synonymmem "github.com/utafrali/catalog-search/internal/synonym/memory"
	synonympg "github.com/utafrali/catalog-search/internal/synonym/postgres"
	"github.com/utafrali/catalog-search/migrations"
	"github.com/utafrali/catalog-search/pkg/database"
	"github.com/utafrali/catalog-search/pkg/health"
	"github.com/utafrali/catalog-search/pkg/httpclient"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
	"github.com/utafrali/catalog-search/pkg/middleware"
	"github.com/utafrali/catalog-search/pkg/tracing"
)

// App wires together all dependencies and runs the search service.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	tracker *feedback.Tracker
	admin   *service.AdminService

	consumers       []*pkgkafka.Consumer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tracingShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "catalog-search",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SampleRate:     cfg.TracingSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	app := &App{cfg: cfg, logger: logger, tracingShutdown: tracingShutdown}

	// Postgres backs the catalog read model, feedback and synonyms unless
	// everything runs on memory backends.
	needsPostgres := cfg.CatalogBackend == config.BackendPostgres || cfg.CatalogBackend == config.BackendElasticsearch
	if needsPostgres {
		pgCfg := database.DefaultPostgresConfig()
		pgCfg.Host = cfg.PostgresHost
		pgCfg.Port = cfg.PostgresPort
		pgCfg.User = cfg.PostgresUser
		pgCfg.Password = cfg.PostgresPassword
		pgCfg.DBName = cfg.PostgresDB
		pgCfg.SSLMode = cfg.PostgresSSLMode

		pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.pool = pool

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			app.closePartial()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		database.RegisterPoolMetrics(pool, "search")
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Catalog read model backend.
	var (
		index    catalog.ItemIndex
		taxonomy catalog.Taxonomy
		esIndex  *catalogES.ItemIndex
	)
	switch cfg.CatalogBackend {
	case config.BackendElasticsearch:
		esIndex, err = catalogES.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			app.closePartial()
			return nil, fmt.Errorf("init elasticsearch backend: %w", err)
		}
		index = esIndex
		taxonomy = catalogpg.NewTaxonomy(app.pool)
		logger.Info("elasticsearch catalog backend initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	case config.BackendMemory:
		index = catalogmem.NewItemIndex()
		taxonomy = catalogmem.NewTaxonomy()
		logger.Info("in-memory catalog backend initialized")
	default:
		index = catalogpg.NewItemIndex(app.pool)
		taxonomy = catalogpg.NewTaxonomy(app.pool)
		logger.Info("postgres catalog backend initialized")
	}
	index = catalog.NewRetryingIndex(index, 0, logger)

	// Result cache.
	var cacheStore cache.Store
	if cfg.CacheBackend == config.BackendRedis {
		redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			app.closePartial()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.redis = redisClient
		cacheStore = cache.NewRedisStore(redisClient)
		logger.Info("redis result cache initialized", slog.String("addr", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)))
	} else {
		cacheStore = cache.NewMemoryStore()
		logger.Info("in-memory result cache initialized")
	}

	// Feedback store and async tracker.
	var feedbackStore feedback.Store
	if app.pool != nil {
		feedbackStore = feedbackpg.NewStore(app.pool)
	} else {
		feedbackStore = feedbackmem.NewStore()
	}
	app.tracker = feedback.NewTracker(feedbackStore, cacheStore, logger)

	// Synonyms and query expansion.
	var synonymRepo synonym.Repository
	if app.pool != nil {
		synonymRepo = synonympg.NewRepository(app.pool)
	} else {
		synonymRepo = synonymmem.NewRepository()
	}
	expander := query.NewExpander(synonymRepo, cfg.SynonymCacheTTL, logger)
	synonymService := synonym.NewService(synonymRepo, expander, logger)

	// Services.
	engine := search.NewEngine(index, taxonomy, logger)
	searchService := service.NewSearchService(engine, expander, taxonomy, cacheStore, feedbackStore, app.tracker, service.Config{
		SearchCacheTTL:  cfg.SearchCacheTTL,
		SuggestCacheTTL: cfg.SuggestCacheTTL,
	}, logger)
	app.admin = service.NewAdminService(feedbackStore, cacheStore, logger)
	indexService := service.NewIndexService(index, logger)

	catalogClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			RetryWaitMin:    500 * time.Millisecond,
			RetryWaitMax:    5 * time.Second,
			MaxConnsPerHost: 100,
		}),
		httpclient.DefaultCircuitBreakerConfig("catalog-service"),
		logger,
	)
	reindexService := service.NewReindexService(indexService, catalogClient, cfg.CatalogServiceURL, logger)

	// Kafka consumers keeping the read model in sync with product events.
	if cfg.KafkaSyncEnabled {
		eventConsumer := event.NewConsumer(indexService, logger)
		topics := []string{
			event.TopicProductCreated,
			event.TopicProductUpdated,
			event.TopicProductDeleted,
		}
		for _, topic := range topics {
			c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  "catalog-search",
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6, // 10 MB
			}, eventConsumer.Handle, logger)
			app.consumers = append(app.consumers, c)
		}
		logger.Info("kafka consumers initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("topic_count", len(topics)),
		)
	}

	// Health checks. Postgres is critical; the cache, the index backend and
	// kafka degrade the service but do not take it down.
	healthHandler := health.NewHandler()
	if app.pool != nil {
		healthHandler.RegisterCritical("postgres", app.pool.Ping)
	}
	if app.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		})
	}
	if esIndex != nil {
		healthHandler.RegisterNonCritical("elasticsearch", esIndex.Ping)
	}
	if cfg.KafkaSyncEnabled {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterDeps{
		Search:   searchService,
		Admin:    app.admin,
		Indexer:  indexService,
		Reindex:  reindexService,
		Synonyms: synonymService,
		Health:   healthHandler,
		CORS:     corsCfg,
	}, logger)

	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP server, Kafka consumers and the retention janitor,
// blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go a.admin.RunRetentionJanitor(ctx, a.cfg.HistoryRetentionDays, a.cfg.RetentionInterval)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Let in-flight feedback writes land before closing the stores.
	a.tracker.Wait()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.tracingShutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closePartial releases connections acquired before a constructor failure.
func (a *App) closePartial() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

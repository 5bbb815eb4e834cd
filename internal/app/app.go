package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/timiFoxtrot/main-product-store/internal/auth"
	"github.com/timiFoxtrot/main-product-store/internal/config"
	"github.com/timiFoxtrot/main-product-store/internal/event"
	handler "github.com/timiFoxtrot/main-product-store/internal/handler/http"
	"github.com/timiFoxtrot/main-product-store/internal/repository"
	esrepo "github.com/timiFoxtrot/main-product-store/internal/repository/elasticsearch"
	memrepo "github.com/timiFoxtrot/main-product-store/internal/repository/memory"
	mongorepo "github.com/timiFoxtrot/main-product-store/internal/repository/mongo"
	"github.com/timiFoxtrot/main-product-store/internal/repository/postgres"
	redisrepo "github.com/timiFoxtrot/main-product-store/internal/repository/redis"
	"github.com/timiFoxtrot/main-product-store/internal/service"
	"github.com/timiFoxtrot/main-product-store/internal/storage"
	"github.com/timiFoxtrot/main-product-store/internal/storage/cloudinary"
	"github.com/timiFoxtrot/main-product-store/internal/storage/memory"
	"github.com/timiFoxtrot/main-product-store/migrations"
	"github.com/timiFoxtrot/main-product-store/pkg/database"
	"github.com/timiFoxtrot/main-product-store/pkg/health"
	"github.com/timiFoxtrot/main-product-store/pkg/httpclient"
	pkgkafka "github.com/timiFoxtrot/main-product-store/pkg/kafka"
	"github.com/timiFoxtrot/main-product-store/pkg/middleware"
	"github.com/timiFoxtrot/main-product-store/pkg/tracing"
)

const serviceName = "product-store"

// App wires together all dependencies and runs the product store.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	mongo          *mongo.Client
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// Anything opened before a failure is closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	// Tracing.
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	if a.tracerShutdown, err = tracing.Init(ctx, tcfg); err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	healthHandler := health.NewHandler(3 * time.Second)

	// PostgreSQL holds users and categories, and products by default.
	pgCfg := database.DefaultPostgresConfig(cfg.DatabaseURL)
	pgCfg.MaxConns = cfg.DBMaxConns
	pgCfg.MinConns = cfg.DBMinConns
	pgCfg.MaxConnLifetime = cfg.DBMaxConnLifetime
	pgCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	if a.pool, err = database.NewPostgresPool(ctx, pgCfg, logger); err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL")
	if err = database.RegisterPoolMetrics(reg, a.pool, "postgres"); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	if err = database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}
	pool := a.pool
	healthHandler.Register("postgres", func(ctx context.Context) error { return pool.Ping(ctx) })

	userRepo := postgres.NewUserRepository(a.pool)

	var categoryRepo repository.CategoryRepository = postgres.NewCategoryRepository(a.pool)
	if cfg.CategoryCacheEnabled {
		a.redis, err = database.NewRedisClient(ctx, database.RedisConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		rdb := a.redis
		healthHandler.Register("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		categoryRepo = redisrepo.NewCategoryCache(categoryRepo, a.redis, cfg.CategoryCacheTTL, logger)
		logger.Info("category cache enabled", slog.String("addr", cfg.RedisAddr), slog.Duration("ttl", cfg.CategoryCacheTTL))
	}

	productRepo, err := a.productRepository(ctx, healthHandler)
	if err != nil {
		return nil, err
	}
	if cfg.SearchIndexEnabled() {
		if productRepo, err = a.searchIndex(ctx, productRepo, healthHandler); err != nil {
			return nil, err
		}
	}

	events, err := a.eventPublisher(reg, healthHandler)
	if err != nil {
		return nil, err
	}

	blobs, err := newBlobStore(cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	if err = service.RegisterMetrics(reg); err != nil {
		return nil, fmt.Errorf("register service metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg, serviceName)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	// Build the dependency graph.
	upload := uploadConfig(cfg)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTIssuer)
	userService := service.NewUserService(userRepo, jwtManager, logger)
	categoryService := service.NewCategoryService(categoryRepo, logger)
	productService := service.NewProductService(productRepo, categoryRepo, userRepo, blobs, events, logger, upload)

	if cfg.SeedAdmin() {
		if err = userService.SeedAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	}

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Products:       productService,
		Categories:     categoryService,
		Users:          userService,
		Authenticator:  auth.NewAuthenticator(jwtManager, userRepo),
		Health:         healthHandler,
		Logger:         logger,
		Metrics:        httpMetrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		RateLimiter:    a.limiter,
		CORS:           corsConfig(cfg),
		Upload:         upload,
		LoginRequests:  cfg.LoginRateLimit,
		LoginWindow:    cfg.LoginRateInterval,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// productRepository picks the product backend named by PRODUCT_STORE.
func (a *App) productRepository(ctx context.Context, h *health.Handler) (repository.ProductRepository, error) {
	switch a.cfg.ProductStore {
	case config.ProductStoreMemory:
		a.logger.Warn("products kept in memory and lost on restart")
		return memrepo.NewProductRepository(), nil
	case config.ProductStoreMongo:
	default:
		return postgres.NewProductRepository(a.pool), nil
	}

	client, err := mongorepo.Connect(ctx, a.cfg.MongoURI, 10*time.Second)
	if err != nil {
		return nil, err
	}
	a.mongo = client

	coll := client.Database(a.cfg.MongoDatabase).Collection(mongorepo.ProductsCollection)
	if err := mongorepo.EnsureIndexes(ctx, coll); err != nil {
		return nil, err
	}
	h.Register("mongodb", func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) })
	a.logger.Info("products stored in MongoDB", slog.String("database", a.cfg.MongoDatabase))
	return mongorepo.NewProductRepository(coll), nil
}

// searchIndex wraps primary so text searches are answered by
// Elasticsearch. A freshly created index is filled from primary.
func (a *App) searchIndex(ctx context.Context, primary repository.ProductRepository, h *health.Handler) (repository.ProductRepository, error) {
	idx, err := esrepo.NewIndex(a.cfg.ElasticsearchURL, a.cfg.ElasticsearchIndex, a.logger)
	if err != nil {
		return nil, err
	}
	created, err := idx.EnsureIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure search index: %w", err)
	}
	h.Register("elasticsearch", idx.Ping)

	repo := esrepo.NewProductRepository(primary, idx, a.logger)
	if created {
		n, err := repo.Reindex(ctx)
		if err != nil {
			return nil, err
		}
		a.logger.Info("search index built", slog.String("index", a.cfg.ElasticsearchIndex), slog.Int("products", n))
	}
	return repo, nil
}

// eventPublisher returns a Kafka-backed publisher, or a no-op one when Kafka
// is disabled.
func (a *App) eventPublisher(reg prometheus.Registerer, h *health.Handler) (service.EventPublisher, error) {
	if !a.cfg.KafkaEnabled {
		a.logger.Info("kafka disabled, catalog events are discarded")
		return event.Noop{}, nil
	}
	if err := pkgkafka.RegisterMetrics(reg); err != nil {
		return nil, fmt.Errorf("register kafka metrics: %w", err)
	}

	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	producer := a.producer
	h.Register("kafka", func(ctx context.Context) error { return producer.Ping(ctx) })
	a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	return event.NewProducer(a.producer, a.logger), nil
}

// newBlobStore returns the image store named by BLOB_STORE.
func newBlobStore(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (storage.Storage, error) {
	if cfg.BlobStore != config.BlobStoreCloudinary {
		logger.Warn("using in-memory blob store, uploaded images are lost on restart")
		return memory.New(cfg.BlobPublicBaseURL), nil
	}

	if err := httpclient.RegisterMetrics(reg); err != nil {
		return nil, fmt.Errorf("register http client metrics: %w", err)
	}
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.UploadTimeout
	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultCircuitBreakerConfig("cloudinary"),
		logger,
	)

	return cloudinary.New(cloudinary.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryFolder,
		BaseURL:   cfg.CloudinaryBaseURL,
	}, client, logger), nil
}

func uploadConfig(cfg *config.Config) service.UploadConfig {
	upload := service.DefaultUploadConfig()
	upload.MaxFiles = cfg.UploadMaxFiles
	upload.MaxFileBytes = cfg.UploadMaxFileBytes
	upload.Timeout = cfg.UploadTimeout
	if len(cfg.UploadAllowedMIMEList) > 0 {
		upload.AllowedTypes = cfg.UploadAllowedMIMEList
	}
	return upload
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(cfg.CORSOrigins) > 0 {
		c.AllowedOrigins = cfg.CORSOrigins
	}
	return c
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops all components in order: the HTTP server drains in-flight
// requests, then spans are flushed, then the producer and the stores close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases everything except the HTTP server. Fields that
// were never opened are skipped.
func (a *App) closeResources() error {
	var errs []error

	if a.limiter != nil {
		a.limiter.Close()
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Error("mongo disconnect error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}

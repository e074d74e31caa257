package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/config"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/event"
	handler "github.com/utafrali/EcommerceGo/mediapipeline/internal/handler/http"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/lease"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/pipeline"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/repository"
	repomemory "github.com/utafrali/EcommerceGo/mediapipeline/internal/repository/memory"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/repository/postgres"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/service"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage/httpstore"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage/memory"
	miniostore "github.com/utafrali/EcommerceGo/mediapipeline/internal/storage/minio"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/transform"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/uploader"
	"github.com/utafrali/EcommerceGo/mediapipeline/migrations"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/database"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/health"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/httpclient"
	pkgkafka "github.com/utafrali/EcommerceGo/mediapipeline/pkg/kafka"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/middleware"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/tracing"
)

// objectStore is a storage backend that can report its own health.
type objectStore interface {
	storage.Storage
	Ping(ctx context.Context) error
}

// App wires together all dependencies and runs the media pipeline service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	drafts         *service.DraftService
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	// Manifest repository.
	repo, err := a.newRepository(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Object store and upload client.
	store, err := a.newStore(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	healthHandler.Register("object_store", store.Ping)
	client := uploader.New(store, cfg.UploadTimeout, logger)

	// Product leases.
	locker, err := a.newLocker(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Initialize Kafka producer.
	a.producer = pkgkafka.NewProducer(cfg.Kafka, logger)
	healthHandler.Register("kafka", a.producer.Ping)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))

	// Build the dependency graph.
	eventProducer := event.NewProducer(a.producer, logger)
	a.drafts = service.NewDraftService(repo, client, eventProducer, locker, pipeline.Config{
		Limits:           cfg.Limits(),
		Transform:        transform.Config{JPEGQuality: cfg.JPEGQuality},
		PurgeConcurrency: cfg.PurgeConcurrency,
	}, logger)

	// HTTP router.
	router := handler.NewRouter(a.drafts, healthHandler, handler.RouterOptions{
		Limiter: middleware.NewRateLimiter(handler.ServiceName, cfg.RateLimit, logger),
		Auth:    middleware.NewAuth(cfg.Auth),
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg.UploadTimeout),
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// baseWriteTimeout is the response budget of a request that waits on no
// remote upload.
const baseWriteTimeout = 15 * time.Second

// writeTimeout gives a synchronous edit commit, which waits for one remote
// upload, enough time to write its response.
func writeTimeout(uploadTimeout time.Duration) time.Duration {
	return baseWriteTimeout + max(uploadTimeout, 0)
}

func (a *App) newRepository(ctx context.Context, healthHandler *health.Handler) (repository.ManifestRepository, error) {
	if a.cfg.Repository == config.RepositoryMemory {
		a.logger.Warn("using in-memory manifest repository; manifests are lost on restart")
		return repomemory.NewManifestRepository(), nil
	}

	database.SetSlowQueryLogging(a.cfg.SlowQueryThreshold, a.logger)

	pool, err := database.NewPostgresPool(ctx, &a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.Postgres.Host),
		slog.Int("port", a.cfg.Postgres.Port),
		slog.String("database", a.cfg.Postgres.DBName),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		a.logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return postgres.NewManifestRepository(pool), nil
}

func (a *App) newLocker(ctx context.Context, healthHandler *health.Handler) (lease.Locker, error) {
	if a.cfg.Locker != config.LockerRedis {
		a.logger.Info("using in-process product leases")
		return lease.NewLocal(a.cfg.DraftLeaseTTL), nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis.Addr()))

	locker := lease.NewRedis(client, a.cfg.DraftLeaseTTL)
	healthHandler.Register("redis", locker.Ping)
	return locker, nil
}

func (a *App) newStore(ctx context.Context) (objectStore, error) {
	switch a.cfg.StorageBackend {
	case config.StorageMinIO:
		store, err := miniostore.New(a.cfg.MinIO, a.logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("prepare minio bucket: %w", err)
		}
		a.logger.Info("using minio object store",
			slog.String("endpoint", a.cfg.MinIO.Endpoint),
			slog.String("bucket", a.cfg.MinIO.Bucket),
		)
		return store, nil

	case config.StorageHTTP:
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(a.cfg.HTTPClient),
			httpclient.DefaultCircuitBreakerConfig("media-api"),
			a.logger,
		)
		a.logger.Info("using media API object store", slog.String("base_url", a.cfg.MediaAPI.BaseURL))
		return httpstore.New(client, a.cfg.MediaAPI, a.logger), nil

	default:
		baseURL := a.cfg.BaseURLOrDefault()
		a.logger.Warn("using in-memory object store", slog.String("base_url", baseURL))
		return memory.New(baseURL), nil
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Close open drafts; in-flight uploads are canceled.
	if err := a.drafts.Close(shutdownCtx); err != nil {
		a.logger.Error("draft service close error", slog.String("error", err.Error()))
	}

	a.closeResources()

	a.logger.Info("application shutdown complete")
	return nil
}

// closeResources releases the producer, the pool, the Redis client and the
// tracer, whichever were created.
func (a *App) closeResources() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}

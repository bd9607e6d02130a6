package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/shopsync/pkg/database"
	"github.com/utafrali/shopsync/pkg/health"
	"github.com/utafrali/shopsync/pkg/httpclient"
	pkgkafka "github.com/utafrali/shopsync/pkg/kafka"
	"github.com/utafrali/shopsync/pkg/middleware"
	"github.com/utafrali/shopsync/pkg/tracing"
	"github.com/utafrali/shopsync/services/storefront/internal/config"
	"github.com/utafrali/shopsync/services/storefront/internal/event"
	handler "github.com/utafrali/shopsync/services/storefront/internal/handler/http"
	"github.com/utafrali/shopsync/services/storefront/internal/localstore"
	"github.com/utafrali/shopsync/services/storefront/internal/remote"
	"github.com/utafrali/shopsync/services/storefront/internal/repository"
	"github.com/utafrali/shopsync/services/storefront/internal/repository/memory"
	pgrepo "github.com/utafrali/shopsync/services/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/shopsync/services/storefront/internal/repository/redis"
	"github.com/utafrali/shopsync/services/storefront/internal/service"
	"github.com/utafrali/shopsync/services/storefront/internal/session"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront agent.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rdb      *redis.Client
	pool     *pgxpool.Pool
	producer *pkgkafka.Producer

	store     repository.Store
	wishlist  *service.WishlistService
	forwarder *event.Forwarder

	traceShutdown tracing.ShutdownFunc
	httpServer    *http.Server
	background    sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	traceCfg := tracing.DefaultConfig(serviceName)
	traceCfg.Environment = cfg.Environment
	traceCfg.OTLPEndpoint = cfg.OTELEndpoint
	traceCfg.SampleRate = cfg.OTELSampleRate
	traceCfg.Enabled = cfg.OTELEnabled
	shutdown, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.traceShutdown = shutdown

	healthHandler := health.NewHandler(serviceName)

	// Local store.
	store, err := a.openStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.store = store

	// Remote wishlist client: retries inside a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.RemoteTimeout
	httpCfg.MaxRetries = cfg.RemoteMaxRetries
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("user-service"),
		logger,
	)
	wishlistClient := remote.NewHTTPWishlistClient(cfg.UserServiceURL, breaker, logger)

	// Build the dependency graph.
	adapter := localstore.NewAdapter(store, logger)
	broadcaster := event.NewBroadcaster(logger)
	provider := session.NewProvider(adapter, broadcaster, logger)

	reconcileCfg := service.ReconcilerConfig{
		Delay:      cfg.ReconcileDelay(),
		RatePerSec: cfg.ReconcileRatePerSec,
		Burst:      cfg.ReconcileBurst,
	}
	a.wishlist = service.NewWishlistService(adapter, provider, wishlistClient, broadcaster, reconcileCfg, logger)
	cartService := service.NewCartService(adapter, broadcaster, logger)

	// Kafka forwarding of broadcaster events.
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.forwarder = event.NewForwarder(a.producer, uuid.NewString(), cartService.Summary, logger)
		a.forwarder.Attach(broadcaster)
		healthHandler.Register("kafka", a.producer.Ping)
		logger.Info("kafka forwarder initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Subscribers are attached; restore persisted state.
	a.wishlist.Load(ctx)
	cartService.Load(ctx)
	logger.Info("local state restored",
		slog.Int("wishlist_count", a.wishlist.Count()),
		slog.Int("cart_lines", len(cartService.Lines())),
	)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.AllowedOrigins

	var pprofCIDRs []string
	if cfg.PprofEnabled {
		pprofCIDRs = middleware.DefaultPprofCIDRs
	}

	router := handler.NewRouter(handler.RouterDeps{
		Wishlist:   a.wishlist,
		Cart:       cartService,
		Session:    provider,
		Health:     healthHandler,
		Logger:     logger,
		CORS:       corsCfg,
		PprofCIDRs: pprofCIDRs,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// openStore connects the configured backend and registers its health check.
func (a *App) openStore(ctx context.Context, h *health.Handler) (repository.Store, error) {
	cfg := a.cfg

	switch cfg.StoreBackend {
	case config.StoreRedis:
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Host = cfg.RedisHost
		redisCfg.Port = cfg.RedisPort
		redisCfg.Password = cfg.RedisPass
		redisCfg.DB = cfg.RedisDB

		rdb, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		a.logger.Info("connected to Redis",
			slog.String("addr", redisCfg.Addr()),
			slog.Int("db", cfg.RedisDB),
		)

		store := redisrepo.NewStore(rdb, cfg.Namespace, a.logger)
		h.Register("redis", store.Ping)
		return store, nil

	case config.StorePostgres:
		pgCfg := database.DefaultPostgresConfig()
		pgCfg.Host = cfg.PostgresHost
		pgCfg.Port = cfg.PostgresPort
		pgCfg.User = cfg.PostgresUser
		pgCfg.Password = cfg.PostgresPass
		pgCfg.DBName = cfg.PostgresDB
		pgCfg.SSLMode = cfg.PostgresSSL

		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.String("database", cfg.PostgresDB),
		)

		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}

		store := pgrepo.NewStore(pool, cfg.Namespace)
		if err := store.Migrate(ctx, a.logger); err != nil {
			return nil, fmt.Errorf("migrate local storage: %w", err)
		}
		h.Register("postgres", store.Ping)
		return store, nil

	default:
		a.logger.Info("using in-memory local store")
		return memory.NewBackend().Open(), nil
	}
}

// Run starts the HTTP server and background workers and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	if a.forwarder != nil {
		a.background.Add(1)
		go func() {
			defer a.background.Done()
			a.forwarder.Run(workCtx)
		}()
	}

	if w, ok := a.store.(repository.Watcher); ok {
		a.background.Add(1)
		go func() {
			defer a.background.Done()
			if err := a.wishlist.WatchStorage(workCtx, w); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("storage watch stopped", slog.String("error", err.Error()))
			}
		}()
	}

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
		stopWork()
		_ = a.Shutdown()
		return err
	}

	stopWork()
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

	// Pending reconciliation is dropped; in-flight remote calls are canceled.
	a.wishlist.Close()

	// The forwarder drains its queue once its context is done.
	a.background.Wait()
	if a.forwarder != nil {
		a.forwarder.Close()
	}

	a.closeResources()

	if err := a.traceShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

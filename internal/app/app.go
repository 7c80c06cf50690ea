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
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/gateway"
	gatewayhttp "github.com/utafrali/storefront/internal/gateway/http"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/invalidation"
	"github.com/utafrali/storefront/internal/notify"
	pgrepo "github.com/utafrali/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront BFF.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	notifier       *notify.BestEffort
	sessions       *session.Manager
	limiter        *middleware.RateLimiter
	shutdownTracer func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Tracing.
	tracingCfg := cfg.Tracing
	tracingCfg.ServiceName = serviceName
	tracingCfg.Environment = cfg.Environment
	shutdownTracer, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	// PostgreSQL holds the voucher table.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.String("database", cfg.Postgres.DBName),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		a.cleanup()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := prometheus.Register(database.NewPoolStatsCollector(pool, serviceName)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			a.cleanup()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
	}

	// Redis caches voucher lookups.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	logger.Info("connected to Redis",
		slog.String("addr", cfg.Redis.Addr()),
		slog.Int("db", cfg.Redis.DB),
	)

	vouchers := redisrepo.NewCachedVoucherRepository(
		pgrepo.NewVoucherRepository(pool), rdb, cfg.VoucherCacheTTL, logger,
	)

	// Downstream gateways. Commands are never retried; the shopper decides.
	clientCfg := httpclient.NoRetryConfig(cfg.GatewayTimeout)
	breaker := func(name string) *httpclient.CircuitBreakerClient {
		return httpclient.NewCircuitBreakerClient(
			httpclient.New(clientCfg),
			httpclient.DefaultCircuitBreakerConfig(name),
			logger,
		)
	}
	cartClient := gatewayhttp.NewCartClient(breaker("cart-service"), cfg.CartServiceURL)
	wishlistClient := gatewayhttp.NewWishlistClient(breaker("user-service"), cfg.UserServiceURL)
	recoClient := gatewayhttp.NewRecommendationClient(breaker("recommendation-service"), cfg.RecommendationServiceURL)

	var refresher gateway.RefreshRequester = recoClient
	if cfg.RefreshTransport == config.RefreshTransportKafka {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		refresher = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	recommendations := gateway.CombineRecommendations(refresher, recoClient)

	// Session state.
	a.notifier = notify.NewBestEffort(cfg.RefreshTimeout, logger)
	a.sessions = session.NewManager(session.Dependencies{
		Cart:            cartClient,
		Wishlist:        wishlistClient,
		Recommendations: recommendations,
		Vouchers:        vouchers,
		Bus:             invalidation.NewBus(logger),
		Notifier:        a.notifier,
		Clock:           invalidation.SystemClock,
		Shipping:        cfg.Shipping(),
		Feeds:           cfg.Feeds(),
		FeedLimit:       cfg.RecommendationLimit,
		Policy: invalidation.Policy{
			StalenessWindow: cfg.StalenessWindow,
			SettleDelay:     cfg.SettleDelay,
		},
		IdleTTL: cfg.SessionIdleTTL,
		Logger:  logger,
	})

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute, middleware.ByUserID, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if a.producer != nil {
		healthHandler.Register("kafka", a.producer.Ping)
	}

	router := handler.NewRouter(a.sessions, healthHandler, a.limiter, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

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
		a.cleanup()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. In-flight requests finish first, then the
// session state is dropped and queued refresh requests get a bounded chance to drain.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.sessions.Close()

	if err := a.notifier.Close(shutdownCtx); err != nil {
		a.logger.Warn("refresh requests still in flight at shutdown", slog.String("error", err.Error()))
	}

	a.limiter.Close()
	a.cleanup()

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// cleanup releases the connections opened so far.
func (a *App) cleanup() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

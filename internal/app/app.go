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

	"github.com/Noobiez16/SubliGraphic/internal/catalog"
	"github.com/Noobiez16/SubliGraphic/internal/config"
	"github.com/Noobiez16/SubliGraphic/internal/event"
	handler "github.com/Noobiez16/SubliGraphic/internal/handler/http"
	"github.com/Noobiez16/SubliGraphic/internal/payment"
	"github.com/Noobiez16/SubliGraphic/internal/payment/gateway"
	"github.com/Noobiez16/SubliGraphic/internal/payment/mock"
	"github.com/Noobiez16/SubliGraphic/internal/service"
	"github.com/Noobiez16/SubliGraphic/internal/store"
	"github.com/Noobiez16/SubliGraphic/internal/store/memory"
	pgstore "github.com/Noobiez16/SubliGraphic/internal/store/postgres"
	redisstore "github.com/Noobiez16/SubliGraphic/internal/store/redis"
	"github.com/Noobiez16/SubliGraphic/pkg/database"
	"github.com/Noobiez16/SubliGraphic/pkg/health"
	"github.com/Noobiez16/SubliGraphic/pkg/httpclient"
	pkgkafka "github.com/Noobiez16/SubliGraphic/pkg/kafka"
	"github.com/Noobiez16/SubliGraphic/pkg/middleware"
	"github.com/Noobiez16/SubliGraphic/pkg/tracing"
)

const serviceName = "storefront-service"

// onlineMethods are routed to the configured payment provider.
var onlineMethods = []payment.Method{
	payment.MethodPayPal,
	payment.MethodATHMovil,
	payment.MethodApplePay,
	payment.MethodGooglePay,
}

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	tracerShutdown tracing.ShutdownFunc
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	stores, err := a.openStore(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	healthHandler.Register("store", stores.Ping)

	var publisher event.EventPublisher = event.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		}, logger)
		publisher = a.producer
		healthHandler.Register("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("no kafka brokers configured, storefront events are discarded")
	}

	payments, err := a.buildPayments()
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Build the dependency graph.
	svc := service.NewStorefrontService(service.Deps{
		Stores:   stores,
		Catalog:  catalog.New(),
		Payments: payments,
		Events:   event.NewProducer(publisher, logger),
		Logger:   logger,
	}, service.Config{
		Currency:            cfg.Currency,
		MaxQuantityPerEntry: cfg.MaxQuantityPerEntry,
		MaxEntries:          cfg.MaxEntries,
		PaymentTimeout:      cfg.PaymentTimeout(),
	})

	router := handler.NewRouter(svc, healthHandler, logger, handler.RouterConfig{
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		RequestTimeout: cfg.RequestTimeout(),
		MaxDesignBytes: cfg.MaxDesignBytes,
	})

	// Checkout waits on the payment provider, so writes get the payment
	// deadline on top of the request deadline.
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + cfg.PaymentTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// openStore connects the configured per-shopper storage backend.
func (a *App) openStore(ctx context.Context) (store.Scoper, error) {
	cfg := a.cfg
	limits := store.Limits{Capacity: cfg.StoreCapacityBytes, MaxValueSize: cfg.StoreMaxValueBytes}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPass,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		a.logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return store.Instrument(redisstore.New(rdb, redisstore.Config{
			KeyPrefix: cfg.RedisKeyPrefix,
			TTL:       cfg.StoreTTL(),
			Limits:    limits,
		}), config.BackendRedis), nil

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			URL:             cfg.PostgresURL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
			MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		if err := database.RunMigrations(ctx, pool, pgstore.Migrations(), a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		prometheus.MustRegister(database.NewPoolStatsCollector(pool, serviceName))
		tracer := database.QueryTracer{
			System:        "postgresql",
			SlowThreshold: time.Duration(cfg.SlowQueryThresholdMs) * time.Millisecond,
			Logger:        a.logger,
		}
		return store.Instrument(pgstore.New(pool, limits, tracer), config.BackendPostgres), nil

	default:
		a.logger.Warn("using in-memory store, carts do not survive a restart")
		return store.Instrument(memory.New(limits), config.BackendMemory), nil
	}
}

// buildPayments routes every online method to the configured provider.
// Bank reference is always available and needs no provider.
func (a *App) buildPayments() (*payment.Registry, error) {
	cfg := a.cfg
	var provider payment.Provider
	switch cfg.PaymentProvider {
	case config.ProviderGateway:
		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = cfg.PaymentTimeout()
		provider = gateway.New(gateway.Config{
			BaseURL: cfg.PaymentGatewayURL,
			APIKey:  cfg.PaymentGatewayKey,
			HTTP:    httpCfg,
			Breaker: httpclient.CircuitBreakerConfig{
				MaxRequests:  cfg.CBMaxRequests,
				Interval:     time.Duration(cfg.CBInterval) * time.Second,
				Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
				FailureRatio: cfg.CBFailureRatio,
				MinRequests:  cfg.CBMinRequests,
			},
		}, a.logger)
	default:
		provider = mock.NewProvider(mock.Outcome{
			Delay: time.Duration(cfg.PaymentMockDelayMs) * time.Millisecond,
		})
	}

	reg := payment.NewRegistry()
	for _, m := range onlineMethods {
		if err := reg.Register(m, provider); err != nil {
			return nil, fmt.Errorf("register payment method %s: %w", m, err)
		}
	}
	a.logger.Info("payment provider configured",
		slog.String("provider", provider.Name()),
		slog.Any("methods", reg.Methods()),
	)
	return reg, nil
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
		a.closeResources()
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

	a.closeResources()

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
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}

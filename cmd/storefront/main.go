package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/urbenshop/storefront/internal/cart"
	"github.com/urbenshop/storefront/internal/catalog"
	"github.com/urbenshop/storefront/internal/checkout"
	"github.com/urbenshop/storefront/internal/handlers"
	"github.com/urbenshop/storefront/internal/kvstore"
	"github.com/urbenshop/storefront/internal/platform/config"
	pfirestore "github.com/urbenshop/storefront/internal/platform/firestore"
	"github.com/urbenshop/storefront/internal/platform/metrics"
	"github.com/urbenshop/storefront/internal/platform/observability"
	"github.com/urbenshop/storefront/internal/validation"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	products, err := loadCatalog(cfg.Catalog)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err), zap.String("file", cfg.Catalog.File))
	}

	appMetrics := metrics.New()
	events := observability.EventLogger(logger)

	storage, closeStorage, err := openStorage(ctx, cfg, logger, events)
	if err != nil {
		logger.Fatal("failed to initialise cart storage", zap.Error(err), zap.String("backend", cfg.Storage.Backend))
	}
	defer closeStorage()
	storage = kvstore.Instrument(storage, appMetrics)

	policy, err := cart.ParseQuantityPolicy(cfg.Cart.ZeroQuantity)
	if err != nil {
		logger.Fatal("invalid cart configuration", zap.Error(err))
	}
	pricing := cart.Pricing{TaxRate: cfg.Cart.TaxRate, Shipping: cfg.Cart.Shipping}

	sessions, err := handlers.NewCartSessions(cart.StoreDeps{
		Storage: storage,
		Catalog: products,
		Metrics: appMetrics,
		Key:     cfg.Cart.StorageKey,
		Pricing: &pricing,
		Policy:  policy,
		Logger:  events,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart sessions", zap.Error(err))
	}

	validator := validation.New(nil)
	checkoutService, err := checkout.NewService(checkout.ServiceDeps{
		Validator: validator,
		Metrics:   appMetrics,
		Logger:    events,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})
	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		handlers.SessionMiddleware(handlers.SessionOptions{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.Secure,
			MaxAge:     cfg.Session.MaxAge,
		}),
		observability.RequestLoggerMiddleware(),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("storage", func(ctx context.Context) error {
			return kvstore.Ping(ctx, storage)
		}),
	)

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithMetricsHandler(appMetrics.Handler()))
	opts = append(opts, handlers.WithProductRoutes(handlers.NewProductHandlers(products).Routes))
	opts = append(opts, handlers.WithCartRoutes(handlers.NewCartHandlers(sessions, products).Routes))
	opts = append(opts, handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(sessions, checkoutService, products).Routes))
	opts = append(opts, handlers.WithContactRoutes(handlers.NewContactHandlers(validator, events).Routes))
	opts = append(opts, handlers.WithContactMiddlewares(handlers.RateLimitMiddleware(cfg.RateLimits.ContactPerMinute, events)))

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Backend))
	go func() {
		serverLogger.Info("urbenshop storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

// openStorage builds the configured backend and returns its cleanup function.
func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger, events observability.EventFunc) (kvstore.Storage, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		redis.SetLogger(observability.NewPrintfAdapter(logger.Named("redis")))
		store := kvstore.NewRedis(cfg.Redis.Addr,
			kvstore.WithTTL(cfg.Redis.TTL),
			kvstore.WithRedisLogger(events),
		)
		initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := store.Initialize(initCtx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}, nil

	case config.BackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, nil, err
		}
		return kvstore.NewFirestore(provider, cfg.Firestore.Collection), func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Close(closeCtx); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}, nil

	default:
		return kvstore.NewMemory(
			kvstore.WithQuota(cfg.Storage.QuotaBytes),
			kvstore.WithIdleTTL(cfg.Storage.IdleTTL),
		), func() {}, nil
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	serviceName    = "cron-worker"
	retentionEvery = time.Hour
)

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}

	if err := run(boot); err != nil {
		boot.Error(context.Background(), "cron worker exited", err)
		os.Exit(1)
	}
}

func run(boot *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeWith(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeWith(logg, "redis", redisClient.Close)

	service, err := buildScheduler(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Checkout.ReconcileInterval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// buildScheduler registers the reconcile sweep on every tick and outbox
// retention hourly, behind a single cluster-wide lock.
func buildScheduler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)

	processor, err := payments.NewProcessor(payments.NewRepository(gormDB), cfg.Payments, metrics.NewPaymentMetrics(prometheus.DefaultRegisterer), logg)
	if err != nil {
		return nil, fmt.Errorf("payment processor: %w", err)
	}

	reconciler, err := checkout.NewReconciler(checkout.ReconcilerDeps{
		Tx:       dbClient,
		Sagas:    checkout.NewRepository(gormDB),
		Orders:   orders.NewRepository(gormDB),
		Cart:     cart.NewRepository(gormDB),
		Refunder: processor,
		Outbox:   outbox.NewService(outboxRepo, logg),
		Config:   cfg.Checkout,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout reconciler: %w", err)
	}

	reconcileJob, err := cron.NewCheckoutReconcileJob(cron.CheckoutReconcileJobParams{Logger: logg, Reconciler: reconciler})
	if err != nil {
		return nil, fmt.Errorf("reconcile job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Eventing.OutboxRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}

	registry := cron.NewRegistry()
	if err := registry.Add(reconcileJob, 0); err != nil {
		return nil, err
	}
	if err := registry.Add(retentionJob, retentionEvery); err != nil {
		return nil, err
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, "sf:cron-worker:lock:"+env, 0)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Checkout.ReconcileInterval,
	})
}

func closeWith(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}

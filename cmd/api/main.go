package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/storefront-backend/api/controllers/analytics"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/analytics/query"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/internal/search"
	"github.com/angelmondragon/storefront-backend/internal/uploads"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	usersRepo := users.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)

	authService, err := auth.NewService(auth.ServiceParams{
		Users:              usersRepo,
		Tx:                 dbClient,
		Outbox:             outboxService,
		SessionManager:     sessionManager,
		JWTConfig:          cfg.JWT,
		PasswordConfig:     cfg.Password,
		VerificationConfig: cfg.Verification,
		Logger:             logg,
	})
	requireResource(ctx, logg, "auth service", err)

	processor, err := payments.NewProcessor(payments.NewRepository(gormDB), cfg.Payments, metrics.NewPaymentMetrics(registry), logg)
	requireResource(ctx, logg, "payment processor", err)

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, processor, logg)
	requireResource(ctx, logg, "orders service", err)

	usersService, err := users.NewService(usersRepo, ordersService)
	requireResource(ctx, logg, "users service", err)

	catalogService, err := catalog.NewService(catalogRepo, usersRepo)
	requireResource(ctx, logg, "catalog service", err)

	cartService, err := cart.NewService(cartRepo, catalogRepo, usersRepo)
	requireResource(ctx, logg, "cart service", err)

	reviewsService, err := reviews.NewService(reviews.NewRepository(gormDB), catalogRepo, usersRepo)
	requireResource(ctx, logg, "reviews service", err)

	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:        dbClient,
		Sagas:     checkout.NewRepository(gormDB),
		Cart:      cartRepo,
		Orders:    ordersRepo,
		Products:  catalogRepo,
		Users:     usersRepo,
		Processor: processor,
		Outbox:    outboxService,
		Locks:     redisClient,
		Config:    cfg.Checkout,
		Metrics:   metrics.NewCheckoutMetrics(registry),
		Logger:    logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	searchService, err := search.NewService(catalogRepo)
	requireResource(ctx, logg, "search service", err)

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(ctx, "error closing gcs client", err)
		}
	}()

	uploadsService, err := uploads.NewService(gcsClient, gcsClient.DefaultBucket(), cfg.Uploads, logg)
	requireResource(ctx, logg, "uploads service", err)

	readiness := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
		"gcs":   gcsClient,
	}

	// BigQuery only backs the admin report; the API still serves without it.
	var reports analyticscontrollers.ReportService
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Warn(ctx, fmt.Sprintf("bigquery unavailable, analytics report disabled: %v", err))
	} else {
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "error closing bigquery client", err)
			}
		}()
		ordersReport, err := query.NewOrdersService(bqClient, cfg.GCP.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.OrderEventsTable)
		requireResource(ctx, logg, "analytics report service", err)
		reports = ordersReport
	}

	handler := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Store:       redisClient,
		Sessions:    sessionManager,
		Readiness:   readiness,
		Gatherer:    registry,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
		Auth:        authService,
		Users:       usersService,
		Catalog:     catalogService,
		Cart:        cartService,
		Reviews:     reviewsService,
		Orders:      ordersService,
		Checkout:    checkoutService,
		Payments:    processor,
		Search:      searchService,
		Uploads:     uploadsService,
		Analytics:   reports,
	})

	addr := ":" + env.First(cfg.App.Port, "PORT")
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(runCtx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

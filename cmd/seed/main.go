package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})
	_ = godotenv.Load()

	path := flag.String("file", "cmd/seed/catalog.yaml", "catalog fixture to load")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"file": *path,
	})

	f, err := os.Open(*path)
	requireResource(logg, "fixture file", err)
	defer f.Close()

	fixture, err := LoadFixture(f)
	requireResource(logg, "fixture", err)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	svc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), users.NewRepository(dbClient.DB()))
	requireResource(logg, "catalog service", err)

	report, err := Apply(ctx, svc, fixture, logg)
	if err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"categoriesCreated": report.CategoriesCreated,
		"categoriesSkipped": report.CategoriesSkipped,
		"productsCreated":   report.ProductsCreated,
		"productsSkipped":   report.ProductsSkipped,
	}), "catalog seeded")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/aggregator"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/api"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/config"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage/postgres"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := getStorage(cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	agg := aggregator.NewAggregator(store)
	handler := api.NewHandler(store, agg)
	router := api.SetupRoutes(handler)

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	slog.Info("starting API server", "addr", addr)
	if err := router.Run(addr); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

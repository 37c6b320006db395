package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/groundline-ai/groundline-engine/pkg/config"
	"github.com/groundline-ai/groundline-engine/pkg/database"
	"github.com/groundline-ai/groundline-engine/pkg/handlers"
	"github.com/groundline-ai/groundline-engine/pkg/logging"
	"github.com/groundline-ai/groundline-engine/pkg/repositories"
	"github.com/groundline-ai/groundline-engine/pkg/services"
	"github.com/groundline-ai/groundline-engine/pkg/sidecar"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("sidecar", cfg.Sidecar.BaseURL))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("failed to connect to the schema store", zap.Error(err))
	}
	defer db.Close()

	client, err := sidecar.NewClient(&sidecar.Config{
		BaseURL:         cfg.Sidecar.BaseURL,
		EmbedModel:      cfg.Sidecar.EmbedModel,
		EmbedTimeout:    time.Duration(cfg.Sidecar.EmbedTimeoutSec) * time.Second,
		GenerateTimeout: time.Duration(cfg.Sidecar.GenerateTimeout) * time.Second,
		Breaker: sidecar.BreakerConfig{
			Threshold:  cfg.Sidecar.BreakerThreshold,
			ResetAfter: time.Duration(cfg.Sidecar.BreakerResetSec) * time.Second,
		},
	}, logger)
	if err != nil {
		logger.Fatal("failed to build sidecar client", zap.Error(err))
	}

	store := repositories.NewSchemaStore(db)
	pipeline := services.NewPipeline(cfg, store, client, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, client, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(pipeline, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("starting groundline-engine", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

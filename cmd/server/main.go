package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/timiFoxtrot/main-product-store/internal/app"
	"github.com/timiFoxtrot/main-product-store/internal/config"
	"github.com/timiFoxtrot/main-product-store/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{
		Service: "product-store",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}, os.Stdout)
	log.Info("starting product store",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("product_store", cfg.ProductStore),
		slog.String("blob_store", cfg.BlobStore),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("product store stopped")
}

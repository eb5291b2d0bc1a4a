package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmynk/ducats/internal/app"
	"github.com/mmynk/ducats/internal/config"
	"github.com/mmynk/ducats/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Serve(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}

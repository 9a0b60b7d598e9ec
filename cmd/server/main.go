package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cvone/interview/internal/app"
	"cvone/interview/internal/config"
	"cvone/interview/internal/utils"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.String("store", cfg.StoreDriver),
		zap.String("version", version))

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger, app.Options{Version: version})
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := application.StartJobs(); err != nil {
		logger.Error("Failed to start background jobs", zap.Error(err))
	}

	server := application.Server()

	// starting server in a goroutine
	go func() {
		logger.Info("Interview service starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shutdown the server
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := application.Close(shutdownCtx); err != nil {
		logger.Error("failed to release resources", zap.Error(err))
	}

	logger.Info("Interview service exited")
}

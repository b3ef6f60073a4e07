package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-asset/pkg/simpleasset/api"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
	"github.com/tendant/simple-asset/pkg/simpleasset/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		logger.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	if serverConfig.DatabaseType == "postgres" {
		if err := config.PingPostgres(serverConfig.DatabaseURL, serverConfig.DBSchema); err != nil {
			logger.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
	}

	queue, err := serverConfig.BuildQueue()
	if err != nil {
		logger.Error("Failed to build queue", "err", err)
		os.Exit(1)
	}

	svc, err := serverConfig.BuildService(queue, logger)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	// A memory queue is only reachable from this process, so the workers
	// draining it must run here too. Redis queues are drained by cmd/worker.
	var pool *worker.Pool
	if serverConfig.QueueType == "memory" {
		pool, err = serverConfig.BuildWorkerPool(queue, logger)
		if err != nil {
			logger.Error("Failed to build worker pool", "err", err)
			os.Exit(1)
		}
		pool.Start(context.Background())
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "environment": "%s", "storage": "%s", "queue": "%s"}`,
			serverConfig.Environment, serverConfig.Storage.Type, serverConfig.QueueType)
	})

	assetHandler := api.NewAssetHandler(svc)
	r.Mount("/api/v1/assets", assetHandler.Routes())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: r,
	}

	go func() {
		logger.Info("Simple Asset Server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"storage", serverConfig.Storage.Type,
			"queue", serverConfig.QueueType)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}

	if pool != nil {
		if err := pool.Close(ctx); err != nil {
			logger.Error("Worker pool forced to shutdown", "err", err)
		}
	}

	logger.Info("Server exiting")
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" env-default:""`
	DBSchema    string `env:"DB_SCHEMA" env-default:"asset"`
	StorageURL  string `env:"STORAGE_URL" env-default:"memory://"`
	QueueURL    string `env:"QUEUE_URL" env-default:"memory://"`

	Concurrency         int    `env:"WORKER_CONCURRENCY" env-default:"2"`
	PollIntervalSeconds int    `env:"WORKER_POLL_INTERVAL_SECONDS" env-default:"2"`
	VisibilitySeconds   int    `env:"WORKER_VISIBILITY_SECONDS" env-default:"300"`
	MaxAttempts         int    `env:"MAX_ATTEMPTS" env-default:"3"`
	FFprobePath         string `env:"FFPROBE_PATH" env-default:"ffprobe"`

	ShutdownGraceSeconds int `env:"SHUTDOWN_GRACE_SECONDS" env-default:"30"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		logger.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	serverConfig, err := config.Load(config.WithEnv(""), withWorkerConfig(cfg))
	if err != nil {
		logger.Error("Failed to load worker configuration", "err", err)
		os.Exit(1)
	}

	queue, err := serverConfig.BuildQueue()
	if err != nil {
		logger.Error("Failed to build queue", "err", err)
		os.Exit(1)
	}

	pool, err := serverConfig.BuildWorkerPool(queue, logger)
	if err != nil {
		logger.Error("Failed to build worker pool", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Simple Asset Worker starting",
		"concurrency", serverConfig.WorkerConcurrency,
		"queue", serverConfig.QueueType,
		"storage", serverConfig.Storage.Type)

	pool.Start(ctx)

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	grace := time.Duration(cfg.ShutdownGraceSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := pool.Close(shutdownCtx); err != nil {
		logger.Error("Worker forced to shut down", "err", err)
		os.Exit(1)
	}

	logger.Info("Worker exiting")
}

// withWorkerConfig overlays cleanenv-read values; WithEnv already applied
// the shared URLs, this pins the worker-side tuning knobs.
func withWorkerConfig(cfg Config) config.Option {
	return func(c *config.ServerConfig) error {
		c.WorkerConcurrency = cfg.Concurrency
		c.WorkerPollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
		c.WorkerVisibility = time.Duration(cfg.VisibilitySeconds) * time.Second
		c.MaxAttempts = cfg.MaxAttempts
		c.FFprobePath = cfg.FFprobePath
		return nil
	}
}

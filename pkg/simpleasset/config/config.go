// Package config wires repositories, blob stores, queues, and worker pools
// from declarative configuration. Programmatic options layer on top of
// library defaults; WithEnv adds environment overrides for the cmd binaries.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/derive"
	memoryqueue "github.com/tendant/simple-asset/pkg/simpleasset/queue/memory"
	redisqueue "github.com/tendant/simple-asset/pkg/simpleasset/queue/redis"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	repopg "github.com/tendant/simple-asset/pkg/simpleasset/repo/postgres"
	fsstorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/fs"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	s3storage "github.com/tendant/simple-asset/pkg/simpleasset/storage/s3"
	"github.com/tendant/simple-asset/pkg/simpleasset/worker"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "asset",
		Storage: StorageConfig{
			Type: "memory",
		},
		QueueType:             "memory",
		RedisKeyPrefix:        "simpleasset:jobs",
		MaxAttempts:           3,
		RetryBackoff:          time.Second,
		WorkerConcurrency:     2,
		WorkerPollInterval:    2 * time.Second,
		WorkerVisibility:      5 * time.Minute,
		FFprobePath:           "ffprobe",
		PresignDurationSecond: 3600,
	}
}

// ServerConfig represents configuration shared by the API server and the worker.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: asset)

	// Storage configuration
	Storage StorageConfig

	// Queue configuration
	QueueType      string // "memory", "redis"
	RedisURL       string
	RedisKeyPrefix string
	MaxAttempts    int
	RetryBackoff   time.Duration

	// Worker configuration
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerVisibility   time.Duration
	FFprobePath        string

	PresignDurationSecond int

	// Built once and shared so that BuildService and BuildWorkerPool see the
	// same backing stores. Required for correctness with the memory backends,
	// where separate instances would hold separate data.
	repo  simpleasset.Repository
	store simpleasset.BlobStore
}

// StorageConfig represents configuration for the blob storage backend
type StorageConfig struct {
	Type string // "memory", "fs", "s3"

	// fs
	BaseDir string

	// s3
	Region                 string
	Bucket                 string
	AccessKeyID            string
	SecretAccessKey        string
	Endpoint               string
	UsePathStyle           bool
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("storage base_dir is required when using fs")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage bucket is required when using s3")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.QueueType != "memory" && c.QueueType != "redis" {
		return errors.New("queue_type must be 'memory' or 'redis'")
	}
	if c.QueueType == "redis" && c.RedisURL == "" {
		return errors.New("redis_url is required when using redis")
	}

	if c.MaxAttempts <= 0 {
		return errors.New("max_attempts must be positive")
	}
	if c.WorkerConcurrency <= 0 {
		return errors.New("worker_concurrency must be positive")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration.
// The queue is shared with BuildWorkerPool when the memory queue is used, so
// callers embedding both sides in one process should build the queue once.
func (c *ServerConfig) BuildService(queue simpleasset.Queue, logger *slog.Logger) (simpleasset.Service, error) {
	repo, err := c.BuildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.BuildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	return simpleasset.New(
		simpleasset.WithRepository(repo),
		simpleasset.WithBlobStore(store),
		simpleasset.WithQueue(queue),
		simpleasset.WithLogger(logger),
	)
}

// BuildWorkerPool creates a worker pool from the server configuration.
func (c *ServerConfig) BuildWorkerPool(queue simpleasset.Queue, logger *slog.Logger) (*worker.Pool, error) {
	repo, err := c.BuildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.BuildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	prober := derive.NewProber(derive.ProbeConfig{FFprobePath: c.FFprobePath})
	deriver, err := derive.New(store, derive.WithProber(prober), derive.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build deriver: %w", err)
	}

	return worker.New(worker.Config{
		Concurrency:  c.WorkerConcurrency,
		PollInterval: c.WorkerPollInterval,
		Visibility:   c.WorkerVisibility,
	}, queue, repo, store, deriver, logger)
}

// BuildRepository creates a Repository based on the configuration. Repeated
// calls return the same instance.
func (c *ServerConfig) BuildRepository() (simpleasset.Repository, error) {
	if c.repo != nil {
		return c.repo, nil
	}
	repo, err := c.buildRepository()
	if err != nil {
		return nil, err
	}
	c.repo = repo
	return repo, nil
}

func (c *ServerConfig) buildRepository() (simpleasset.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildBlobStore creates a BlobStore based on the configuration. Repeated
// calls return the same instance.
func (c *ServerConfig) BuildBlobStore() (simpleasset.BlobStore, error) {
	if c.store != nil {
		return c.store, nil
	}
	store, err := c.buildBlobStore()
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

func (c *ServerConfig) buildBlobStore() (simpleasset.BlobStore, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: c.Storage.BaseDir,
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.Storage.Region,
			Bucket:                 c.Storage.Bucket,
			AccessKeyID:            c.Storage.AccessKeyID,
			SecretAccessKey:        c.Storage.SecretAccessKey,
			Endpoint:               c.Storage.Endpoint,
			UsePathStyle:           c.Storage.UsePathStyle,
			PresignDuration:        c.PresignDurationSecond,
			CreateBucketIfNotExist: c.Storage.CreateBucketIfNotExist,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

// BuildQueue creates a Queue based on the configuration
func (c *ServerConfig) BuildQueue() (simpleasset.Queue, error) {
	switch c.QueueType {
	case "memory":
		return memoryqueue.New(memoryqueue.Config{
			MaxAttempts: c.MaxAttempts,
			BaseBackoff: c.RetryBackoff,
		}), nil

	case "redis":
		return redisqueue.New(redisqueue.Config{
			RedisURL:    c.RedisURL,
			KeyPrefix:   c.RedisKeyPrefix,
			MaxAttempts: c.MaxAttempts,
			BaseBackoff: c.RetryBackoff,
		})

	default:
		return nil, fmt.Errorf("unsupported queue type: %s", c.QueueType)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Package worker runs the processing side of the pipeline: a bounded pool of
// executors that lease jobs, run derivation, and report results back to the
// metadata repository and the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/derive"
)

// Config options for the worker pool
type Config struct {
	Concurrency  int           // number of concurrent executors (default: 2)
	PollInterval time.Duration // idle wait between lease attempts (default: 2s)
	Visibility   time.Duration // lease visibility timeout (default: 5m)
}

// Pool is a fixed-size set of concurrent job executors. Executors share the
// queue and the repository only; there is no other cross-executor state.
type Pool struct {
	cfg        Config
	queue      simpleasset.Queue
	repository simpleasset.Repository
	blobStore  simpleasset.BlobStore
	deriver    *derive.Deriver
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new worker pool. All collaborators are injected and checked
// up front so a misconfigured pool fails at startup, not mid-job.
func New(cfg Config, queue simpleasset.Queue, repository simpleasset.Repository, blobStore simpleasset.BlobStore, deriver *derive.Deriver, logger *slog.Logger) (*Pool, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if deriver == nil {
		return nil, fmt.Errorf("deriver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 5 * time.Minute
	}

	return &Pool{
		cfg:        cfg,
		queue:      queue,
		repository: repository,
		blobStore:  blobStore,
		deriver:    deriver,
		logger:     logger,
	}, nil
}

// Start launches the executors. It returns immediately; use Close to stop.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(runCtx, workerID)
		}()
	}

	p.logger.Info("worker pool started", "concurrency", p.cfg.Concurrency)
}

// Close stops leasing new jobs immediately and waits for in-flight jobs to
// finish. When ctx expires first, remaining leases are abandoned; their
// visibility timeouts will lapse and the jobs become leasable again.
func (p *Pool) Close(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown grace period exceeded: %w", ctx.Err())
	}
}

// run is one executor's lease -> process -> ack loop
func (p *Pool) run(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Lease(ctx, workerID, p.cfg.Visibility)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, simpleasset.ErrNoJob) {
				p.logger.Error("lease failed", "worker", workerID, "err", err)
			}
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}

		p.process(ctx, workerID, job)
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

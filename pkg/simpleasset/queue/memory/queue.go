package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Config options for the in-memory queue
type Config struct {
	MaxAttempts int           // attempts before dead-lettering (default: 3)
	BaseBackoff time.Duration // first retry delay, doubled per attempt (default: 1s)
}

// Queue is an in-memory implementation of the simpleasset.Queue interface.
// Jobs survive lease expiry but not process restarts; it backs tests and
// single-process deployments.
type Queue struct {
	mu          sync.Mutex
	cfg         Config
	pending     []uuid.UUID
	delayed     map[uuid.UUID]time.Time
	leases      map[uuid.UUID]lease
	jobs        map[uuid.UUID]*simpleasset.Job
	deadLetters []*simpleasset.Job

	now func() time.Time
}

type lease struct {
	workerID string
	deadline time.Time
}

// New creates a new in-memory queue
func New(cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	return &Queue{
		cfg:     cfg,
		delayed: make(map[uuid.UUID]time.Time),
		leases:  make(map[uuid.UUID]lease),
		jobs:    make(map[uuid.UUID]*simpleasset.Job),
		now:     time.Now,
	}
}

// Enqueue appends a job to the pending list
func (q *Queue) Enqueue(ctx context.Context, job *simpleasset.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobCopy := *job
	q.jobs[job.ID] = &jobCopy
	q.pending = append(q.pending, job.ID)
	return nil
}

// Lease hands out the oldest leasable job whose asset is not already being
// processed, and starts its visibility timer.
func (q *Queue) Lease(ctx context.Context, workerID string, visibility time.Duration) (*simpleasset.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.promoteDelayed(now)
	q.reclaimStalled(now)

	inflight := q.inflightAssets()

	for i, jobID := range q.pending {
		job := q.jobs[jobID]
		if job == nil {
			continue
		}
		if inflight[job.AssetID] {
			continue
		}

		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.leases[jobID] = lease{workerID: workerID, deadline: now.Add(visibility)}

		jobCopy := *job
		return &jobCopy, nil
	}

	return nil, simpleasset.ErrNoJob
}

// Ack removes a leased job permanently
func (q *Queue) Ack(ctx context.Context, jobID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.leases[jobID]; !ok {
		return simpleasset.ErrJobNotLeased
	}
	delete(q.leases, jobID)
	delete(q.jobs, jobID)
	return nil
}

// Fail releases a leased job: retryable failures are re-queued with
// exponential backoff until attempts run out, everything else dead-letters.
func (q *Queue) Fail(ctx context.Context, jobID uuid.UUID, retryable bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.leases[jobID]; !ok {
		return simpleasset.ErrJobNotLeased
	}
	delete(q.leases, jobID)

	job := q.jobs[jobID]
	job.Attempt++

	if retryable && job.Attempt < q.cfg.MaxAttempts {
		backoff := q.cfg.BaseBackoff << (job.Attempt - 1)
		q.delayed[jobID] = q.now().Add(backoff)
		return nil
	}

	delete(q.jobs, jobID)
	q.deadLetters = append(q.deadLetters, job)
	return nil
}

// DeadLetters returns jobs that exhausted their retries and require manual
// intervention.
func (q *Queue) DeadLetters() []*simpleasset.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*simpleasset.Job, len(q.deadLetters))
	for i, job := range q.deadLetters {
		jobCopy := *job
		out[i] = &jobCopy
	}
	return out
}

// promoteDelayed moves jobs whose backoff elapsed back to pending
func (q *Queue) promoteDelayed(now time.Time) {
	for jobID, readyAt := range q.delayed {
		if !readyAt.After(now) {
			delete(q.delayed, jobID)
			q.pending = append(q.pending, jobID)
		}
	}
}

// reclaimStalled re-queues jobs whose visibility timer expired without an ack
func (q *Queue) reclaimStalled(now time.Time) {
	for jobID, l := range q.leases {
		if l.deadline.Before(now) {
			delete(q.leases, jobID)
			q.pending = append(q.pending, jobID)
		}
	}
}

func (q *Queue) inflightAssets() map[uuid.UUID]bool {
	inflight := make(map[uuid.UUID]bool, len(q.leases))
	for jobID := range q.leases {
		if job := q.jobs[jobID]; job != nil {
			inflight[job.AssetID] = true
		}
	}
	return inflight
}

// Package redis provides a Redis-backed implementation of simpleasset.Queue.
//
// The topology follows the usual Redis job-queue shape: a pending list for
// leasable jobs, a delayed zset scored by retry-ready time, a processing zset
// scored by lease deadline, a set of in-flight asset ids, and one JSON value
// per job. Promotion of due delayed jobs and reclaim of stalled leases happen
// opportunistically on every Lease call, so no separate reaper process is
// required. Delivery is at-least-once: a crash between operations can only
// cause re-delivery, never loss.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Config options for the Redis queue
type Config struct {
	RedisURL    string        // e.g. redis://localhost:6379/0
	KeyPrefix   string        // namespace for all queue keys (default: "simpleasset:jobs")
	MaxAttempts int           // attempts before dead-lettering (default: 3)
	BaseBackoff time.Duration // first retry delay, doubled per attempt (default: 5s)
}

// Queue is a Redis-backed implementation of the simpleasset.Queue interface
type Queue struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	baseBackoff time.Duration

	now func() time.Time
}

// claimScript atomically claims the oldest leasable pending job. It walks the
// pending list at most once, re-queueing jobs whose asset already holds an
// in-flight lease and dropping ids whose payload is gone, and records the
// winning lease in the processing zset and the in-flight set in the same
// step. Running it as one script means a worker crash can never strand a
// popped id outside every structure.
var claimScript = redis.NewScript(`
local len = redis.call('LLEN', KEYS[1])
for i = 1, len do
  local id = redis.call('LPOP', KEYS[1])
  if not id then
    return false
  end
  local payload = redis.call('GET', ARGV[2] .. id)
  if payload then
    local job = cjson.decode(payload)
    if redis.call('SISMEMBER', KEYS[3], job.asset_id) == 0 then
      redis.call('ZADD', KEYS[2], ARGV[1], id)
      redis.call('SADD', KEYS[3], job.asset_id)
      return payload
    end
    redis.call('RPUSH', KEYS[1], id)
  end
end
return false
`)

// New creates a new Redis queue from a Redis URL
func New(cfg Config) (*Queue, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "simpleasset:jobs"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 5 * time.Second
	}
	return &Queue{
		client:      redis.NewClient(opts),
		prefix:      cfg.KeyPrefix,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		now:         time.Now,
	}, nil
}

// Ping verifies the Redis connection
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) pendingKey() string    { return q.prefix + ":pending" }
func (q *Queue) delayedKey() string    { return q.prefix + ":delayed" }
func (q *Queue) processingKey() string { return q.prefix + ":processing" }
func (q *Queue) inflightKey() string   { return q.prefix + ":inflight" }
func (q *Queue) deadKey() string       { return q.prefix + ":dead" }
func (q *Queue) jobKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:job:%s", q.prefix, id)
}

// Enqueue persists the job payload and appends its id to the pending list
func (q *Queue) Enqueue(ctx context.Context, job *simpleasset.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobKey(job.ID), payload, 0)
	pipe.RPush(ctx, q.pendingKey(), job.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Lease claims the oldest pending job, marks its asset in flight, and starts
// the visibility timer, all in one server-side step. Returns
// simpleasset.ErrNoJob when nothing is leasable.
func (q *Queue) Lease(ctx context.Context, workerID string, visibility time.Duration) (*simpleasset.Job, error) {
	now := q.now()
	if err := q.promoteDelayed(ctx, now); err != nil {
		return nil, err
	}
	if err := q.reclaimStalled(ctx, now); err != nil {
		return nil, err
	}

	res, err := claimScript.Run(ctx, q.client,
		[]string{q.pendingKey(), q.processingKey(), q.inflightKey()},
		now.Add(visibility).UnixMilli(), q.prefix+":job:").Result()
	if err == redis.Nil {
		return nil, simpleasset.ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}

	payload, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected claim reply type %T", res)
	}
	var job simpleasset.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Ack removes a leased job permanently
func (q *Queue) Ack(ctx context.Context, jobID uuid.UUID) error {
	removed, err := q.client.ZRem(ctx, q.processingKey(), jobID.String()).Result()
	if err != nil {
		return fmt.Errorf("remove lease: %w", err)
	}
	if removed == 0 {
		return simpleasset.ErrJobNotLeased
	}

	job, err := q.loadJob(ctx, jobID)
	if err == nil {
		q.client.SRem(ctx, q.inflightKey(), job.AssetID.String())
	}
	return q.client.Del(ctx, q.jobKey(jobID)).Err()
}

// Fail releases a leased job, re-queueing with exponential backoff while
// retryable attempts remain and dead-lettering otherwise
func (q *Queue) Fail(ctx context.Context, jobID uuid.UUID, retryable bool) error {
	removed, err := q.client.ZRem(ctx, q.processingKey(), jobID.String()).Result()
	if err != nil {
		return fmt.Errorf("remove lease: %w", err)
	}
	if removed == 0 {
		return simpleasset.ErrJobNotLeased
	}

	job, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	q.client.SRem(ctx, q.inflightKey(), job.AssetID.String())

	job.Attempt++
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if retryable && job.Attempt < q.maxAttempts {
		backoff := q.baseBackoff << (job.Attempt - 1)
		pipe := q.client.TxPipeline()
		pipe.Set(ctx, q.jobKey(jobID), payload, 0)
		pipe.ZAdd(ctx, q.delayedKey(), redis.Z{
			Score:  float64(q.now().Add(backoff).UnixMilli()),
			Member: jobID.String(),
		})
		_, err := pipe.Exec(ctx)
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, q.deadKey(), payload)
	pipe.Del(ctx, q.jobKey(jobID))
	_, err = pipe.Exec(ctx)
	return err
}

// promoteDelayed moves jobs whose backoff elapsed back to the pending list
func (q *Queue) promoteDelayed(ctx context.Context, now time.Time) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed: %w", err)
	}

	for _, idStr := range due {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.delayedKey(), idStr)
		pipe.RPush(ctx, q.pendingKey(), idStr)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("promote delayed job: %w", err)
		}
	}
	return nil
}

// reclaimStalled re-queues jobs whose visibility timer expired without an ack
func (q *Queue) reclaimStalled(ctx context.Context, now time.Time) error {
	stalled, err := q.client.ZRangeByScore(ctx, q.processingKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("scan processing: %w", err)
	}

	for _, idStr := range stalled {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.processingKey(), idStr)
		pipe.RPush(ctx, q.pendingKey(), idStr)
		if jobID, err := uuid.Parse(idStr); err == nil {
			if job, err := q.loadJob(ctx, jobID); err == nil {
				pipe.SRem(ctx, q.inflightKey(), job.AssetID.String())
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("reclaim stalled job: %w", err)
		}
	}
	return nil
}

func (q *Queue) loadJob(ctx context.Context, jobID uuid.UUID) (*simpleasset.Job, error) {
	payload, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, &simpleasset.JobError{JobID: jobID, Op: "load", Err: simpleasset.ErrNoJob}
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}

	var job simpleasset.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

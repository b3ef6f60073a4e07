package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

func newJob(assetID uuid.UUID) *simpleasset.Job {
	return &simpleasset.Job{
		ID:        uuid.New(),
		AssetID:   assetID,
		BlobKey:   "key.jpg",
		MediaKind: simpleasset.MediaKindImage,
		CreatedAt: time.Now().UTC(),
	}
}

// fixedClock lets tests advance queue time explicitly
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue(cfg Config) (*Queue, *fixedClock) {
	q := New(cfg)
	clock := &fixedClock{t: time.Now().UTC()}
	q.now = clock.now
	return q, clock
}

func TestEnqueueLeaseAck(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(Config{})

	job := newJob(uuid.New())
	require.NoError(t, q.Enqueue(ctx, job))

	leased, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, leased.ID)
	assert.Equal(t, job.AssetID, leased.AssetID)

	require.NoError(t, q.Ack(ctx, job.ID))

	// Acked jobs are gone for good
	_, err = q.Lease(ctx, "w1", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)
}

func TestLeaseEmptyQueue(t *testing.T) {
	q, _ := newTestQueue(Config{})

	_, err := q.Lease(context.Background(), "w1", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)
}

func TestLeaseOrdering(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(Config{})

	first := newJob(uuid.New())
	second := newJob(uuid.New())
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	leased, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.ID, leased.ID, "oldest job leases first")
}

func TestSingleLeasePerAsset(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(Config{})

	assetID := uuid.New()
	require.NoError(t, q.Enqueue(ctx, newJob(assetID)))
	require.NoError(t, q.Enqueue(ctx, newJob(assetID)))
	other := newJob(uuid.New())
	require.NoError(t, q.Enqueue(ctx, other))

	first, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, assetID, first.AssetID)

	// The second job for the same asset is skipped while the first is leased;
	// the job for the other asset is handed out instead.
	second, err := q.Lease(ctx, "w2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, other.AssetID, second.AssetID)

	_, err = q.Lease(ctx, "w3", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)

	// Acking the first job frees the asset for the second
	require.NoError(t, q.Ack(ctx, first.ID))
	third, err := q.Lease(ctx, "w3", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, assetID, third.AssetID)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(Config{MaxAttempts: 3, BaseBackoff: time.Second})

	job := newJob(uuid.New())
	require.NoError(t, q.Enqueue(ctx, job))

	leased, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, leased.ID, true))

	// Backoff has not elapsed yet
	_, err = q.Lease(ctx, "w1", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)

	clock.advance(time.Second)
	retried, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 1, retried.Attempt)

	// Second retry backs off twice as long
	require.NoError(t, q.Fail(ctx, retried.ID, true))
	clock.advance(time.Second)
	_, err = q.Lease(ctx, "w1", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)

	clock.advance(time.Second)
	retried, err = q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, retried.Attempt)
}

func TestDeadLetterAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(Config{MaxAttempts: 2, BaseBackoff: time.Second})

	job := newJob(uuid.New())
	require.NoError(t, q.Enqueue(ctx, job))

	leased, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, leased.ID, true))

	clock.advance(time.Second)
	leased, err = q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, leased.ID, true))

	// Attempts exhausted: the job dead-letters instead of re-queueing
	clock.advance(time.Hour)
	_, err = q.Lease(ctx, "w1", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, job.ID, dead[0].ID)
	assert.Equal(t, 2, dead[0].Attempt)
}

func TestNonRetryableFailureDeadLettersImmediately(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(Config{MaxAttempts: 3, BaseBackoff: time.Second})

	job := newJob(uuid.New())
	require.NoError(t, q.Enqueue(ctx, job))

	leased, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, leased.ID, false))

	clock.advance(time.Hour)
	_, err = q.Lease(ctx, "w1", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)

	require.Len(t, q.DeadLetters(), 1)
}

func TestStalledLeaseIsReclaimed(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(Config{})

	job := newJob(uuid.New())
	require.NoError(t, q.Enqueue(ctx, job))

	_, err := q.Lease(ctx, "w1", time.Minute)
	require.NoError(t, err)

	// Within the visibility window the job stays invisible
	clock.advance(30 * time.Second)
	_, err = q.Lease(ctx, "w2", time.Minute)
	assert.ErrorIs(t, err, simpleasset.ErrNoJob)

	// After expiry it is re-delivered without an attempt bump
	clock.advance(31 * time.Second)
	reclaimed, err := q.Lease(ctx, "w2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, reclaimed.ID)
	assert.Equal(t, 0, reclaimed.Attempt)
}

func TestAckWithoutLease(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(Config{})

	err := q.Ack(ctx, uuid.New())
	assert.ErrorIs(t, err, simpleasset.ErrJobNotLeased)

	err = q.Fail(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, simpleasset.ErrJobNotLeased)
}

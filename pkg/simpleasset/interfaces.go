package simpleasset

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for key-addressed blob storage backends
type BlobStore interface {
	// Upload stores the bytes read from reader under objectKey
	Upload(ctx context.Context, objectKey string, reader io.Reader, mimeType string) error

	// Download returns a reader over the blob stored under objectKey.
	// A missing key yields ErrObjectNotFound.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the blob stored under objectKey
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for a stored blob
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// GetDownloadURL returns a time-limited URL for downloading the blob.
	// Backends without URL support return an error.
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)
}

// ObjectMeta contains metadata about a blob in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// Repository defines the interface for asset metadata persistence.
//
// Status writes are conditional: UpdateStatus only succeeds when the asset is
// currently in one of the allowed prior states, and terminal writes carry the
// job attempt so a stale worker finishing after a newer attempt is rejected
// instead of silently merged.
type Repository interface {
	// CreateAsset persists a new asset record in pending state
	CreateAsset(ctx context.Context, asset *Asset) error

	// GetAsset returns the asset record, or ErrAssetNotFound
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)

	// ListAssets returns all assets belonging to an owner, newest first
	ListAssets(ctx context.Context, ownerID uuid.UUID) ([]*Asset, error)

	// UpdateStatus transitions the asset to status when its current status is
	// one of allowedFrom. Returns ErrInvalidStatusTransition otherwise. The
	// attempt is recorded as the asset's active attempt.
	UpdateStatus(ctx context.Context, id uuid.UUID, status AssetStatus, attempt int, allowedFrom ...AssetStatus) error

	// CompleteProcessing atomically writes derivation results and the completed
	// status in one update. The write is rejected with ErrStaleAttempt when the
	// record already carries a newer attempt, so the last writer's full field
	// set wins and attempts never mix.
	CompleteProcessing(ctx context.Context, params CompleteProcessingParams) error

	// FailProcessing marks the asset failed with a diagnostic reason, subject
	// to the same attempt fencing as CompleteProcessing
	FailProcessing(ctx context.Context, id uuid.UUID, reason string, attempt int) error

	// DeleteAsset removes the asset record
	DeleteAsset(ctx context.Context, id uuid.UUID) error
}

// CompleteProcessingParams carries the full result of one derivation run.
type CompleteProcessingParams struct {
	AssetID         uuid.UUID
	Attempt         int
	DerivedMetadata *DerivedMetadata
	ThumbnailKey    string
	Resolutions     []Resolution
}

// Queue defines the interface for the durable job queue. Delivery is
// at-least-once; consumers must be idempotent.
type Queue interface {
	// Enqueue appends a job durably and returns once it is persisted
	Enqueue(ctx context.Context, job *Job) error

	// Lease hands a not-currently-leased job to the caller and starts a
	// visibility timer. If the lease expires without an Ack the job becomes
	// leasable again. No two leases are handed out concurrently for jobs
	// referencing the same asset. Returns ErrNoJob when nothing is leasable.
	Lease(ctx context.Context, workerID string, visibility time.Duration) (*Job, error)

	// Ack removes a leased job permanently
	Ack(ctx context.Context, jobID uuid.UUID) error

	// Fail releases a leased job. When retryable and attempts remain it is
	// re-queued with exponential backoff; otherwise it moves to the
	// dead-letter channel.
	Fail(ctx context.Context, jobID uuid.UUID, retryable bool) error
}

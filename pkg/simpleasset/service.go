package simpleasset

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the ingest-side interface for the simple-asset library.
// Clients are only ever told "accepted for processing"; the final outcome of a
// derivation run is observable solely through the asset record's status.
type Service interface {
	// Ingest stores the primary blob, creates the asset record in pending
	// state, and enqueues a processing job, in that order
	Ingest(ctx context.Context, req IngestRequest) (*Asset, error)

	// GetAsset returns the asset record
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)

	// ListAssets returns all assets belonging to an owner, newest first
	ListAssets(ctx context.Context, ownerID uuid.UUID) ([]*Asset, error)

	// Download returns the asset record and a reader over its primary blob
	Download(ctx context.Context, id uuid.UUID) (*Asset, io.ReadCloser, error)

	// GetDownloadURL returns a time-limited URL for the primary blob
	GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error)

	// GetThumbnailURL returns a time-limited URL for the thumbnail, or
	// ErrObjectNotFound when the asset has none
	GetThumbnailURL(ctx context.Context, id uuid.UUID) (string, error)

	// Reprocess enqueues a fresh derivation job for an already-ingested asset
	Reprocess(ctx context.Context, id uuid.UUID) error

	// DeleteAsset removes the asset's full artifact set from the blob store and
	// then its metadata record. Individual blob deletion failures are collected
	// in the result as warnings; only the metadata deletion is fatal.
	DeleteAsset(ctx context.Context, id uuid.UUID) (*CleanupResult, error)
}

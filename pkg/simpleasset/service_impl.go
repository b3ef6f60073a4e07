package simpleasset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	queue      Queue
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithQueue sets the processing job queue
func WithQueue(q Queue) Option {
	return func(s *service) {
		s.queue = q
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options. All collaborators
// are injected here and checked up front; the service never reaches for
// ambient state after construction.
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) Ingest(ctx context.Context, req IngestRequest) (*Asset, error) {
	primaryKey := objectkey.NewPrimaryKey(req.FileName)

	// The blob must be durable before the record leaves pending, and the
	// record must exist before the job referencing it is enqueued.
	if err := s.blobStore.Upload(ctx, primaryKey, req.Reader, req.MimeType); err != nil {
		return nil, &StorageError{Key: primaryKey, Op: "upload", Err: err}
	}

	now := time.Now().UTC()
	asset := &Asset{
		ID:         uuid.New(),
		OwnerID:    req.OwnerID,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		MediaKind:  KindFromMimeType(req.MimeType),
		PrimaryKey: primaryKey,
		Size:       req.Size,
		Status:     AssetStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repository.CreateAsset(ctx, asset); err != nil {
		// Roll the blob back so a failed ingest leaves nothing behind.
		if delErr := s.blobStore.Delete(ctx, primaryKey); delErr != nil {
			s.logger.Warn("failed to remove blob after create failure",
				"key", primaryKey, "err", delErr)
		}
		return nil, &AssetError{AssetID: asset.ID, Op: "create", Err: err}
	}

	if err := s.enqueueJob(ctx, asset); err != nil {
		return nil, err
	}

	s.logger.Info("asset ingested",
		"asset_id", asset.ID, "kind", asset.MediaKind, "size", asset.Size)
	return asset, nil
}

func (s *service) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	return s.repository.GetAsset(ctx, id)
}

func (s *service) ListAssets(ctx context.Context, ownerID uuid.UUID) ([]*Asset, error) {
	return s.repository.ListAssets(ctx, ownerID)
}

func (s *service) Download(ctx context.Context, id uuid.UUID) (*Asset, io.ReadCloser, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobStore.Download(ctx, asset.PrimaryKey)
	if err != nil {
		return nil, nil, &StorageError{Key: asset.PrimaryKey, Op: "download", Err: err}
	}
	return asset, rc, nil
}

func (s *service) GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return "", err
	}
	return s.blobStore.GetDownloadURL(ctx, asset.PrimaryKey, asset.FileName)
}

func (s *service) GetThumbnailURL(ctx context.Context, id uuid.UUID) (string, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return "", err
	}
	if asset.ThumbnailKey == "" {
		return "", ErrObjectNotFound
	}
	return s.blobStore.GetDownloadURL(ctx, asset.ThumbnailKey, "")
}

func (s *service) Reprocess(ctx context.Context, id uuid.UUID) error {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if _, err := CanTransition(asset.Status, AssetStatusProcessing); err != nil {
		return err
	}
	return s.enqueueJob(ctx, asset)
}

func (s *service) enqueueJob(ctx context.Context, asset *Asset) error {
	job := &Job{
		ID:        uuid.New(),
		AssetID:   asset.ID,
		BlobKey:   asset.PrimaryKey,
		MediaKind: asset.MediaKind,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return &JobError{JobID: job.ID, Op: "enqueue", Err: err}
	}
	return nil
}

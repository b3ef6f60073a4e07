package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/derive"
)

// errDropJob marks a job that should be acknowledged without any further
// work: the asset is gone or a newer job already superseded this delivery.
var errDropJob = errors.New("job superseded or asset deleted")

// process executes one leased job end to end and settles it with the queue.
func (p *Pool) process(ctx context.Context, workerID string, job *simpleasset.Job) {
	logger := p.logger.With("worker", workerID, "job", job.ID, "asset", job.AssetID, "attempt", job.Attempt)
	logger.Info("processing job", "kind", job.MediaKind)

	err := p.handle(ctx, job)
	switch {
	case err == nil:
		if ackErr := p.queue.Ack(ctx, job.ID); ackErr != nil {
			logger.Error("failed to ack job", "err", ackErr)
			return
		}
		logger.Info("job completed")

	case errors.Is(err, errDropJob):
		if ackErr := p.queue.Ack(ctx, job.ID); ackErr != nil {
			logger.Error("failed to ack dropped job", "err", ackErr)
			return
		}
		logger.Info("job dropped", "reason", err)

	case simpleasset.IsPermanent(err):
		logger.Warn("job failed permanently", "err", err)
		p.recordFailure(ctx, job, err, logger)
		if failErr := p.queue.Fail(ctx, job.ID, false); failErr != nil {
			logger.Error("failed to settle job", "err", failErr)
		}

	default:
		logger.Warn("job failed, will retry", "err", err)
		p.recordFailure(ctx, job, err, logger)
		if failErr := p.queue.Fail(ctx, job.ID, true); failErr != nil {
			logger.Error("failed to settle job", "err", failErr)
		}
	}
}

// handle runs the derivation pipeline for one job. The returned error
// decides settlement: nil acks, errDropJob acks and drops, a permanent
// error dead-letters, anything else retries.
func (p *Pool) handle(ctx context.Context, job *simpleasset.Job) error {
	asset, err := p.repository.GetAsset(ctx, job.AssetID)
	if err != nil {
		if errors.Is(err, simpleasset.ErrAssetNotFound) {
			return errDropJob
		}
		return err
	}

	// A completed asset means a newer job already won; this delivery is stale.
	if ok, _ := simpleasset.CanTransition(asset.Status, simpleasset.AssetStatusProcessing); !ok {
		return errDropJob
	}

	err = p.repository.UpdateStatus(ctx, job.AssetID, simpleasset.AssetStatusProcessing, job.Attempt,
		simpleasset.AssetStatusPending, simpleasset.AssetStatusFailed, simpleasset.AssetStatusProcessing)
	if err != nil {
		if errors.Is(err, simpleasset.ErrAssetNotFound) || errors.Is(err, simpleasset.ErrInvalidStatusTransition) {
			return errDropJob
		}
		return err
	}

	data, err := p.download(ctx, job.BlobKey)
	if err != nil {
		if errors.Is(err, simpleasset.ErrObjectNotFound) {
			// The primary blob is gone; no retry will bring it back.
			return simpleasset.MarkPermanent(err)
		}
		return err
	}

	result, err := p.deriver.Derive(ctx, derive.Request{
		Data:       data,
		PrimaryKey: job.BlobKey,
		Kind:       job.MediaKind,
		MimeType:   asset.MimeType,
	})
	if err != nil {
		return err
	}

	err = p.repository.CompleteProcessing(ctx, simpleasset.CompleteProcessingParams{
		AssetID:         job.AssetID,
		Attempt:         job.Attempt,
		DerivedMetadata: result.Metadata,
		ThumbnailKey:    result.ThumbnailKey,
		Resolutions:     result.Resolutions,
	})
	if err != nil {
		if errors.Is(err, simpleasset.ErrStaleAttempt) || errors.Is(err, simpleasset.ErrAssetNotFound) {
			return errDropJob
		}
		return err
	}
	return nil
}

func (p *Pool) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.blobStore.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recordFailure marks the asset failed with the error as reason. A stale
// attempt here means a newer job already wrote a terminal state; its result
// stands and the failure is not recorded.
func (p *Pool) recordFailure(ctx context.Context, job *simpleasset.Job, cause error, logger *slog.Logger) {
	err := p.repository.FailProcessing(ctx, job.AssetID, cause.Error(), job.Attempt)
	if err != nil && !errors.Is(err, simpleasset.ErrStaleAttempt) && !errors.Is(err, simpleasset.ErrAssetNotFound) {
		logger.Error("failed to record failure", "err", err)
	}
}

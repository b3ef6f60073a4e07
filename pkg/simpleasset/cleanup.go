package simpleasset

import (
	"context"

	"github.com/google/uuid"
)

// DeleteAsset removes everything stored for an asset: the primary blob, the
// thumbnail and every resolution variant, then the metadata record.
//
// Blob deletions are attempted independently; a failure on one object does not
// abort the rest. Only after all deletions have been attempted is the metadata
// record removed, because a dangling blob can be reclaimed by a sweep while a
// metadata record pointing at nothing cannot.
func (s *service) DeleteAsset(ctx context.Context, id uuid.UUID) (*CleanupResult, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := canDelete(asset.Status); err != nil {
		return nil, err
	}

	result := &CleanupResult{AssetID: id}

	keys := make([]string, 0, 2+len(asset.Resolutions))
	keys = append(keys, asset.PrimaryKey)
	if asset.ThumbnailKey != "" {
		keys = append(keys, asset.ThumbnailKey)
	}
	for _, res := range asset.Resolutions {
		keys = append(keys, res.Key)
	}

	for _, key := range keys {
		if err := s.blobStore.Delete(ctx, key); err != nil {
			s.logger.Warn("blob deletion failed during cleanup",
				"asset_id", id, "key", key, "err", err)
			result.FailedKeys = append(result.FailedKeys, key)
			continue
		}
		result.DeletedKeys = append(result.DeletedKeys, key)
	}

	if err := s.repository.DeleteAsset(ctx, id); err != nil {
		return result, &AssetError{AssetID: id, Op: "delete", Err: err}
	}

	s.logger.Info("asset deleted",
		"asset_id", id, "deleted", len(result.DeletedKeys), "failed", len(result.FailedKeys))
	return result, nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Repository implements simpleasset.Repository using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]*simpleasset.Asset
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		assets: make(map[uuid.UUID]*simpleasset.Asset),
	}
}

func (r *Repository) CreateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	assetCopy := copyAsset(asset)
	r.assets[asset.ID] = assetCopy

	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*simpleasset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[id]
	if !exists {
		return nil, simpleasset.ErrAssetNotFound
	}
	return copyAsset(asset), nil
}

func (r *Repository) ListAssets(ctx context.Context, ownerID uuid.UUID) ([]*simpleasset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simpleasset.Asset
	for _, asset := range r.assets {
		if asset.OwnerID == ownerID {
			result = append(result, copyAsset(asset))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status simpleasset.AssetStatus, attempt int, allowedFrom ...simpleasset.AssetStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[id]
	if !exists {
		return simpleasset.ErrAssetNotFound
	}

	if len(allowedFrom) > 0 && !statusIn(asset.Status, allowedFrom) {
		return simpleasset.ErrInvalidStatusTransition
	}

	asset.Status = status
	asset.Attempt = attempt
	asset.UpdatedAt = time.Now().UTC()
	if status == simpleasset.AssetStatusProcessing {
		asset.FailureReason = ""
	}
	return nil
}

func (r *Repository) CompleteProcessing(ctx context.Context, params simpleasset.CompleteProcessingParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[params.AssetID]
	if !exists {
		return simpleasset.ErrAssetNotFound
	}
	if params.Attempt < asset.Attempt {
		return simpleasset.ErrStaleAttempt
	}

	// The whole result set is written in one update so two attempts can never
	// leave a mix of each other's fields behind.
	now := time.Now().UTC()
	asset.DerivedMetadata = params.DerivedMetadata
	asset.ThumbnailKey = params.ThumbnailKey
	asset.Resolutions = append([]simpleasset.Resolution(nil), params.Resolutions...)
	asset.Status = simpleasset.AssetStatusCompleted
	asset.FailureReason = ""
	asset.Attempt = params.Attempt
	asset.UpdatedAt = now
	asset.ProcessedAt = &now
	return nil
}

func (r *Repository) FailProcessing(ctx context.Context, id uuid.UUID, reason string, attempt int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[id]
	if !exists {
		return simpleasset.ErrAssetNotFound
	}
	if attempt < asset.Attempt {
		return simpleasset.ErrStaleAttempt
	}

	asset.Status = simpleasset.AssetStatusFailed
	asset.FailureReason = reason
	asset.Attempt = attempt
	asset.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[id]; !exists {
		return simpleasset.ErrAssetNotFound
	}

	delete(r.assets, id)
	return nil
}

func statusIn(status simpleasset.AssetStatus, set []simpleasset.AssetStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func copyAsset(asset *simpleasset.Asset) *simpleasset.Asset {
	assetCopy := *asset
	assetCopy.Resolutions = append([]simpleasset.Resolution(nil), asset.Resolutions...)
	if asset.DerivedMetadata != nil {
		md := *asset.DerivedMetadata
		assetCopy.DerivedMetadata = &md
	}
	if asset.ProcessedAt != nil {
		t := *asset.ProcessedAt
		assetCopy.ProcessedAt = &t
	}
	return &assetCopy
}

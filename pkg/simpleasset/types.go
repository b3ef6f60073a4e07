package simpleasset

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetStatus is the domain type for asset lifecycle states.
type AssetStatus string

// Asset status constants (typed).
const (
	AssetStatusPending    AssetStatus = "pending"
	AssetStatusProcessing AssetStatus = "processing"
	AssetStatusCompleted  AssetStatus = "completed"
	AssetStatusFailed     AssetStatus = "failed"
)

// MediaKind classifies an asset for derivation dispatch. It is resolved once
// at ingest time from the declared MIME type; downstream code switches on the
// kind, never on the MIME string.
type MediaKind string

// Media kind constants (typed).
const (
	MediaKindImage    MediaKind = "image"
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
	MediaKindOther    MediaKind = "other"
)

// KindFromMimeType resolves the media kind for a declared MIME type.
func KindFromMimeType(mimeType string) MediaKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaKindImage
	case strings.HasPrefix(mimeType, "video/"):
		return MediaKindVideo
	case strings.HasPrefix(mimeType, "application/"), strings.HasPrefix(mimeType, "text/"):
		return MediaKindDocument
	default:
		return MediaKindOther
	}
}

// Asset represents one uploaded media file and everything derived from it.
//
// PrimaryKey and MediaKind are immutable once set. ThumbnailKey is written at
// most once per successful processing run. Resolutions is append-only; entries
// are only ever removed by deleting the whole asset.
type Asset struct {
	ID             uuid.UUID        `json:"id"`
	OwnerID        uuid.UUID        `json:"owner_id"`
	FileName       string           `json:"file_name,omitempty"`
	MimeType       string           `json:"mime_type"`
	MediaKind      MediaKind        `json:"media_kind"`
	PrimaryKey     string           `json:"primary_key"`
	Size           int64            `json:"size"`
	ThumbnailKey   string           `json:"thumbnail_key,omitempty"`
	Resolutions    []Resolution     `json:"resolutions,omitempty"`
	DerivedMetadata *DerivedMetadata `json:"derived_metadata,omitempty"`
	Status         AssetStatus      `json:"status"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	Attempt        int              `json:"attempt"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	ProcessedAt    *time.Time       `json:"processed_at,omitempty"`
}

// Resolution is one derived variant of the primary blob.
type Resolution struct {
	Label string `json:"label"`
	Key   string `json:"key"`
	Size  int64  `json:"size"`
}

// DerivedMetadata holds structural attributes extracted during derivation.
// Which fields are set depends on the media kind; absent fields stay zero.
type DerivedMetadata struct {
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	Format          string `json:"format"`
	Size            int64  `json:"size"`
	ColorSpace      string `json:"color_space,omitempty"`
	Channels        int    `json:"channels,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	BitRate         int    `json:"bit_rate,omitempty"`
	FrameRate       string `json:"frame_rate,omitempty"`
	AudioCodec      string `json:"audio_codec,omitempty"`
	AudioChannels   int    `json:"audio_channels,omitempty"`
	AudioSampleRate int    `json:"audio_sample_rate,omitempty"`
	Container       string `json:"container,omitempty"`
}

// Job is one enqueued processing request. BlobKey and MediaKind are duplicated
// from the asset record at enqueue time so a worker can start without an extra
// metadata read. Attempt is managed by the queue and starts at 0.
type Job struct {
	ID        uuid.UUID `json:"id"`
	AssetID   uuid.UUID `json:"asset_id"`
	BlobKey   string    `json:"blob_key"`
	MediaKind MediaKind `json:"media_kind"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// CleanupResult reports the outcome of deleting an asset's full artifact set.
// FailedKeys lists blob keys whose deletion failed; such failures are warnings,
// not errors, because a dangling blob is recoverable by a sweep while a
// dangling metadata record with no blob is not.
type CleanupResult struct {
	AssetID     uuid.UUID `json:"asset_id"`
	DeletedKeys []string  `json:"deleted_keys,omitempty"`
	FailedKeys  []string  `json:"failed_keys,omitempty"`
}

// Complete reports whether every blob deletion succeeded.
func (r CleanupResult) Complete() bool {
	return len(r.FailedKeys) == 0
}

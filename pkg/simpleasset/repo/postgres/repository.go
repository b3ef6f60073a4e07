package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleasset.Repository using PostgreSQL.
// The schema lives in migrations/001_create_asset.sql.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "primary_key") {
				return fmt.Errorf("blob key already registered")
			}
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simpleasset.ErrAssetNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const assetColumns = `id, owner_id, file_name, mime_type, media_kind, primary_key,
       size, thumbnail_key, resolutions, derived_metadata, status,
       failure_reason, attempt, created_at, updated_at, processed_at`

func (r *Repository) CreateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	resolutions, derived, err := marshalDerived(asset.Resolutions, asset.DerivedMetadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO asset (
			id, owner_id, file_name, mime_type, media_kind, primary_key,
			size, thumbnail_key, resolutions, derived_metadata, status,
			failure_reason, attempt, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.db.Exec(ctx, query,
		asset.ID, asset.OwnerID, asset.FileName, asset.MimeType,
		string(asset.MediaKind), asset.PrimaryKey, asset.Size,
		nullString(asset.ThumbnailKey), resolutions, derived,
		string(asset.Status), nullString(asset.FailureReason),
		asset.Attempt, asset.CreatedAt, asset.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create asset", err)
	}

	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*simpleasset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE id = $1`

	asset, err := scanAsset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleasset.ErrAssetNotFound
		}
		return nil, r.handlePostgresError("get asset", err)
	}
	return asset, nil
}

func (r *Repository) ListAssets(ctx context.Context, ownerID uuid.UUID) ([]*simpleasset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list assets", err)
	}
	defer rows.Close()

	var assets []*simpleasset.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, r.handlePostgresError("list assets", err)
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status simpleasset.AssetStatus, attempt int, allowedFrom ...simpleasset.AssetStatus) error {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}

	query := `
		UPDATE asset SET
			status = $2,
			attempt = $3,
			failure_reason = CASE WHEN $2 = 'processing' THEN NULL ELSE failure_reason END,
			updated_at = NOW()
		WHERE id = $1 AND (cardinality($4::text[]) = 0 OR status = ANY($4))`

	tag, err := r.db.Exec(ctx, query, id, string(status), attempt, from)
	if err != nil {
		return r.handlePostgresError("update status", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetAsset(ctx, id); err != nil {
			return err
		}
		return simpleasset.ErrInvalidStatusTransition
	}
	return nil
}

func (r *Repository) CompleteProcessing(ctx context.Context, params simpleasset.CompleteProcessingParams) error {
	resolutions, derived, err := marshalDerived(params.Resolutions, params.DerivedMetadata)
	if err != nil {
		return err
	}

	// Attempt fencing: a stale worker finishing after a newer attempt must not
	// overwrite the newer attempt's result.
	query := `
		UPDATE asset SET
			derived_metadata = $2,
			thumbnail_key = $3,
			resolutions = $4,
			status = 'completed',
			failure_reason = NULL,
			attempt = $5,
			updated_at = NOW(),
			processed_at = NOW()
		WHERE id = $1 AND attempt <= $5`

	tag, err := r.db.Exec(ctx, query, params.AssetID, derived,
		nullString(params.ThumbnailKey), resolutions, params.Attempt)
	if err != nil {
		return r.handlePostgresError("complete processing", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetAsset(ctx, params.AssetID); err != nil {
			return err
		}
		return simpleasset.ErrStaleAttempt
	}
	return nil
}

func (r *Repository) FailProcessing(ctx context.Context, id uuid.UUID, reason string, attempt int) error {
	query := `
		UPDATE asset SET
			status = 'failed',
			failure_reason = $2,
			attempt = $3,
			updated_at = NOW()
		WHERE id = $1 AND attempt <= $3`

	tag, err := r.db.Exec(ctx, query, id, reason, attempt)
	if err != nil {
		return r.handlePostgresError("fail processing", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetAsset(ctx, id); err != nil {
			return err
		}
		return simpleasset.ErrStaleAttempt
	}
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM asset WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete asset", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleasset.ErrAssetNotFound
	}
	return nil
}

func marshalDerived(resolutions []simpleasset.Resolution, derived *simpleasset.DerivedMetadata) ([]byte, []byte, error) {
	resJSON, err := json.Marshal(resolutions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal resolutions: %w", err)
	}
	var derivedJSON []byte
	if derived != nil {
		derivedJSON, err = json.Marshal(derived)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal derived metadata: %w", err)
		}
	}
	return resJSON, derivedJSON, nil
}

func scanAsset(row pgx.Row) (*simpleasset.Asset, error) {
	var (
		asset         simpleasset.Asset
		mediaKind     string
		status        string
		thumbnailKey  *string
		failureReason *string
		resolutions   []byte
		derived       []byte
		processedAt   *time.Time
	)

	err := row.Scan(
		&asset.ID, &asset.OwnerID, &asset.FileName, &asset.MimeType,
		&mediaKind, &asset.PrimaryKey, &asset.Size, &thumbnailKey,
		&resolutions, &derived, &status, &failureReason,
		&asset.Attempt, &asset.CreatedAt, &asset.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	asset.MediaKind = simpleasset.MediaKind(mediaKind)
	asset.Status = simpleasset.AssetStatus(status)
	if thumbnailKey != nil {
		asset.ThumbnailKey = *thumbnailKey
	}
	if failureReason != nil {
		asset.FailureReason = *failureReason
	}
	if len(resolutions) > 0 {
		if err := json.Unmarshal(resolutions, &asset.Resolutions); err != nil {
			return nil, fmt.Errorf("unmarshal resolutions: %w", err)
		}
	}
	if len(derived) > 0 {
		asset.DerivedMetadata = &simpleasset.DerivedMetadata{}
		if err := json.Unmarshal(derived, asset.DerivedMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal derived metadata: %w", err)
		}
	}
	asset.ProcessedAt = processedAt

	return &asset, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

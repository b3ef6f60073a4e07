// Package api exposes the asset pipeline over HTTP using chi and render.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const maxUploadMemory = 32 << 20 // multipart form buffer; larger files spill to disk

// AssetResponse is the response body for an asset
type AssetResponse struct {
	ID              string                       `json:"id"`
	OwnerID         string                       `json:"owner_id"`
	FileName        string                       `json:"file_name"`
	MimeType        string                       `json:"mime_type"`
	MediaKind       string                       `json:"media_kind"`
	Size            int64                        `json:"size"`
	Status          string                       `json:"status"`
	FailureReason   string                       `json:"failure_reason,omitempty"`
	ThumbnailKey    string                       `json:"thumbnail_key,omitempty"`
	Resolutions     []simpleasset.Resolution     `json:"resolutions,omitempty"`
	DerivedMetadata *simpleasset.DerivedMetadata `json:"derived_metadata,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
	ProcessedAt     *time.Time                   `json:"processed_at,omitempty"`
}

// URLResponse is the response body for a presigned URL
type URLResponse struct {
	URL string `json:"url"`
}

// CleanupResponse is the response body for an asset deletion
type CleanupResponse struct {
	AssetID     string   `json:"asset_id"`
	DeletedKeys []string `json:"deleted_keys"`
	FailedKeys  []string `json:"failed_keys,omitempty"`
	Complete    bool     `json:"complete"`
}

// AssetHandler handles HTTP requests for assets using pkg/simpleasset
type AssetHandler struct {
	service simpleasset.Service
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(service simpleasset.Service) *AssetHandler {
	return &AssetHandler{service: service}
}

// Routes returns the routes for assets
func (h *AssetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.UploadAsset)
	r.Get("/", h.ListAssets)
	r.Get("/{id}", h.GetAsset)
	r.Delete("/{id}", h.DeleteAsset)

	r.Get("/{id}/download", h.DownloadAsset)
	r.Get("/{id}/download-url", h.GetDownloadURL)
	r.Get("/{id}/thumbnail-url", h.GetThumbnailURL)
	r.Post("/{id}/reprocess", h.ReprocessAsset)

	return r
}

// UploadAsset accepts a multipart upload and queues it for processing. The
// response is 202: the asset record starts out pending and derivation
// results land on it asynchronously.
func (h *AssetHandler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	ownerIDStr := r.FormValue("owner_id")
	ownerID, err := uuid.Parse(ownerIDStr)
	if err != nil {
		slog.Error("Invalid owner ID", "owner_id", ownerIDStr, "error", err)
		http.Error(w, "Invalid owner ID", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	asset, err := h.service.Ingest(r.Context(), simpleasset.IngestRequest{
		OwnerID:  ownerID,
		FileName: header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Reader:   file,
	})
	if err != nil {
		slog.Error("Failed to ingest asset", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Asset uploaded", "asset_id", asset.ID.String(), "file_name", asset.FileName)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, toAssetResponse(asset))
}

// GetAsset retrieves an asset by ID
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	asset, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		h.renderError(w, "Failed to get asset", id, err)
		return
	}

	render.JSON(w, r, toAssetResponse(asset))
}

// ListAssets retrieves all assets for an owner, newest first
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	ownerIDStr := r.URL.Query().Get("owner_id")
	ownerID, err := uuid.Parse(ownerIDStr)
	if err != nil {
		http.Error(w, "Missing or invalid 'owner_id' parameter", http.StatusBadRequest)
		return
	}

	assets, err := h.service.ListAssets(r.Context(), ownerID)
	if err != nil {
		slog.Error("Failed to list assets", "owner_id", ownerIDStr, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]AssetResponse, 0, len(assets))
	for _, asset := range assets {
		resp = append(resp, toAssetResponse(asset))
	}
	render.JSON(w, r, resp)
}

// DownloadAsset streams the primary blob
func (h *AssetHandler) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	asset, rc, err := h.service.Download(r.Context(), id)
	if err != nil {
		h.renderError(w, "Failed to download asset", id, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", asset.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+asset.FileName+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Failed to stream asset", "asset_id", id.String(), "error", err)
	}
}

// GetDownloadURL returns a time-limited URL for the primary blob
func (h *AssetHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	url, err := h.service.GetDownloadURL(r.Context(), id)
	if err != nil {
		h.renderError(w, "Failed to get download URL", id, err)
		return
	}

	render.JSON(w, r, URLResponse{URL: url})
}

// GetThumbnailURL returns a time-limited URL for the thumbnail
func (h *AssetHandler) GetThumbnailURL(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	url, err := h.service.GetThumbnailURL(r.Context(), id)
	if err != nil {
		h.renderError(w, "Failed to get thumbnail URL", id, err)
		return
	}

	render.JSON(w, r, URLResponse{URL: url})
}

// ReprocessAsset enqueues a fresh derivation job for an existing asset
func (h *AssetHandler) ReprocessAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Reprocess(r.Context(), id); err != nil {
		h.renderError(w, "Failed to reprocess asset", id, err)
		return
	}

	slog.Info("Asset reprocess queued", "asset_id", id.String())
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "queued"})
}

// DeleteAsset deletes an asset's blobs and metadata record
func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	result, err := h.service.DeleteAsset(r.Context(), id)
	if err != nil {
		h.renderError(w, "Failed to delete asset", id, err)
		return
	}

	slog.Info("Asset deleted", "asset_id", id.String(), "failed_keys", len(result.FailedKeys))
	render.JSON(w, r, CleanupResponse{
		AssetID:     result.AssetID.String(),
		DeletedKeys: result.DeletedKeys,
		FailedKeys:  result.FailedKeys,
		Complete:    result.Complete(),
	})
}

func (h *AssetHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Invalid asset ID", "asset_id", idStr, "error", err)
		http.Error(w, "Invalid asset ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *AssetHandler) renderError(w http.ResponseWriter, msg string, id uuid.UUID, err error) {
	slog.Error(msg, "asset_id", id.String(), "error", err)
	switch {
	case errors.Is(err, simpleasset.ErrAssetNotFound), errors.Is(err, simpleasset.ErrObjectNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, simpleasset.ErrInvalidStatusTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toAssetResponse(asset *simpleasset.Asset) AssetResponse {
	return AssetResponse{
		ID:              asset.ID.String(),
		OwnerID:         asset.OwnerID.String(),
		FileName:        asset.FileName,
		MimeType:        asset.MimeType,
		MediaKind:       string(asset.MediaKind),
		Size:            asset.Size,
		Status:          string(asset.Status),
		FailureReason:   asset.FailureReason,
		ThumbnailKey:    asset.ThumbnailKey,
		Resolutions:     asset.Resolutions,
		DerivedMetadata: asset.DerivedMetadata,
		CreatedAt:       asset.CreatedAt,
		UpdatedAt:       asset.UpdatedAt,
		ProcessedAt:     asset.ProcessedAt,
	}
}

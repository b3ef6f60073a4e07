package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	memoryqueue "github.com/tendant/simple-asset/pkg/simpleasset/queue/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
)

// setupAssetHandlerTest creates an AssetHandler backed by in-memory components
func setupAssetHandlerTest(t *testing.T) (*AssetHandler, simpleasset.Service, *memory.Repository) {
	t.Helper()

	repo := memory.New()
	service, err := simpleasset.New(
		simpleasset.WithRepository(repo),
		simpleasset.WithBlobStore(memorystorage.New()),
		simpleasset.WithQueue(memoryqueue.New(memoryqueue.Config{})),
	)
	require.NoError(t, err)

	return NewAssetHandler(service), service, repo
}

func newRouter(handler *AssetHandler) chi.Router {
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	return r
}

// multipartUpload builds a multipart body with an owner_id field and one file
func multipartUpload(t *testing.T, ownerID, fileName, mimeType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("owner_id", ownerID))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func uploadTestAsset(t *testing.T, router chi.Router, ownerID uuid.UUID) AssetResponse {
	t.Helper()

	body, contentType := multipartUpload(t, ownerID.String(), "photo.jpg", "image/jpeg", []byte("jpeg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp AssetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAssetHandler_UploadAsset(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, _, _ := setupAssetHandlerTest(t)
		router := newRouter(handler)
		ownerID := uuid.New()

		resp := uploadTestAsset(t, router, ownerID)

		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, ownerID.String(), resp.OwnerID)
		assert.Equal(t, "photo.jpg", resp.FileName)
		assert.Equal(t, "image/jpeg", resp.MimeType)
		assert.Equal(t, "image", resp.MediaKind)
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("invalid owner id", func(t *testing.T) {
		handler, _, _ := setupAssetHandlerTest(t)
		router := newRouter(handler)

		body, contentType := multipartUpload(t, "not-a-uuid", "photo.jpg", "image/jpeg", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file part", func(t *testing.T) {
		handler, _, _ := setupAssetHandlerTest(t)
		router := newRouter(handler)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("owner_id", uuid.NewString()))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAssetHandler_GetAsset(t *testing.T) {
	handler, _, _ := setupAssetHandlerTest(t)
	router := newRouter(handler)
	created := uploadTestAsset(t, router, uuid.New())

	t.Run("success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/"+created.ID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp AssetResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, created.ID, resp.ID)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/"+uuid.NewString(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAssetHandler_ListAssets(t *testing.T) {
	handler, _, _ := setupAssetHandlerTest(t)
	router := newRouter(handler)

	ownerID := uuid.New()
	uploadTestAsset(t, router, ownerID)
	uploadTestAsset(t, router, ownerID)
	uploadTestAsset(t, router, uuid.New())

	t.Run("filters by owner", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?owner_id="+ownerID.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp []AssetResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp, 2)
	})

	t.Run("missing owner id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAssetHandler_DownloadAsset(t *testing.T) {
	handler, _, _ := setupAssetHandlerTest(t)
	router := newRouter(handler)
	created := uploadTestAsset(t, router, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/"+created.ID+"/download", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "photo.jpg")
	assert.Equal(t, "jpeg bytes", w.Body.String())
}

func TestAssetHandler_GetThumbnailURL(t *testing.T) {
	handler, _, _ := setupAssetHandlerTest(t)
	router := newRouter(handler)
	created := uploadTestAsset(t, router, uuid.New())

	// Nothing processed yet: no thumbnail to link to
	req := httptest.NewRequest(http.MethodGet, "/"+created.ID+"/thumbnail-url", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssetHandler_ReprocessAsset(t *testing.T) {
	handler, _, repo := setupAssetHandlerTest(t)
	router := newRouter(handler)
	created := uploadTestAsset(t, router, uuid.New())
	assetID := uuid.MustParse(created.ID)

	t.Run("pending asset is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/"+created.ID+"/reprocess", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("completed asset conflicts", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, repo.UpdateStatus(ctx, assetID, simpleasset.AssetStatusProcessing, 0))
		require.NoError(t, repo.CompleteProcessing(ctx, simpleasset.CompleteProcessingParams{AssetID: assetID}))

		req := httptest.NewRequest(http.MethodPost, "/"+created.ID+"/reprocess", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAssetHandler_DeleteAsset(t *testing.T) {
	handler, service, _ := setupAssetHandlerTest(t)
	router := newRouter(handler)
	created := uploadTestAsset(t, router, uuid.New())

	req := httptest.NewRequest(http.MethodDelete, "/"+created.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp CleanupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Complete)
	assert.Len(t, resp.DeletedKeys, 1)

	_, err := service.GetAsset(context.Background(), uuid.MustParse(created.ID))
	assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
}

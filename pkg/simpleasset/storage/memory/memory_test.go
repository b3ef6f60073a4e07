package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "1700000000-abcd1234.txt"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData), "text/plain")
		assert.NoError(t, err)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "text/plain", meta.ContentType)
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		downloadedData, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(downloadedData))
	})

	t.Run("Overwrite", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader("replaced"), "text/plain")
		require.NoError(t, err)

		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "replaced", string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.Download(ctx, testKey)
		assert.ErrorIs(t, err, simpleasset.ErrObjectNotFound)
	})

	t.Run("DownloadMissing", func(t *testing.T) {
		_, err := backend.Download(ctx, "no-such-key")
		assert.ErrorIs(t, err, simpleasset.ErrObjectNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := backend.Delete(ctx, "no-such-key")
		assert.ErrorIs(t, err, simpleasset.ErrObjectNotFound)
	})

	t.Run("GetObjectMetaMissing", func(t *testing.T) {
		_, err := backend.GetObjectMeta(ctx, "no-such-key")
		assert.ErrorIs(t, err, simpleasset.ErrObjectNotFound)
	})

	t.Run("GetDownloadURL", func(t *testing.T) {
		_, err := backend.GetDownloadURL(ctx, testKey, "file.txt")
		assert.Error(t, err, "memory backend has no URL surface")
	})
}

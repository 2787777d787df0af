package upload

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal valid PNG header; enough for content sniffing.
var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestDiskStorageUpload(t *testing.T) {
	storage, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	ref, err := storage.Upload(context.Background(), pngBytes)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".png"), "sniffed extension, got %s", ref)
	assert.NotContains(t, ref, "/")

	data, err := storage.Open(ref)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestDiskStorageUnknownContentType(t *testing.T) {
	storage, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	ref, err := storage.Upload(context.Background(), []byte("plain text, not an image"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".bin"))
}

func TestDiskStorageOpenRejectsTraversal(t *testing.T) {
	storage, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	_, err = storage.Open("../../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid upload reference")
}

func TestDiskStorageCancelledContext(t *testing.T) {
	storage, err := NewDiskStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = storage.Upload(ctx, pngBytes)
	assert.Error(t, err)
}

package upload_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NighHunter/multi-chat-backend/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveBlob(t *testing.T) {
	root := t.TempDir()
	store, err := upload.NewStore(root, "/uploads")
	require.NoError(t, err)

	data := []byte("report contents")
	info, err := store.SaveBlob("Report Final.PDF", data, "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "Report Final.PDF", info.Filename)
	assert.Equal(t, "application/pdf", info.ContentType)
	require.True(t, strings.HasPrefix(info.URL, "/uploads/"))

	// The stored name is opaque but keeps the extension.
	stored := strings.TrimPrefix(info.URL, "/uploads/")
	assert.NotEqual(t, "Report Final.PDF", stored)
	assert.True(t, strings.HasSuffix(stored, ".PDF"))

	onDisk, err := os.ReadFile(filepath.Join(root, stored))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestStore_SaveBlob_DistinctNames(t *testing.T) {
	store, err := upload.NewStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	first, err := store.SaveBlob("notes.txt", []byte("a"), "text/plain")
	require.NoError(t, err)
	second, err := store.SaveBlob("notes.txt", []byte("b"), "text/plain")
	require.NoError(t, err)

	assert.NotEqual(t, first.URL, second.URL)
}

func TestStore_SaveAvatar(t *testing.T) {
	root := t.TempDir()
	store, err := upload.NewStore(root, "/uploads")
	require.NoError(t, err)

	url, err := store.SaveAvatar("me.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/avatars/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	stored := strings.TrimPrefix(url, "/uploads/")
	onDisk, err := os.ReadFile(filepath.Join(root, stored))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), onDisk)
}

func TestStore_SaveAvatar_NoExtensionFallsBack(t *testing.T) {
	store, err := upload.NewStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	url, err := store.SaveAvatar("avatar", []byte("raw"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".png"))
}

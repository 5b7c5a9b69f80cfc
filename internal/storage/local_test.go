package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microlend/pkg/config"
	"microlend/pkg/errors"
	"microlend/pkg/logger"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(config.StorageConfig{
		BasePath:      t.TempDir(),
		PublicBaseURL: "http://localhost:8080/uploads",
		MaxFileSize:   1024,
	}, logger.NewNop())
	require.NoError(t, err)
	return store
}

func TestPutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url, err := store.Put(ctx, "requests/abc/id_front.png", []byte("fake-png"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/requests/abc/id_front.png", url)

	data, err := store.Get(ctx, "requests/abc/id_front.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png"), data)
}

func TestPutRejectsOversizedFile(t *testing.T) {
	store := newTestStore(t)

	big := make([]byte, 2048)
	_, err := store.Put(context.Background(), "requests/abc/id_front.png", big)
	assert.ErrorIs(t, err, errors.ErrFileTooLarge)
}

func TestPutRejectsDisallowedExtension(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put(context.Background(), "requests/abc/payload.exe", []byte("x"))
	assert.ErrorIs(t, err, errors.ErrFileTypeNotAllowed)
}

func TestPutRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put(context.Background(), "../outside.png", []byte("x"))
	assert.Error(t, err)

	_, err = store.Get(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestDeletePrefixRemovesRequestDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "requests/abc/id_front.png", []byte("a"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "requests/abc/signature.png", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, store.DeletePrefix(ctx, "requests/abc"))

	_, err = store.Get(ctx, "requests/abc/id_front.png")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
	_, err = store.Get(ctx, "requests/abc/signature.png")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestDeleteMissingFileIsNoError(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Delete(context.Background(), "requests/missing/file.png"))
}

func TestKeyFromURL(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "contracts/loan-1.pdf", store.KeyFromURL("http://localhost:8080/uploads/contracts/loan-1.pdf"))
	assert.Equal(t, "", store.KeyFromURL("https://elsewhere.example/x.pdf"))
}

func TestFilesLandUnderBasePath(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(config.StorageConfig{
		BasePath:      base,
		PublicBaseURL: "http://localhost:8080/uploads",
		MaxFileSize:   1024,
	}, logger.NewNop())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "contracts/loan-1.pdf", []byte("%PDF-"))
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(base, "contracts", "loan-1.pdf"))
	assert.NoError(t, statErr)
}

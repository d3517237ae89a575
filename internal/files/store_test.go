package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir(), "http://localhost:8080/files/")
	assert.NoError(t, err)
	return store
}

func TestFSStoreUploadAndOpen(t *testing.T) {
	store := newTestStore(t)

	err := store.Upload("patient-1/scan.png", []byte("fake png"))
	assert.NoError(t, err)

	full, err := store.Open("patient-1/scan.png")
	assert.NoError(t, err)

	data, err := os.ReadFile(full)
	assert.NoError(t, err)
	assert.Equal(t, []byte("fake png"), data)
}

func TestFSStorePublicURL(t *testing.T) {
	store := newTestStore(t)

	url := store.PublicURL("patient-1/scan.png")
	assert.Equal(t, "http://localhost:8080/files/patient-1/scan.png", url)
}

func TestFSStoreDelete(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.Upload("a/b.pdf", []byte("pdf")))
	assert.NoError(t, store.Delete("a/b.pdf"))

	_, err := store.Open("a/b.pdf")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	assert.ErrorIs(t, store.Delete("a/b.pdf"), ErrBlobNotFound)
}

func TestFSStoreRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(filepath.Join(root, "uploads"), "http://localhost/files")
	assert.NoError(t, err)

	assert.ErrorIs(t, store.Upload("../outside.txt", []byte("nope")), ErrInvalidPath)
	assert.ErrorIs(t, store.Upload("", []byte("nope")), ErrInvalidPath)

	_, err = store.Open("../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestFSStoreRejectsOversizedBlob(t *testing.T) {
	store := newTestStore(t)

	err := store.Upload("big.bin", make([]byte, MaxFileSize+1))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

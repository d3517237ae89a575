package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrBlobNotFound = errors.New("file blob not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrInvalidPath  = errors.New("invalid file path")
	ErrMissingName  = errors.New("file name is required")
	ErrContentType  = errors.New("content type is not allowed")
)

// MaxFileSize caps a single patient upload at 25 MB.
const MaxFileSize = 25 * 1024 * 1024

// AllowedContentTypes lists the file types patients and staff may attach.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/pdf": true,
	"text/plain":      true,
}

// Store is the blob half of patient file attachments; metadata rows live in
// the patient_uploads table next to it.
type Store interface {
	Upload(path string, data []byte) error
	PublicURL(path string) string
	Delete(path string) error
}

// FSStore keeps blobs on the local filesystem under a single root and serves
// them through a configured public URL prefix.
type FSStore struct {
	root      string
	publicURL string
}

func NewFSStore(root, publicURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &FSStore{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// resolve joins path under the root and refuses anything that escapes it.
func (s *FSStore) resolve(path string) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidPath
	}
	return full, nil
}

func (s *FSStore) Upload(path string, data []byte) error {
	if len(data) > MaxFileSize {
		return ErrFileTooLarge
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

func (s *FSStore) PublicURL(path string) string {
	return s.publicURL + "/" + strings.TrimLeft(path, "/")
}

func (s *FSStore) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Open returns the filesystem location backing a blob, for the file-serving
// handler.
func (s *FSStore) Open(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", ErrBlobNotFound
		}
		return "", err
	}
	return full, nil
}

// Local filesystem storage for applicant documents, signatures and
// generated PDFs. Files live under a configured base path and are served
// back through a public base URL; keys are relative paths such as
// requests/<id>/id_front.png or contracts/<loan-id>.pdf.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"microlend/pkg/config"
	"microlend/pkg/errors"
	"microlend/pkg/logger"
)

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".pdf"}

type LocalStore struct {
	basePath      string
	publicBaseURL string
	maxFileSize   int64
	logger        logger.Logger
}

func NewLocalStore(cfg config.StorageConfig, log logger.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage directory")
	}

	return &LocalStore{
		basePath:      cfg.BasePath,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxFileSize:   cfg.MaxFileSize,
		logger:        log,
	}, nil
}

// Put writes data under the given key and returns its public URL.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if int64(len(data)) > s.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", errors.ErrFileTooLarge, len(data), s.maxFileSize)
	}

	key, err := s.cleanKey(key)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(key))
	if !extensionAllowed(ext) {
		return "", fmt.Errorf("%w: %s", errors.ErrFileTypeNotAllowed, ext)
	}

	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create storage directory")
	}

	start := time.Now()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write file")
	}

	s.logger.Info("File stored", map[string]interface{}{
		"event":       "file_stored",
		"key":         key,
		"file_size":   len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return s.URL(key), nil
}

// Get reads a stored file back. Used when embedding signatures into
// contract PDFs.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := s.cleanKey(key)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.ErrFileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	key, err := s.cleanKey(key)
	if err != nil {
		return err
	}

	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete file")
	}

	return nil
}

// DeletePrefix removes everything under a key prefix, e.g. all documents
// belonging to one request.
func (s *LocalStore) DeletePrefix(ctx context.Context, prefix string) error {
	prefix, err := s.cleanKey(prefix)
	if err != nil {
		return err
	}

	path := filepath.Join(s.basePath, filepath.FromSlash(prefix))
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrap(err, "failed to delete files")
	}

	return nil
}

// URL maps a storage key to its public URL.
func (s *LocalStore) URL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL reverses URL for keys minted by this store. It returns an
// empty string for foreign URLs.
func (s *LocalStore) KeyFromURL(url string) string {
	if !strings.HasPrefix(url, s.publicBaseURL+"/") {
		return ""
	}
	return strings.TrimPrefix(url, s.publicBaseURL+"/")
}

func (s *LocalStore) cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: invalid key %q", errors.ErrFileNotFound, key)
	}
	return clean, nil
}

func extensionAllowed(ext string) bool {
	for _, allowed := range allowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

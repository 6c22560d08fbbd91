package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

// LocalStorage keeps blobs under a base directory
type LocalStorage struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string, logger *zap.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, apperrors.Storage("failed to create base path", err)
	}

	return &LocalStorage{
		basePath: basePath,
		logger:   logger.Named("storage.local"),
	}, nil
}

func (s *LocalStorage) path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.basePath, key)
}

// Store writes reader to key through a temp file so readers never see a
// half-written document.
func (s *LocalStorage) Store(ctx context.Context, key string, reader io.Reader) error {
	path := s.path(key)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Storage("failed to create directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperrors.Storage("failed to create file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return apperrors.Storage("failed to write file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Storage("failed to close file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Storage("failed to move file into place", err)
	}

	s.logger.Debug("stored blob", zap.String("path", path))
	return nil
}

// Retrieve opens key for reading
func (s *LocalStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound(fmt.Sprintf("blob %s not found", key))
		}
		return nil, apperrors.Storage("failed to open file", err)
	}
	return file, nil
}

// Delete removes key
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NotFound(fmt.Sprintf("blob %s not found", key))
		}
		return apperrors.Storage("failed to delete file", err)
	}
	return nil
}

// Exists reports whether key is present
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.Storage("failed to stat file", err)
}

// URL returns a file:// URL for key
func (s *LocalStorage) URL(key string) string {
	path := s.path(key)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + path
}

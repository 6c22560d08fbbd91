// Package storage writes export documents to the local filesystem or S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/narwhalmedia/deadarchive/internal/config"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

// Store is a key/value blob store
type Store interface {
	Store(ctx context.Context, key string, reader io.Reader) error
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns where key lives, for logging and user output
	URL(key string) string
}

var (
	_ Store = (*LocalStorage)(nil)
	_ Store = (*S3Storage)(nil)
)

// New builds the store selected by cfg.Backend
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, logger)
	case "local", "":
		return NewLocalStorage(cfg.LocalDir, logger)
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("unsupported storage backend %q", cfg.Backend))
	}
}

// ForTarget resolves an output target into a store and a key. Targets of the
// form s3://bucket/key go to that bucket; anything else is a local path
// relative to the configured directory, or absolute.
func ForTarget(ctx context.Context, target string, cfg config.StorageConfig, logger *zap.Logger) (Store, string, error) {
	if rest, ok := strings.CutPrefix(target, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return nil, "", apperrors.BadRequest(fmt.Sprintf("invalid s3 target %q", target))
		}
		store, err := NewS3Storage(ctx, bucket, "", cfg.S3Region, logger)
		if err != nil {
			return nil, "", err
		}
		return store, key, nil
	}

	if target == "" {
		return nil, "", apperrors.BadRequest("output target is required")
	}
	if cfg.Backend == "s3" {
		store, err := NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, logger)
		if err != nil {
			return nil, "", err
		}
		return store, target, nil
	}

	dir := cfg.LocalDir
	if strings.HasPrefix(target, "/") || dir == "" {
		dir = "."
	}
	store, err := NewLocalStorage(dir, logger)
	if err != nil {
		return nil, "", err
	}
	return store, target, nil
}

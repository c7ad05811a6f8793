// Package storage keeps uploaded post images in an object store.
package storage

import (
	"context"
	"fmt"

	"strayland/internal/config"
)

// ObjectStore stores and removes objects by key and reports their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the ObjectStore selected by STORAGE_DRIVER.
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverS3:
		return NewS3Store(S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UseSSL:          cfg.S3UseSSL,
			PublicURL:       cfg.S3PublicURL,
		})
	case config.StorageDriverLocal, "":
		return NewLocalStore(cfg.LocalStorageDir, cfg.LocalStorageURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

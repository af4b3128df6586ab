// Package archive stores the original files behind each product import.
//
// Two drivers exist:
//   - "local": a directory on this host
//   - "s3":    any S3-compatible bucket (AWS S3, MinIO, R2)
package archive

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/inventory/internal/config"
)

// Disk is what the import pipeline writes to.
type Disk interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// New returns the configured disk, or nil when archiving is off.
func New(ctx context.Context, cfg config.ArchiveConfig) (Disk, error) {
	switch cfg.Driver {
	case "", config.ArchiveNone:
		return nil, nil
	case config.ArchiveLocal:
		return NewLocal(cfg.LocalRoot)
	case config.ArchiveS3:
		return NewS3(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Key:      cfg.S3Key,
			Secret:   cfg.S3Secret,
		})
	}
	return nil, fmt.Errorf("archive: unknown driver %q", cfg.Driver)
}

package storage

import (
	"context"

	"github.com/andresuchdata/mixplan/backend-go/internal/config"
)

// ObjectInfo represents metadata for a stored export.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the plan exports need.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// New returns the S3 client when storage is enabled, or a store rooted at dataDir otherwise.
func New(cfg config.StorageConfig, dataDir string) (ObjectStorage, error) {
	if !cfg.Enabled {
		return NewLocalStorage(dataDir), nil
	}
	return NewS3Client(S3Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
}

// Package objectstore uploads derived run artifacts to S3-compatible storage.
package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/citycat-pipeline/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// putter is the subset of *minio.Client used for uploads.
type putter interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store uploads files under <run_id>/ in a single bucket.
// It implements pipeline.ArtifactStore.
type Store struct {
	client putter
	bucket string
	logger *slog.Logger
}

// NewStore connects to the configured endpoint. The bucket must already exist.
func NewStore(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.ArtifactEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ArtifactAccessKey, cfg.ArtifactSecretKey, ""),
		Secure: cfg.ArtifactUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact client: %w", err)
	}
	return &Store{client: client, bucket: cfg.ArtifactBucket, logger: logger}, nil
}

// Upload copies each local file to <runID>/<base name> and returns the
// object keys in input order.
func (s *Store) Upload(ctx context.Context, runID string, files []string) ([]string, error) {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("check artifact bucket: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("artifact bucket %q does not exist", s.bucket)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := ObjectKey(runID, f)
		info, err := s.client.FPutObject(ctx, s.bucket, key, f, minio.PutObjectOptions{
			ContentType: contentType(f),
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", filepath.Base(f), err)
		}
		s.logger.Debug("artifact uploaded", "key", key, "size", info.Size)
		keys = append(keys, key)
	}
	return keys, nil
}

// ObjectKey is the bucket key for a local artifact file.
func ObjectKey(runID, file string) string {
	return path.Join(runID, filepath.Base(file))
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".nc":
		return "application/x-netcdf"
	case ".zip":
		return "application/zip"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".asc", ".prj", ".txt":
		return "text/plain"
	}
	return "application/octet-stream"
}

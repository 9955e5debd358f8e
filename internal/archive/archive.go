// Package archive mirrors submitted documents into a MinIO bucket so the
// knowledge base is not the only durable copy of ERP payloads.
package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docbridge/internal/config"
)

// Mirror uploads document payloads into object storage.
type Mirror struct {
	client *minio.Client
	bucket string
}

// New builds a mirror from configuration. It returns nil when archiving is
// disabled; callers treat a nil mirror as "do not archive".
func New(cfg *config.Config) (*Mirror, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	client, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
		Secure: cfg.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &Mirror{client: client, bucket: cfg.Archive.Bucket}, nil
}

// EnsureBucket creates the archive bucket if it does not exist yet.
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	if m == nil {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

// Store uploads the file at path and returns its archive location as a
// minio:// URL. Object keys are random so rescans of a changed file never
// overwrite the copy of an earlier revision.
func (m *Mirror) Store(ctx context.Context, path string) (string, error) {
	if m == nil {
		return "", nil
	}
	key := uuid.New().String() + strings.ToLower(filepath.Ext(path))
	if _, err := m.client.FPutObject(ctx, m.bucket, key, path, minio.PutObjectOptions{}); err != nil {
		return "", fmt.Errorf("archive %s: %w", filepath.Base(path), err)
	}
	return fmt.Sprintf("minio://%s/%s", m.bucket, key), nil
}

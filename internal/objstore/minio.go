// Package objstore wraps the S3-compatible object storage that holds
// final audio artifacts.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/civicbrief/civicbrief/internal/config"
)

// MinioStore implements the uploader's ObjectStore contract on a
// MinIO/S3 bucket.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// NewMinioStore creates a MinioStore from storage configuration.
func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &MinioStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist. Called once at
// startup; harmless when the bucket is already there.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PutAudio uploads an audio object and returns its public URL.
func (s *MinioStore) PutAudio(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "audio/mpeg"})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return s.publicBaseURL + "/" + key, nil
}

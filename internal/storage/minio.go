package storage

import (
	"alcyxob/upload-broker/internal/config"
	"alcyxob/upload-broker/internal/domain"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioBackend implements Backend using the MinIO client against any
// S3-compatible service (MinIO, ArvanCloud, Ceph RGW).
type minioBackend struct {
	client *minio.Client
	bucket string
}

// NewMinioBackend creates a MinIO client. Setting Region keeps presigning fully
// local; without it the client would look the bucket location up first.
func NewMinioBackend(cfg config.MinioConfig) (Backend, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("%w: minio endpoint and bucket_name are required", ErrBackendUnavailable)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create minio client: %v", ErrBackendUnavailable, err)
	}

	return &minioBackend{client: client, bucket: cfg.BucketName}, nil
}

func (m *minioBackend) Name() domain.Backend { return domain.BackendMinio }

// IssueWriteGrant presigns a PUT with Content-Type included in the signed headers.
func (m *minioBackend) IssueWriteGrant(ctx context.Context, req GrantRequest) (*domain.WriteGrant, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ttl := req.ttl()
	contentType := req.contentType()

	signed := http.Header{}
	signed.Set("Content-Type", contentType)

	u, err := m.client.PresignHeader(ctx, http.MethodPut, m.bucket, req.Key, ttl, nil, signed)
	if err != nil {
		return nil, fmt.Errorf("presign put object %q: %w", req.Key, err)
	}
	return putGrant(u.String(), map[string]string{"Content-Type": contentType}, time.Now().Add(ttl)), nil
}

// Exists stats the object; only NoSuchKey counts as absent.
func (m *minioBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %q: %w", key, err)
}

package storage

import (
	"alcyxob/upload-broker/internal/config"
	"alcyxob/upload-broker/internal/domain"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsConfiguredBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want domain.Backend
	}{
		{
			name: "local",
			cfg:  config.StorageConfig{Backend: domain.BackendLocal, Local: config.LocalConfig{Root: t.TempDir()}},
			want: domain.BackendLocal,
		},
		{
			name: "aws",
			cfg: config.StorageConfig{Backend: domain.BackendAWS, S3: config.S3Config{
				Region: "us-east-1", AccessKeyID: "AKID", SecretAccessKey: "secret", BucketName: "uploads",
			}},
			want: domain.BackendAWS,
		},
		{
			name: "minio",
			cfg: config.StorageConfig{Backend: domain.BackendMinio, Minio: config.MinioConfig{
				Endpoint: "127.0.0.1:9000", Region: "us-east-1", AccessKey: "ak", SecretKey: "sk", BucketName: "uploads",
			}},
			want: domain.BackendMinio,
		},
		{
			name: "azure",
			cfg: config.StorageConfig{Backend: domain.BackendAzure, Azure: config.AzureConfig{
				AccountName: "acct", AccountKey: "a2V5", Container: "uploads",
			}},
			want: domain.BackendAzure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(context.Background(), tt.cfg, "http://localhost:8080")
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Name())
		})
	}
}

func TestNew_MisconfiguredBackends(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"unknown", config.StorageConfig{Backend: "ftp"}},
		{"local without root", config.StorageConfig{Backend: domain.BackendLocal}},
		{"aws without bucket", config.StorageConfig{Backend: domain.BackendAWS}},
		{"gcs without bucket", config.StorageConfig{Backend: domain.BackendGCS}},
		{"azure without key", config.StorageConfig{Backend: domain.BackendAzure}},
		{"minio without endpoint", config.StorageConfig{Backend: domain.BackendMinio}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, "")
			assert.ErrorIs(t, err, ErrBackendUnavailable)
		})
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("missing credentials")
	b := Unavailable(domain.BackendGCS, cause)

	assert.Equal(t, domain.BackendGCS, b.Name())

	_, err := b.IssueWriteGrant(context.Background(), GrantRequest{Key: "k"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorContains(t, err, "missing credentials")

	ok, err := b.Exists(context.Background(), "k")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

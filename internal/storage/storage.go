package storage

import (
	"alcyxob/upload-broker/internal/config"
	"alcyxob/upload-broker/internal/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default expiry duration for write grants
const DefaultGrantTTL = 15 * time.Minute

// DefaultContentType is used when the client does not declare one.
const DefaultContentType = "application/octet-stream"

var (
	// ErrBackendUnavailable means the backend client could not be constructed in this process.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrSizeMismatch means a received body did not match the declared size.
	ErrSizeMismatch = errors.New("received size does not match declared size")
)

// GrantRequest describes the single object a write grant is scoped to.
type GrantRequest struct {
	TransactionID string
	Key           string
	ContentType   string
	Size          int64
	TTL           time.Duration
}

func (r GrantRequest) validate() error {
	if r.Key == "" {
		return errors.New("object key is required")
	}
	if r.Size < 0 {
		return errors.New("size must be non-negative")
	}
	return nil
}

func (r GrantRequest) ttl() time.Duration {
	if r.TTL <= 0 {
		return DefaultGrantTTL
	}
	return r.TTL
}

func (r GrantRequest) contentType() string {
	if r.ContentType == "" {
		return DefaultContentType
	}
	return r.ContentType
}

// Backend issues write grants for, and probes the existence of, objects in one
// storage provider.
type Backend interface {
	Name() domain.Backend

	// IssueWriteGrant produces a time-bounded authorization to PUT exactly one key.
	// It never uploads anything.
	IssueWriteGrant(ctx context.Context, req GrantRequest) (*domain.WriteGrant, error)

	// Exists reports (true, nil) when the object is present and (false, nil) when it is
	// definitely absent. Any other outcome is returned as an error and must not be read
	// as either answer.
	Exists(ctx context.Context, key string) (bool, error)
}

// LocalWriter is implemented by backends that receive the bytes themselves.
type LocalWriter interface {
	// Write stores exactly size bytes from r under key, or nothing.
	Write(ctx context.Context, key string, r io.Reader, size int64) error
}

// New constructs the backend selected by cfg.Backend. baseURL is this service's
// public origin, used by the local backend to build upload links.
func New(ctx context.Context, cfg config.StorageConfig, baseURL string) (Backend, error) {
	switch cfg.Backend {
	case domain.BackendAWS:
		return NewS3Backend(ctx, cfg.S3)
	case domain.BackendGCS:
		return NewGCSBackend(ctx, cfg.GCS)
	case domain.BackendAzure:
		return NewAzureBackend(cfg.Azure)
	case domain.BackendMinio:
		return NewMinioBackend(cfg.Minio)
	case domain.BackendLocal:
		return NewLocalBackend(cfg.Local.Root, baseURL)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, cfg.Backend)
	}
}

func putGrant(url string, headers map[string]string, expires time.Time) *domain.WriteGrant {
	return &domain.WriteGrant{
		URL:       url,
		Method:    http.MethodPut,
		Headers:   headers,
		ExpiresAt: expires,
	}
}

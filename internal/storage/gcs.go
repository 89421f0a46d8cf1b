package storage

import (
	"alcyxob/upload-broker/internal/config"
	"alcyxob/upload-broker/internal/domain"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsBackend implements Backend on Google Cloud Storage.
type gcsBackend struct {
	bucketName string
	// Explicit signer; when empty the client's own credentials sign.
	googleAccessID string
	privateKey     []byte

	signURL func(key string, opts *gcs.SignedURLOptions) (string, error)
	attrs   func(ctx context.Context, key string) (*gcs.ObjectAttrs, error)
}

// NewGCSBackend creates a GCS backend using a credentials file when configured
// and Application Default Credentials otherwise.
func NewGCSBackend(ctx context.Context, cfg config.GCSConfig) (Backend, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("%w: gcs bucket_name is not configured", ErrBackendUnavailable)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: gcs client: %v", ErrBackendUnavailable, err)
	}

	var privateKey []byte
	if cfg.PrivateKeyFile != "" {
		privateKey, err = os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read gcs private key: %v", ErrBackendUnavailable, err)
		}
	}

	bucket := client.Bucket(cfg.BucketName)
	return &gcsBackend{
		bucketName:     cfg.BucketName,
		googleAccessID: cfg.GoogleAccessID,
		privateKey:     privateKey,
		signURL:        bucket.SignedURL,
		attrs: func(ctx context.Context, key string) (*gcs.ObjectAttrs, error) {
			return bucket.Object(key).Attrs(ctx)
		},
	}, nil
}

func (g *gcsBackend) Name() domain.Backend { return domain.BackendGCS }

// IssueWriteGrant returns a V4 signed PUT URL with the content type signed in.
func (g *gcsBackend) IssueWriteGrant(_ context.Context, req GrantRequest) (*domain.WriteGrant, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	expires := time.Now().Add(req.ttl())
	contentType := req.contentType()

	opts := &gcs.SignedURLOptions{
		Scheme:      gcs.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     expires,
	}
	if g.googleAccessID != "" {
		opts.GoogleAccessID = g.googleAccessID
		opts.PrivateKey = g.privateKey
	}

	url, err := g.signURL(req.Key, opts)
	if err != nil {
		return nil, fmt.Errorf("sign gcs url %q: %w", req.Key, err)
	}
	return putGrant(url, map[string]string{"Content-Type": contentType}, expires), nil
}

// Exists reads object attributes; only ErrObjectNotExist counts as absent.
func (g *gcsBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.attrs(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gcs.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("gcs attrs %q: %w", key, err)
	}
}

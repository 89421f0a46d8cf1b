package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrivateKey(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func TestGCSBackend_IssueWriteGrant(t *testing.T) {
	b := &gcsBackend{
		bucketName:     "uploads",
		googleAccessID: "signer@project.iam.gserviceaccount.com",
		privateKey:     testPrivateKey(t),
		signURL: func(key string, opts *gcs.SignedURLOptions) (string, error) {
			return gcs.SignedURL("uploads", key, opts)
		},
	}

	grant, err := b.IssueWriteGrant(context.Background(), GrantRequest{
		Key:         "uploads/tx-1/report.pdf",
		ContentType: "application/pdf",
		Size:        1024,
	})
	require.NoError(t, err)

	u, err := url.Parse(grant.URL)
	require.NoError(t, err)
	// The signer derives the lifetime from the absolute expiry, so allow for elapsed time.
	expires, err := strconv.Atoi(u.Query().Get("X-Goog-Expires"))
	require.NoError(t, err)
	assert.InDelta(t, 900, expires, 2)
	assert.Contains(t, u.Query().Get("X-Goog-SignedHeaders"), "content-type")
	assert.Contains(t, u.Path, "uploads/tx-1/report.pdf")
	assert.Equal(t, http.MethodPut, grant.Method)
	assert.Equal(t, "application/pdf", grant.Headers["Content-Type"])
}

func TestGCSBackend_IssueWriteGrant_SignError(t *testing.T) {
	b := &gcsBackend{
		signURL: func(string, *gcs.SignedURLOptions) (string, error) {
			return "", errors.New("no signer available")
		},
	}
	_, err := b.IssueWriteGrant(context.Background(), GrantRequest{Key: "k", Size: 1})
	assert.ErrorContains(t, err, "no signer available")
}

func TestGCSBackend_Exists(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{"present", nil, true, false},
		{"definitely absent", gcs.ErrObjectNotExist, false, false},
		{"probe failed", errors.New("googleapi: Error 403: forbidden"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &gcsBackend{
				attrs: func(context.Context, string) (*gcs.ObjectAttrs, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &gcs.ObjectAttrs{Name: "k"}, nil
				},
			}
			ok, err := b.Exists(context.Background(), "k")
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

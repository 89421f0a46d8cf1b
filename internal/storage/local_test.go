package storage

import (
	"alcyxob/upload-broker/internal/domain"
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend_IssueWriteGrant(t *testing.T) {
	b := NewLocalBackendFs(afero.NewMemMapFs(), "https://files.example.com/")

	grant, err := b.IssueWriteGrant(context.Background(), GrantRequest{
		TransactionID: "tx-1",
		Key:           "uploads/tx-1/report.pdf",
		ContentType:   "application/pdf",
		Size:          1024,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://files.example.com/api/v1/upload/local/tx-1", grant.URL)
	assert.Equal(t, http.MethodPut, grant.Method)
	assert.Equal(t, "application/pdf", grant.Headers["Content-Type"])
	assert.WithinDuration(t, time.Now().Add(DefaultGrantTTL), grant.ExpiresAt, 5*time.Second)
}

func TestLocalBackend_IssueWriteGrant_Preconditions(t *testing.T) {
	b := NewLocalBackendFs(afero.NewMemMapFs(), "")
	ctx := context.Background()

	_, err := b.IssueWriteGrant(ctx, GrantRequest{TransactionID: "tx", Key: "", Size: 1})
	assert.Error(t, err)
	_, err = b.IssueWriteGrant(ctx, GrantRequest{TransactionID: "tx", Key: "k", Size: -1})
	assert.Error(t, err)

	grant, err := b.IssueWriteGrant(ctx, GrantRequest{TransactionID: "tx", Key: "k"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/upload/local/tx", grant.URL)
	assert.Equal(t, DefaultContentType, grant.Headers["Content-Type"])
}

func TestLocalBackend_WriteAndExists(t *testing.T) {
	fsys := afero.NewMemMapFs()
	b := NewLocalBackendFs(fsys, "")
	w := b.(LocalWriter)
	ctx := context.Background()
	key := "uploads/tx-1/report.pdf"

	ok, err := b.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	payload := bytes.Repeat([]byte("x"), 1024)
	require.NoError(t, w.Write(ctx, key, bytes.NewReader(payload), 1024))

	ok, err = b.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := afero.ReadFile(fsys, filepath.FromSlash(key))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalBackend_WriteRejectsSizeMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		size int64
	}{
		{"short body", strings.Repeat("a", 900), 1024},
		{"long body", strings.Repeat("a", 1100), 1024},
		{"non-empty for zero", "a", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			b := NewLocalBackendFs(fsys, "")
			key := "uploads/tx-1/report.pdf"

			err := b.(LocalWriter).Write(context.Background(), key, strings.NewReader(tt.body), tt.size)
			assert.ErrorIs(t, err, ErrSizeMismatch)

			ok, err := b.Exists(context.Background(), key)
			require.NoError(t, err)
			assert.False(t, ok, "rejected upload must not be stored")

			entries, err := afero.ReadDir(fsys, "uploads/tx-1")
			require.NoError(t, err)
			assert.Empty(t, entries, "temp file must be removed")
		})
	}
}

func TestLocalBackend_ZeroByteUpload(t *testing.T) {
	b := NewLocalBackendFs(afero.NewMemMapFs(), "")
	ctx := context.Background()

	require.NoError(t, b.(LocalWriter).Write(ctx, "uploads/tx/empty.txt", strings.NewReader(""), 0))
	ok, err := b.Exists(ctx, "uploads/tx/empty.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewLocalBackend_OnDisk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "media")
	b, err := NewLocalBackend(root, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BackendLocal, b.Name())

	ctx := context.Background()
	require.NoError(t, b.(LocalWriter).Write(ctx, "uploads/tx/a.txt", strings.NewReader("abc"), 3))

	data, err := os.ReadFile(filepath.Join(root, "uploads", "tx", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	// Paths resolving outside the root are never reported as present.
	ok, err := b.Exists(ctx, "../../etc/passwd")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewLocalBackend("", "")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

package storage

import (
	"alcyxob/upload-broker/internal/config"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAzureBackend(t *testing.T, serviceURL string) Backend {
	t.Helper()
	b, err := NewAzureBackend(config.AzureConfig{
		AccountName: "devstoreaccount1",
		AccountKey:  base64.StdEncoding.EncodeToString([]byte("not-a-real-account-key-0123456789")),
		Container:   "uploads",
		ServiceURL:  serviceURL,
	})
	require.NoError(t, err)
	return b
}

func TestAzureBackend_IssueWriteGrant(t *testing.T) {
	b := newTestAzureBackend(t, "")

	grant, err := b.IssueWriteGrant(context.Background(), GrantRequest{
		Key:         "uploads/tx-1/report.pdf",
		ContentType: "application/pdf",
		Size:        1024,
	})
	require.NoError(t, err)

	u, err := url.Parse(grant.URL)
	require.NoError(t, err)
	assert.Equal(t, "devstoreaccount1.blob.core.windows.net", u.Host)
	assert.Equal(t, "/uploads/uploads/tx-1/report.pdf", u.Path)
	assert.NotEmpty(t, u.Query().Get("sig"))
	assert.Equal(t, "cw", u.Query().Get("sp"))

	assert.Equal(t, http.MethodPut, grant.Method)
	assert.Equal(t, "BlockBlob", grant.Headers["x-ms-blob-type"])
	assert.Equal(t, "application/pdf", grant.Headers["Content-Type"])
}

func TestAzureBackend_Exists(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorCode string
		want      bool
		wantErr   bool
	}{
		{"present", http.StatusOK, "", true, false},
		{"definitely absent", http.StatusNotFound, "BlobNotFound", false, false},
		{"container missing is a probe failure", http.StatusNotFound, "ContainerNotFound", false, true},
		{"probe failed", http.StatusForbidden, "AuthorizationFailure", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.errorCode != "" {
					w.Header().Set("x-ms-error-code", tt.errorCode)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			b := newTestAzureBackend(t, srv.URL+"/devstoreaccount1/")
			ok, err := b.Exists(context.Background(), "uploads/tx-1/report.pdf")

			assert.Equal(t, tt.want, ok)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewAzureBackend_RequiresCredentials(t *testing.T) {
	_, err := NewAzureBackend(config.AzureConfig{AccountName: "acct", Container: "c"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

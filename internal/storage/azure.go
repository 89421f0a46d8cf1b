package storage

import (
	"alcyxob/upload-broker/internal/config"
	"alcyxob/upload-broker/internal/domain"
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// blobTypeHeader must accompany every PUT Blob request; Azure rejects the
// upload without it.
const blobTypeHeader = "x-ms-blob-type"

// azureBackend implements Backend on Azure Blob Storage using shared-key SAS.
type azureBackend struct {
	container *container.Client
}

// NewAzureBackend creates a Blob Storage backend. The account key is needed to sign SAS tokens.
func NewAzureBackend(cfg config.AzureConfig) (Backend, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, fmt.Errorf("%w: azure account_name, account_key and container are required", ErrBackendUnavailable)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("%w: azure shared key: %v", ErrBackendUnavailable, err)
	}

	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: azure client: %v", ErrBackendUnavailable, err)
	}

	return &azureBackend{
		container: client.ServiceClient().NewContainerClient(cfg.Container),
	}, nil
}

func (a *azureBackend) Name() domain.Backend { return domain.BackendAzure }

// IssueWriteGrant returns a blob URL carrying a create+write SAS token.
func (a *azureBackend) IssueWriteGrant(_ context.Context, req GrantRequest) (*domain.WriteGrant, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	expires := time.Now().Add(req.ttl())

	url, err := a.container.NewBlobClient(req.Key).GetSASURL(
		sas.BlobPermissions{Create: true, Write: true}, expires, nil)
	if err != nil {
		return nil, fmt.Errorf("azure sas %q: %w", req.Key, err)
	}

	headers := map[string]string{
		"Content-Type": req.contentType(),
		blobTypeHeader: "BlockBlob",
	}
	return putGrant(url, headers, expires), nil
}

// Exists fetches blob properties; only BlobNotFound counts as absent.
func (a *azureBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.container.NewBlobClient(key).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("azure get properties %q: %w", key, err)
}

package storage

import (
	"alcyxob/upload-broker/internal/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// localUploadPrefix is where the API mounts the local upload receiver.
const localUploadPrefix = "/api/v1/upload/local/"

// LocalUploadPath returns the route that receives bytes for transactionID.
func LocalUploadPath(transactionID string) string {
	return localUploadPrefix + url.PathEscape(transactionID)
}

// localBackend stores objects on a filesystem rooted at the managed storage root.
// There is no external signer: the grant points back at this service, and the
// caller's authentication plus the transaction record act as the credential.
type localBackend struct {
	fs      afero.Fs
	baseURL string
}

// NewLocalBackend roots the backend at root on the OS filesystem, creating it if needed.
func NewLocalBackend(root, baseURL string) (Backend, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: local root is not configured", ErrBackendUnavailable)
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create local root: %v", ErrBackendUnavailable, err)
	}
	// BasePathFs refuses any path that resolves outside root.
	return NewLocalBackendFs(afero.NewBasePathFs(osFs, root), baseURL), nil
}

// NewLocalBackendFs builds a local backend over an arbitrary afero filesystem.
func NewLocalBackendFs(fsys afero.Fs, baseURL string) Backend {
	return &localBackend{fs: fsys, baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *localBackend) Name() domain.Backend { return domain.BackendLocal }

func (l *localBackend) IssueWriteGrant(_ context.Context, req GrantRequest) (*domain.WriteGrant, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.TransactionID == "" {
		return nil, errors.New("transaction id is required for local grants")
	}
	headers := map[string]string{"Content-Type": req.contentType()}
	return putGrant(l.baseURL+LocalUploadPath(req.TransactionID), headers, time.Now().Add(req.ttl())), nil
}

func (l *localBackend) Exists(_ context.Context, key string) (bool, error) {
	info, err := l.fs.Stat(filepath.FromSlash(key))
	switch {
	case err == nil:
		return info.Mode().IsRegular(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", key, err)
	}
}

// Write streams r into a temp file next to key and renames it into place only
// when exactly size bytes arrived. Short or long bodies leave nothing behind.
func (l *localBackend) Write(ctx context.Context, key string, r io.Reader, size int64) error {
	if size < 0 {
		return errors.New("size must be non-negative")
	}
	target := filepath.FromSlash(key)
	dir := filepath.Dir(target)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", key, err)
	}

	tmp, err := afero.TempFile(l.fs, dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	discard := func() { _ = l.fs.Remove(tmpName) }

	// One byte past the declared size is enough to detect an oversized body.
	n, copyErr := io.Copy(tmp, io.LimitReader(r, size+1))
	closeErr := tmp.Close()
	if copyErr != nil {
		discard()
		return fmt.Errorf("write %q: %w", key, copyErr)
	}
	if closeErr != nil {
		discard()
		return fmt.Errorf("close %q: %w", key, closeErr)
	}
	if n != size {
		discard()
		if n > size {
			return fmt.Errorf("%w: declared %d bytes, received more", ErrSizeMismatch, size)
		}
		return fmt.Errorf("%w: declared %d bytes, received %d", ErrSizeMismatch, size, n)
	}
	if err := ctx.Err(); err != nil {
		discard()
		return err
	}

	if err := l.fs.Rename(tmpName, target); err != nil {
		discard()
		return fmt.Errorf("move %q into place: %w", key, err)
	}
	return nil
}

var _ LocalWriter = (*localBackend)(nil)

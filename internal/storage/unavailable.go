package storage

import (
	"alcyxob/upload-broker/internal/domain"
	"context"
	"fmt"
)

// unavailableBackend stands in for a backend whose client could not be built at
// startup, so the process keeps serving and reports the condition per call.
type unavailableBackend struct {
	name  domain.Backend
	cause error
}

// Unavailable returns a Backend whose every call fails with ErrBackendUnavailable.
func Unavailable(name domain.Backend, cause error) Backend {
	return &unavailableBackend{name: name, cause: cause}
}

func (u *unavailableBackend) Name() domain.Backend { return u.name }

func (u *unavailableBackend) IssueWriteGrant(context.Context, GrantRequest) (*domain.WriteGrant, error) {
	return nil, u.err()
}

func (u *unavailableBackend) Exists(context.Context, string) (bool, error) {
	return false, u.err()
}

func (u *unavailableBackend) err() error {
	if u.cause == nil {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, u.name)
	}
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, u.name, u.cause)
}

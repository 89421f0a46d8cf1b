package repository

import (
	"alcyxob/upload-broker/internal/domain"
	"context"
	"time"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict: transaction is no longer pending")
	ErrDuplicateKey = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UploadTransactionRepository defines the interface for persisting upload transactions.
// Every lookup and mutation is scoped to the owning user: a transaction that exists
// but belongs to someone else is reported as ErrNotFound.
type UploadTransactionRepository interface {
	Create(ctx context.Context, tx *domain.UploadTransaction) error
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.UploadTransaction, error)
	Delete(ctx context.Context, id, ownerID string) error

	// MarkCompleted moves a PENDING transaction to COMPLETED and stamps completedAt in a
	// single conditional write. Returns ErrConflict when the transaction is missing or
	// no longer PENDING, so concurrent callers resolve to exactly one winner.
	MarkCompleted(ctx context.Context, id, ownerID string, completedAt time.Time) error

	// MarkFailed moves a PENDING transaction to FAILED; same conditional semantics.
	MarkFailed(ctx context.Context, id, ownerID string) error
}

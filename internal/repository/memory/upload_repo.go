// Package memory provides a process-local upload transaction store for
// development and tests. It keeps the same owner scoping and conditional
// transition semantics as the database-backed stores.
package memory

import (
	"alcyxob/upload-broker/internal/domain"
	"alcyxob/upload-broker/internal/repository"
	"context"
	"sync"
	"time"
)

// UploadRepository keeps upload transactions in a map guarded by a mutex.
type UploadRepository struct {
	mu    sync.Mutex
	items map[string]domain.UploadTransaction
}

// NewUploadRepository returns an empty in-memory store.
func NewUploadRepository() *UploadRepository {
	return &UploadRepository{items: make(map[string]domain.UploadTransaction)}
}

var _ repository.UploadTransactionRepository = (*UploadRepository)(nil)

func (r *UploadRepository) Create(_ context.Context, tx *domain.UploadTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[tx.ID]; ok {
		return repository.ErrDuplicateKey
	}
	r.items[tx.ID] = clone(*tx)
	return nil
}

func (r *UploadRepository) GetByIDForOwner(_ context.Context, id, ownerID string) (*domain.UploadTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.items[id]
	if !ok || tx.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	out := clone(tx)
	return &out, nil
}

func (r *UploadRepository) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.items[id]
	if !ok || tx.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *UploadRepository) MarkCompleted(_ context.Context, id, ownerID string, completedAt time.Time) error {
	return r.transition(id, ownerID, func(tx *domain.UploadTransaction) {
		at := completedAt.UTC()
		tx.Status = domain.UploadStatusCompleted
		tx.CompletedAt = &at
	})
}

func (r *UploadRepository) MarkFailed(_ context.Context, id, ownerID string) error {
	return r.transition(id, ownerID, func(tx *domain.UploadTransaction) {
		tx.Status = domain.UploadStatusFailed
	})
}

func (r *UploadRepository) transition(id, ownerID string, apply func(*domain.UploadTransaction)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.items[id]
	if !ok || tx.OwnerID != ownerID || tx.Status != domain.UploadStatusPending {
		return repository.ErrConflict
	}
	apply(&tx)
	r.items[id] = tx
	return nil
}

// clone copies tx so callers never share the CompletedAt pointer with the store.
func clone(tx domain.UploadTransaction) domain.UploadTransaction {
	if tx.CompletedAt != nil {
		at := *tx.CompletedAt
		tx.CompletedAt = &at
	}
	return tx
}

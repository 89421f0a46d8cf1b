package memory

import (
	"alcyxob/upload-broker/internal/domain"
	"alcyxob/upload-broker/internal/repository"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *UploadRepository) *domain.UploadTransaction {
	t.Helper()
	tx := &domain.UploadTransaction{
		ID:        "tx-1",
		OwnerID:   "alice",
		ObjectKey: "uploads/tx-1/a.bin",
		FileName:  "a.bin",
		FileSize:  10,
		Status:    domain.UploadStatusPending,
		Backend:   domain.BackendLocal,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, r.Create(context.Background(), tx))
	return tx
}

func TestUploadRepository_OwnerScoping(t *testing.T) {
	r := NewUploadRepository()
	seed(t, r)
	ctx := context.Background()

	_, err := r.GetByIDForOwner(ctx, "tx-1", "mallory")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, r.Delete(ctx, "tx-1", "mallory"), repository.ErrNotFound)
	assert.ErrorIs(t, r.MarkCompleted(ctx, "tx-1", "mallory", time.Now()), repository.ErrConflict)

	got, err := r.GetByIDForOwner(ctx, "tx-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusPending, got.Status)
}

func TestUploadRepository_DuplicateCreate(t *testing.T) {
	r := NewUploadRepository()
	tx := seed(t, r)
	assert.ErrorIs(t, r.Create(context.Background(), tx), repository.ErrDuplicateKey)
}

func TestUploadRepository_TransitionsAreOneWay(t *testing.T) {
	r := NewUploadRepository()
	seed(t, r)
	ctx := context.Background()

	require.NoError(t, r.MarkCompleted(ctx, "tx-1", "alice", time.Now()))
	assert.ErrorIs(t, r.MarkCompleted(ctx, "tx-1", "alice", time.Now()), repository.ErrConflict)
	assert.ErrorIs(t, r.MarkFailed(ctx, "tx-1", "alice"), repository.ErrConflict)

	got, err := r.GetByIDForOwner(ctx, "tx-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Mutating the returned copy must not leak into the store.
	*got.CompletedAt = time.Time{}
	again, _ := r.GetByIDForOwner(ctx, "tx-1", "alice")
	assert.False(t, again.CompletedAt.IsZero())
}

func TestUploadRepository_ConcurrentCompleteHasOneWinner(t *testing.T) {
	r := NewUploadRepository()
	seed(t, r)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.MarkCompleted(context.Background(), "tx-1", "alice", time.Now()); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

package postgres

import (
	"alcyxob/upload-broker/internal/domain"
	"alcyxob/upload-broker/internal/repository"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by the repository.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UploadRepository implements repository.UploadTransactionRepository over a DBTX.
type UploadRepository struct {
	db DBTX
}

// NewUploadRepository constructs a repository bound to db.
func NewUploadRepository(db DBTX) *UploadRepository {
	return &UploadRepository{db: db}
}

var _ repository.UploadTransactionRepository = (*UploadRepository)(nil)

const (
	uniqueViolation = "23505"
	// invalidTextRepresentation is raised when an id is not a valid UUID.
	invalidTextRepresentation = "22P02"
)

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func (r *UploadRepository) Create(ctx context.Context, tx *domain.UploadTransaction) error {
	query := `
		INSERT INTO upload_transactions
			(id, owner_id, object_key, file_name, file_size, content_type, status, backend, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.OwnerID, tx.ObjectKey, tx.FileName, tx.FileSize, tx.ContentType,
		string(tx.Status), string(tx.Backend), tx.CreatedAt)
	if err != nil {
		if hasCode(err, uniqueViolation) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UploadRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.UploadTransaction, error) {
	query := `
		SELECT id, owner_id, object_key, file_name, file_size, content_type, status, backend, created_at, completed_at
		FROM upload_transactions
		WHERE id = $1 AND owner_id = $2
	`
	var (
		tx          domain.UploadTransaction
		status      string
		backend     string
		completedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&tx.ID, &tx.OwnerID, &tx.ObjectKey, &tx.FileName, &tx.FileSize, &tx.ContentType,
		&status, &backend, &tx.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || hasCode(err, invalidTextRepresentation) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select upload transaction: %w", err)
	}
	tx.Status = domain.UploadStatus(status)
	tx.Backend = domain.Backend(backend)
	if completedAt.Valid {
		t := completedAt.Time
		tx.CompletedAt = &t
	}
	return &tx, nil
}

func (r *UploadRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM upload_transactions WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		if hasCode(err, invalidTextRepresentation) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkCompleted is a single conditional UPDATE; the status predicate makes
// concurrent completions resolve to exactly one affected row.
func (r *UploadRepository) MarkCompleted(ctx context.Context, id, ownerID string, completedAt time.Time) error {
	query := `
		UPDATE upload_transactions
		SET status = $1, completed_at = $2
		WHERE id = $3 AND owner_id = $4 AND status = $5
	`
	return r.transition(ctx, query,
		string(domain.UploadStatusCompleted), completedAt.UTC(), id, ownerID, string(domain.UploadStatusPending))
}

func (r *UploadRepository) MarkFailed(ctx context.Context, id, ownerID string) error {
	query := `
		UPDATE upload_transactions
		SET status = $1
		WHERE id = $2 AND owner_id = $3 AND status = $4
	`
	return r.transition(ctx, query,
		string(domain.UploadStatusFailed), id, ownerID, string(domain.UploadStatusPending))
}

func (r *UploadRepository) transition(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if hasCode(err, invalidTextRepresentation) {
			return repository.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return repository.ErrConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

package service

import (
	"alcyxob/upload-broker/internal/domain"
	"alcyxob/upload-broker/internal/logging"
	"alcyxob/upload-broker/internal/repository"
	"alcyxob/upload-broker/internal/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrTransactionNotFound  = errors.New("upload transaction not found")
	ErrBackendUnavailable   = errors.New("storage backend unavailable")
	ErrCredentialGeneration = errors.New("failed to generate upload credentials")
	ErrObjectNotInStorage   = errors.New("object not found in storage")
	ErrStorageProbeFailed   = errors.New("failed to check object in storage")
	ErrSizeMismatch         = errors.New("uploaded size does not match declared size")
	ErrLocalUploadDisabled  = errors.New("local upload is not enabled")
	ErrTransactionTerminal  = errors.New("upload transaction is already finished")
	ErrTransactionFailed    = errors.New("upload transaction has failed")
)

// DefaultCallTimeout bounds every call into a storage backend.
const DefaultCallTimeout = 10 * time.Second

// MaxContentTypeBytes matches the content_type column width.
const MaxContentTypeBytes = 100

// InitiateInput carries the client's upload request.
type InitiateInput struct {
	OwnerID     string
	FileName    string
	FileSize    int64
	ContentType string
}

// InitiateResult is returned once a transaction exists and a grant was issued for it.
type InitiateResult struct {
	TransactionID string
	ObjectKey     string
	Grant         *domain.WriteGrant
}

// CompleteResult describes a transaction confirmed in storage.
type CompleteResult struct {
	TransactionID string
	ObjectKey     string
	CompletedAt   time.Time
}

// UploadService brokers direct-to-storage uploads.
type UploadService interface {
	Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error)
	Complete(ctx context.Context, ownerID, transactionID string) (*CompleteResult, error)
	ReceiveLocalUpload(ctx context.Context, ownerID, transactionID string, body io.Reader) error
	Get(ctx context.Context, ownerID, transactionID string) (*domain.UploadTransaction, error)
	Abort(ctx context.Context, ownerID, transactionID string) (*domain.UploadTransaction, error)
}

// UploadOptions tunes an UploadService. Zero values fall back to defaults.
type UploadOptions struct {
	GrantTTL    time.Duration
	CallTimeout time.Duration
	Now         func() time.Time
	NewID       func() string // Must return UUID strings
}

type uploadService struct {
	repo    repository.UploadTransactionRepository
	backend storage.Backend
	log     logging.Logger

	grantTTL    time.Duration
	callTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// NewUploadService wires the broker to its transaction store and the backend
// selected at startup.
func NewUploadService(
	repo repository.UploadTransactionRepository,
	backend storage.Backend,
	log logging.Logger,
	opts UploadOptions,
) UploadService {
	s := &uploadService{
		repo:        repo,
		backend:     backend,
		log:         log.With("component", "upload_service", "backend", string(backend.Name())),
		grantTTL:    opts.GrantTTL,
		callTimeout: opts.CallTimeout,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if s.grantTTL <= 0 {
		s.grantTTL = storage.DefaultGrantTTL
	}
	if s.callTimeout <= 0 {
		s.callTimeout = DefaultCallTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Initiate records a PENDING transaction and issues a write grant for it.
// If the grant cannot be issued the record is removed again.
func (s *uploadService) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	// 1. Validate Inputs
	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if in.FileSize < 0 {
		return nil, fmt.Errorf("%w: file size must be non-negative", ErrInvalidInput)
	}
	if len(in.FileName) > MaxFileNameBytes {
		return nil, fmt.Errorf("%w: filename is longer than %d bytes", ErrInvalidInput, MaxFileNameBytes)
	}
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = storage.DefaultContentType
	}
	if len(contentType) > MaxContentTypeBytes || strings.IndexFunc(contentType, unicode.IsControl) >= 0 {
		return nil, fmt.Errorf("%w: content type is malformed or longer than %d bytes", ErrInvalidInput, MaxContentTypeBytes)
	}

	// 2. Derive identity and key
	id := s.newID()
	key, err := DeriveObjectKey(id, in.FileName)
	if err != nil {
		return nil, err
	}

	// 3. Persist the PENDING record
	tx := &domain.UploadTransaction{
		ID:          id,
		OwnerID:     in.OwnerID,
		ObjectKey:   key,
		FileName:    in.FileName,
		FileSize:    in.FileSize,
		ContentType: contentType,
		Status:      domain.UploadStatusPending,
		Backend:     s.backend.Name(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create upload transaction: %w", err)
	}

	// 4. Issue the grant
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	grant, err := s.backend.IssueWriteGrant(callCtx, storage.GrantRequest{
		TransactionID: id,
		Key:           key,
		ContentType:   contentType,
		Size:          in.FileSize,
		TTL:           s.grantTTL,
	})
	cancel()
	if err != nil {
		s.rollback(ctx, tx)
		s.log.Error(ctx, "write grant issuance failed", "transaction_id", id, "error", err)
		if errors.Is(err, storage.ErrBackendUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialGeneration, err)
	}

	s.log.Info(ctx, "upload initiated", "transaction_id", id, "object_key", key, "file_size", in.FileSize)
	return &InitiateResult{TransactionID: id, ObjectKey: key, Grant: grant}, nil
}

// rollback deletes a record whose grant was never handed out. It runs even if
// the caller has gone away, since the record would otherwise stay PENDING forever.
func (s *uploadService) rollback(ctx context.Context, tx *domain.UploadTransaction) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
	defer cancel()
	if err := s.repo.Delete(delCtx, tx.ID, tx.OwnerID); err != nil {
		s.log.Error(ctx, "failed to roll back upload transaction", "transaction_id", tx.ID, "error", err)
	}
}

// Complete confirms the object exists and moves the transaction to COMPLETED.
// A transaction that is already COMPLETED is reported again without a new probe.
func (s *uploadService) Complete(ctx context.Context, ownerID, transactionID string) (*CompleteResult, error) {
	tx, err := s.load(ctx, ownerID, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() {
		return terminalResult(tx)
	}
	if tx.Backend != s.backend.Name() {
		return nil, fmt.Errorf("%w: transaction was issued for %q", ErrBackendUnavailable, tx.Backend)
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	found, err := s.backend.Exists(probeCtx, tx.ObjectKey)
	cancel()
	if err != nil {
		s.log.Warn(ctx, "storage probe failed", "transaction_id", tx.ID, "object_key", tx.ObjectKey, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStorageProbeFailed, err)
	}
	if !found {
		s.log.Debug(ctx, "object not in storage yet", "transaction_id", tx.ID, "object_key", tx.ObjectKey)
		return nil, ErrObjectNotInStorage
	}

	completedAt := s.now().UTC()
	err = s.repo.MarkCompleted(ctx, tx.ID, ownerID, completedAt)
	if errors.Is(err, repository.ErrConflict) {
		// Someone else moved it first; report whatever they settled on.
		current, loadErr := s.load(ctx, ownerID, transactionID)
		if loadErr != nil {
			return nil, loadErr
		}
		return terminalResult(current)
	}
	if err != nil {
		return nil, fmt.Errorf("mark upload completed: %w", err)
	}

	s.log.Info(ctx, "upload completed", "transaction_id", tx.ID, "object_key", tx.ObjectKey)
	return &CompleteResult{TransactionID: tx.ID, ObjectKey: tx.ObjectKey, CompletedAt: completedAt}, nil
}

func terminalResult(tx *domain.UploadTransaction) (*CompleteResult, error) {
	switch tx.Status {
	case domain.UploadStatusCompleted:
		res := &CompleteResult{TransactionID: tx.ID, ObjectKey: tx.ObjectKey}
		if tx.CompletedAt != nil {
			res.CompletedAt = *tx.CompletedAt
		}
		return res, nil
	case domain.UploadStatusFailed:
		return nil, ErrTransactionFailed
	default:
		return nil, fmt.Errorf("unexpected transaction status %q", tx.Status)
	}
}

// ReceiveLocalUpload stores the body under the transaction's key on the local backend.
// The body must be exactly the declared size; anything else is rejected and nothing is kept.
func (s *uploadService) ReceiveLocalUpload(ctx context.Context, ownerID, transactionID string, body io.Reader) error {
	writer, ok := s.backend.(storage.LocalWriter)
	if !ok {
		return ErrLocalUploadDisabled
	}
	tx, err := s.load(ctx, ownerID, transactionID)
	if err != nil {
		return err
	}
	if tx.Backend != domain.BackendLocal {
		return ErrLocalUploadDisabled
	}
	if tx.Status != domain.UploadStatusPending {
		return ErrTransactionTerminal
	}

	if err := writer.Write(ctx, tx.ObjectKey, body, tx.FileSize); err != nil {
		if errors.Is(err, storage.ErrSizeMismatch) {
			s.log.Warn(ctx, "local upload rejected", "transaction_id", tx.ID, "error", err)
			return fmt.Errorf("%w: %v", ErrSizeMismatch, err)
		}
		return fmt.Errorf("store local upload: %w", err)
	}

	s.log.Info(ctx, "local upload stored", "transaction_id", tx.ID, "object_key", tx.ObjectKey, "file_size", tx.FileSize)
	return nil
}

func (s *uploadService) Get(ctx context.Context, ownerID, transactionID string) (*domain.UploadTransaction, error) {
	return s.load(ctx, ownerID, transactionID)
}

// Abort marks a PENDING transaction FAILED. Aborting a FAILED transaction is a no-op.
func (s *uploadService) Abort(ctx context.Context, ownerID, transactionID string) (*domain.UploadTransaction, error) {
	tx, err := s.load(ctx, ownerID, transactionID)
	if err != nil {
		return nil, err
	}
	switch tx.Status {
	case domain.UploadStatusFailed:
		return tx, nil
	case domain.UploadStatusCompleted:
		return nil, ErrTransactionTerminal
	}

	err = s.repo.MarkFailed(ctx, tx.ID, ownerID)
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("mark upload failed: %w", err)
	}

	current, err := s.load(ctx, ownerID, transactionID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.UploadStatusCompleted {
		return nil, ErrTransactionTerminal
	}
	s.log.Info(ctx, "upload aborted", "transaction_id", tx.ID)
	return current, nil
}

func (s *uploadService) load(ctx context.Context, ownerID, transactionID string) (*domain.UploadTransaction, error) {
	if ownerID == "" {
		return nil, ErrTransactionNotFound
	}
	// Ids are always UUIDs; anything else cannot name a transaction.
	if _, err := uuid.Parse(transactionID); err != nil {
		return nil, ErrTransactionNotFound
	}
	tx, err := s.repo.GetByIDForOwner(ctx, transactionID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("load upload transaction: %w", err)
	}
	return tx, nil
}

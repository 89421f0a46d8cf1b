package domain

import (
	"time"
)

// UploadStatus tracks the lifecycle of an upload transaction.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "PENDING"
	UploadStatusCompleted UploadStatus = "COMPLETED" // Object verified in storage
	UploadStatusFailed    UploadStatus = "FAILED"    // Abandoned by the client
)

// IsTerminal reports whether no further transitions are allowed.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadStatusCompleted || s == UploadStatusFailed
}

// Backend identifies the storage backend an upload is written to.
type Backend string

const (
	BackendAWS   Backend = "aws"
	BackendGCS   Backend = "gcs"
	BackendAzure Backend = "azure"
	BackendMinio Backend = "minio"
	BackendLocal Backend = "local"
)

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendAWS, BackendGCS, BackendAzure, BackendMinio, BackendLocal:
		return true
	}
	return false
}

// UploadTransaction records a single direct-to-storage upload, from the moment a
// write grant is issued until the object is confirmed in storage.
type UploadTransaction struct {
	ID          string       `bson:"_id" json:"id"`
	OwnerID     string       `bson:"ownerId" json:"-"`                 // User who initiated the upload
	ObjectKey   string       `bson:"objectKey" json:"objectKey"`       // Derived from ID + FileName, never client-supplied
	FileName    string       `bson:"fileName" json:"fileName"`         // Original filename provided by client
	FileSize    int64        `bson:"fileSize" json:"fileSize"`         // Declared size in bytes
	ContentType string       `bson:"contentType" json:"contentType"`   // MIME type
	Status      UploadStatus `bson:"status" json:"status"`
	Backend     Backend      `bson:"backend" json:"backend"`
	CreatedAt   time.Time    `bson:"createdAt" json:"createdAt"`
	CompletedAt *time.Time   `bson:"completedAt,omitempty" json:"completedAt,omitempty"` // Set iff Status is COMPLETED
}

// WriteGrant is the time-limited capability handed to the client so it can
// write the object directly to the backend. It is never persisted.
type WriteGrant struct {
	URL       string
	Method    string
	Headers   map[string]string
	Fields    map[string]string // Form fields for POST-policy style grants
	ExpiresAt time.Time
}

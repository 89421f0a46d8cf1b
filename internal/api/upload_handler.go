package api

import (
	"alcyxob/upload-broker/internal/domain"
	"alcyxob/upload-broker/internal/logging"
	"alcyxob/upload-broker/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	uploadService service.UploadService
	log           logging.Logger
}

func NewUploadHandler(uploadService service.UploadService, log logging.Logger) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, log: log}
}

// --- DTOs ---

type InitUploadRequest struct {
	FileName    string `json:"filename" binding:"required"`
	FileSize    *int64 `json:"fileSize" binding:"required"` // Pointer so that 0 counts as present
	ContentType string `json:"contentType"`
}

type InitUploadResponse struct {
	UploadURL     string            `json:"uploadUrl"`
	Method        string            `json:"method"`
	Headers       map[string]string `json:"headers"`
	Fields        map[string]string `json:"fields,omitempty"`
	ExpiresAt     time.Time         `json:"expiresAt"`
	TransactionID string            `json:"transactionId"`
	ObjectKey     string            `json:"objectKey"`
}

type TransactionIDRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
}

type CompleteUploadResponse struct {
	Status    string `json:"status"`
	ObjectKey string `json:"objectKey"`
}

type LocalUploadResponse struct {
	Status string `json:"status"`
}

type TransactionResponse struct {
	TransactionID string              `json:"transactionId"`
	ObjectKey     string              `json:"objectKey"`
	FileName      string              `json:"fileName"`
	FileSize      int64               `json:"fileSize"`
	ContentType   string              `json:"contentType"`
	Status        domain.UploadStatus `json:"status"`
	Backend       domain.Backend      `json:"backend"`
	CreatedAt     time.Time           `json:"createdAt"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
}

func mapTransactionToResponse(tx *domain.UploadTransaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: tx.ID,
		ObjectKey:     tx.ObjectKey,
		FileName:      tx.FileName,
		FileSize:      tx.FileSize,
		ContentType:   tx.ContentType,
		Status:        tx.Status,
		Backend:       tx.Backend,
		CreatedAt:     tx.CreatedAt,
		CompletedAt:   tx.CompletedAt,
	}
}

// --- Handler Methods ---

// InitUpload godoc
// @Summary Start an upload
// @Description Creates a pending upload transaction and returns a time-limited grant to write the file directly to storage.
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InitUploadRequest true "File details"
// @Success 200 {object} InitUploadResponse "Write grant"
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Backend unavailable or credential generation failed"
// @Router /upload/init [post]
func (h *UploadHandler) InitUpload(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	var req InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidInput, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.uploadService.Initiate(c.Request.Context(), service.InitiateInput{
		OwnerID:     ownerID,
		FileName:    req.FileName,
		FileSize:    *req.FileSize,
		ContentType: req.ContentType,
	})
	if err != nil {
		respondWithServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, InitUploadResponse{
		UploadURL:     res.Grant.URL,
		Method:        res.Grant.Method,
		Headers:       res.Grant.Headers,
		Fields:        res.Grant.Fields,
		ExpiresAt:     res.Grant.ExpiresAt,
		TransactionID: res.TransactionID,
		ObjectKey:     res.ObjectKey,
	})
}

// CompleteUpload godoc
// @Summary Confirm an upload
// @Description Verifies the object exists in storage and marks the transaction completed. Repeating the call on a completed transaction returns the same result.
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransactionIDRequest true "Transaction to complete"
// @Success 200 {object} CompleteUploadResponse
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Transaction not found, or object not in storage yet"
// @Failure 409 {object} ErrorResponse "Transaction failed"
// @Failure 502 {object} ErrorResponse "Storage probe failed"
// @Router /upload/complete [post]
func (h *UploadHandler) CompleteUpload(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	var req TransactionIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidInput, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.uploadService.Complete(c.Request.Context(), ownerID, req.TransactionID)
	if err != nil {
		respondWithServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, CompleteUploadResponse{Status: "success", ObjectKey: res.ObjectKey})
}

// ReceiveLocalUpload godoc
// @Summary Upload bytes to local storage
// @Description Receives the raw file body for a pending transaction when the local backend is active. The body must be exactly the declared size.
// @Tags Uploads
// @Accept application/octet-stream
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} LocalUploadResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Local upload disabled"
// @Failure 404 {object} ErrorResponse "Transaction not found"
// @Failure 409 {object} ErrorResponse "Transaction already finished"
// @Failure 422 {object} ErrorResponse "Size mismatch"
// @Router /upload/local/{transactionId} [put]
func (h *UploadHandler) ReceiveLocalUpload(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	err := h.uploadService.ReceiveLocalUpload(c.Request.Context(), ownerID, c.Param("transactionId"), c.Request.Body)
	if err != nil {
		respondWithServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, LocalUploadResponse{Status: "uploaded"})
}

// GetUpload godoc
// @Summary Get an upload transaction
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} TransactionResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Transaction not found"
// @Router /upload/{transactionId} [get]
func (h *UploadHandler) GetUpload(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	tx, err := h.uploadService.Get(c.Request.Context(), ownerID, c.Param("transactionId"))
	if err != nil {
		respondWithServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, mapTransactionToResponse(tx))
}

// AbortUpload godoc
// @Summary Abandon an upload
// @Description Marks a pending transaction as failed. Aborting an already failed transaction succeeds.
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransactionIDRequest true "Transaction to abort"
// @Success 200 {object} TransactionResponse
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Transaction not found"
// @Failure 409 {object} ErrorResponse "Transaction already completed"
// @Router /upload/abort [post]
func (h *UploadHandler) AbortUpload(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	var req TransactionIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidInput, "Invalid request body: "+err.Error())
		return
	}

	tx, err := h.uploadService.Abort(c.Request.Context(), ownerID, req.TransactionID)
	if err != nil {
		respondWithServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, mapTransactionToResponse(tx))
}

func (h *UploadHandler) ownerID(c *gin.Context) (string, bool) {
	id, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "Unable to identify user.")
		return "", false
	}
	return id, true
}

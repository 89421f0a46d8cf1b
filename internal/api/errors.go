package api

import (
	"alcyxob/upload-broker/internal/logging"
	"alcyxob/upload-broker/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Stable error kinds returned in the "code" field of every error body.
const (
	CodeInvalidInput               = "InvalidInput"
	CodeUnauthorized               = "Unauthorized"
	CodeNotFound                   = "NotFound"
	CodeNotFoundInStorage          = "NotFoundInStorage"
	CodeLocalUploadDisabled        = "LocalUploadDisabled"
	CodeTransactionTerminal        = "TransactionTerminal"
	CodeTransactionFailed          = "TransactionFailed"
	CodeSizeMismatch               = "SizeMismatch"
	CodeBackendUnavailable         = "BackendUnavailable"
	CodeCredentialGenerationFailed = "CredentialGenerationFailed"
	CodeStorageProbeFailed         = "StorageProbeFailed"
	CodeInternal                   = "Internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var serviceErrors = []struct {
	target error
	status int
	code   string
}{
	{service.ErrInvalidInput, http.StatusBadRequest, CodeInvalidInput},
	{service.ErrTransactionNotFound, http.StatusNotFound, CodeNotFound},
	{service.ErrObjectNotInStorage, http.StatusNotFound, CodeNotFoundInStorage},
	{service.ErrLocalUploadDisabled, http.StatusForbidden, CodeLocalUploadDisabled},
	{service.ErrTransactionTerminal, http.StatusConflict, CodeTransactionTerminal},
	{service.ErrTransactionFailed, http.StatusConflict, CodeTransactionFailed},
	{service.ErrSizeMismatch, http.StatusUnprocessableEntity, CodeSizeMismatch},
	{service.ErrBackendUnavailable, http.StatusInternalServerError, CodeBackendUnavailable},
	{service.ErrCredentialGeneration, http.StatusInternalServerError, CodeCredentialGenerationFailed},
	{service.ErrStorageProbeFailed, http.StatusBadGateway, CodeStorageProbeFailed},
}

// respondWithServiceError maps err to a status and kind. Server-side failures
// get the kind's generic message; the detailed cause only goes to the log.
func respondWithServiceError(c *gin.Context, log logging.Logger, err error) {
	status, code, message := http.StatusInternalServerError, CodeInternal, "internal server error"
	for _, e := range serviceErrors {
		if errors.Is(err, e.target) {
			status, code, message = e.status, e.code, err.Error()
			if status >= http.StatusInternalServerError {
				message = e.target.Error()
			}
			break
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "code", code, "error", err)
	}
	abortWithError(c, status, code, message)
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

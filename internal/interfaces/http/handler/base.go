package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/interfaces/http/dto"
	"github.com/retailops/backend/internal/interfaces/http/middleware"
)

// Client-facing messages for errors whose details stay in the logs
const (
	msgGenerationExhausted = "could not generate a unique code, try again"
	msgUnexpected          = "An unexpected error occurred"
	msgCancelled           = "Request was cancelled before it completed"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDContextKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDKey)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps service errors to HTTP responses.
// Order matters: an exhausted generation unwraps to its last conflict.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var (
		exhausted *barcode.GenerationExhaustedError
		conflict  *barcode.ConflictError
		domainErr *shared.DomainError
	)
	switch {
	case errors.As(err, &exhausted):
		h.ErrorWithCode(c, dto.ErrCodeGenerationExhausted, msgGenerationExhausted)
	case errors.Is(err, barcode.ErrStorageUnavailable):
		h.ErrorWithCode(c, dto.ErrCodeStorageUnavailable, barcode.ErrStorageUnavailable.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.ErrorWithCode(c, dto.ErrCodeCancelled, msgCancelled)
	case errors.As(err, &conflict):
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, conflictMessage(conflict))
	case errors.As(err, &domainErr):
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
	default:
		h.InternalError(c, msgUnexpected)
	}
}

func conflictMessage(err *barcode.ConflictError) string {
	switch err.Reason {
	case barcode.ReasonCodeTaken:
		return "Code is already registered"
	case barcode.ReasonOwnerHasCode:
		return "Owner already has an active code of this type"
	}
	return "Code could not be claimed, try again"
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/infrastructure/parser"
	"github.com/tpa/backend/internal/interfaces/http/dto"
	"github.com/tpa/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindError answers a request body that could not be bound
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed",
			middleware.GetRequestID(c),
			details,
		))
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
}

// HandleError converts parser, domain and context errors to HTTP responses.
// Anything else is an internal error and its message is not exposed.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	requestID := middleware.GetRequestID(c)

	var fieldErr *parser.FieldError
	if errors.As(err, &fieldErr) {
		detail := dto.ValidationDetail{Field: fieldErr.Field, Message: fieldErr.Message}
		if fieldErr.Row >= 0 {
			row := fieldErr.Row
			detail.Row = &row
		}
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidInput, fieldErr.Error(), requestID)
		resp.Error.Details = []dto.ValidationDetail{detail}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeTimeout), dto.ErrCodeTimeout, "Computation exceeded the request deadline")
		return
	case errors.Is(err, context.Canceled):
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeCanceled), dto.ErrCodeCanceled, "Request canceled")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, err.Error())
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}

// Package handler implements the settlement REST endpoints on top of the
// application services.
package handler

import (
	"errors"
	"net/http"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// retryMessage is shown for failures the caller cannot fix by changing input
const retryMessage = "Operation failed, please retry or contact support"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	if id := logger.GetRequestID(c.Request.Context()); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// getActor returns the caller name set by the actor middleware
func getActor(c *gin.Context) string {
	return logger.GetActor(c.Request.Context())
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination metadata
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

// parseID reads a uuid path parameter, answering 400 when it is malformed
func (h *BaseHandler) parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.BadRequest(c, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into req. Binding failures are answered here:
// field validation as 400 with details, oversized bodies as 413 and
// anything else as malformed JSON.
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(verrs, getRequestID(c)))
	case errors.As(err, &tooLarge):
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
	default:
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body: "+err.Error())
	}
	return false
}

// bindQuery decodes query parameters into req, answering 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	err := c.ShouldBindQuery(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(verrs, getRequestID(c)))
		return false
	}
	h.BadRequest(c, "Invalid query parameters: "+err.Error())
	return false
}

// HandleError converts service errors to HTTP responses. Errors that do not
// describe a caller mistake are logged with the request context and
// answered with a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var (
		allocationErr *shared.AllocationExceedsRemainingError
		creditErr     *shared.CreditLimitExceededError
		stockErr      *shared.InsufficientStockError
		configErr     *shared.ConfigurationError
		validationErr *shared.ValidationError
		domainErr     *shared.DomainError
	)

	switch {
	case errors.As(err, &allocationErr):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeAllocationExceedsRemaining, allocationErr.Error(), requestID).
			WithField("allocation_amount").
			WithContext(map[string]string{
				"invoice_number": allocationErr.InvoiceNumber,
				"remaining":      allocationErr.Remaining.StringFixed(2),
				"requested":      allocationErr.Requested.StringFixed(2),
			}))

	case errors.As(err, &creditErr):
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeCreditLimitExceeded, creditErr.Error(), requestID).
			WithField("credit_limit").
			WithContext(map[string]string{
				"customer":        creditErr.CustomerName,
				"current_balance": creditErr.CurrentBalance.StringFixed(2),
				"credit_limit":    creditErr.CreditLimit.StringFixed(2),
				"requested":       creditErr.RequestedAmount.StringFixed(2),
			}))

	case errors.As(err, &stockErr):
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInsufficientStock, stockErr.Error(), requestID).
			WithContext(map[string]string{
				"product":   stockErr.ProductName,
				"requested": stockErr.Requested.String(),
				"available": stockErr.Available.String(),
			}))

	case errors.As(err, &configErr):
		logger.L(c.Request.Context()).Error("Configuration error",
			zap.String("setting", configErr.Setting),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeConfiguration, configErr.Error(), requestID).
			WithField(configErr.Setting))

	case errors.As(err, &validationErr):
		resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeValidation, validationErr.Error(), requestID).
			WithField(validationErr.Field)
		if validationErr.Field != "" {
			resp.Error.Details = []dto.ValidationDetail{{Field: validationErr.Field, Message: validationErr.Message}}
		}
		c.JSON(http.StatusBadRequest, resp)

	case errors.As(err, &domainErr):
		code := dto.NormalizeErrorCode(domainErr.Code)
		status := dto.GetHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			logger.L(c.Request.Context()).Error("Domain error", zap.String("code", domainErr.Code), zap.Error(err))
		}
		c.JSON(status, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))

	default:
		logger.L(c.Request.Context()).Error("Unhandled error", zap.Error(err))
		_ = c.Error(err)
		h.InternalError(c, retryMessage)
	}
}

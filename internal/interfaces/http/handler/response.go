package handler

import "github.com/erp/settlement/internal/interfaces/http/dto"

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// ListResponse represents one page of a list for OpenAPI documentation
// @Description Standard list response with pagination metadata
type ListResponse[T any] struct {
	Success bool      `json:"success"`
	Data    []T       `json:"data"`
	Meta    *dto.Meta `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

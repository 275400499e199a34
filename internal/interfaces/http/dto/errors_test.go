package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeConfiguration, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeAllocationExceedsRemaining, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeCreditLimitExceeded, http.StatusUnprocessableEntity},
		{ErrCodeInsufficientStock, http.StatusUnprocessableEntity},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"INVALID_STATE", ErrCodeInvalidState},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		{"INSUFFICIENT_STOCK", ErrCodeInsufficientStock},
		{ErrCodeCreditLimitExceeded, ErrCodeCreditLimitExceeded},
		{"SOMETHING_ELSE", "SOMETHING_ELSE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	before := time.Now().Unix()
	resp := NewErrorResponse("NOT_FOUND", "Invoice not found")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Invoice not found", resp.Error.Message)
	assert.GreaterOrEqual(t, resp.Error.Timestamp, before)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "items", Message: "This field is required"},
		{Field: "invoice_type", Message: "Must be one of: cash credit return"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "items", resp.Error.Details[0].Field)
}

func TestErrorResponse_FieldAndContext(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeAllocationExceedsRemaining, "too much", "req-1").
		WithField("allocation_amount").
		WithContext(map[string]string{"invoice_number": "INV-2026-00001", "remaining": "50.00"})

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, "allocation_amount", errObj["field"])
	assert.Equal(t, "req-1", errObj["request_id"])
	assert.Equal(t, "50.00", errObj["context"].(map[string]any)["remaining"])
	_, hasData := decoded["data"]
	assert.False(t, hasData)
}

func TestResponse_WithContextOnSuccessIsNoop(t *testing.T) {
	resp := NewSuccessResponse(map[string]int{"n": 1}).WithField("x").WithContext(map[string]string{"a": "b"})
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		pageSize   int
		totalPages int
	}{
		{"exact pages", 40, 20, 2},
		{"partial last page", 41, 20, 3},
		{"empty list", 0, 20, 0},
		{"zero page size", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]int{}, tt.total, 1, tt.pageSize)
			require.NotNil(t, resp.Meta)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.total, resp.Meta.Total)
			assert.Equal(t, tt.totalPages, resp.Meta.TotalPages)
		})
	}

	data, err := json.Marshal(NewSuccessResponse("x"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "meta")
}

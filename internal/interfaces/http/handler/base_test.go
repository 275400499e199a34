package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/erp/settlement/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from gin context",
			setup: func(c *gin.Context) {
				c.Set(middleware.RequestIDKey, "ctx-request-id")
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(middleware.RequestIDHeader, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Set(middleware.RequestIDKey, "ctx-id")
				c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext()
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandlerSuccessAndCreated(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext()
	h.Success(c, map[string]string{"key": "value"})
	assert.Equal(t, http.StatusOK, w.Code)
	resp := testutil.Envelope(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	c, w = newTestContext()
	h.Created(c, map[string]string{"id": "123"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, testutil.Envelope(t, w).Success)

	c, w = newTestContext()
	h.SuccessWithMeta(c, []string{"a", "b"}, 5, 2, 2)
	assert.Equal(t, http.StatusOK, w.Code)
	resp = testutil.Envelope(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(5), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestBaseHandlerErrorMethods(t *testing.T) {
	h := &BaseHandler{}
	tests := []struct {
		name         string
		call         func(*gin.Context)
		expectedCode int
		expectedErr  string
	}{
		{"bad request", func(c *gin.Context) { h.BadRequest(c, "bad") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"not found", func(c *gin.Context) { h.NotFound(c, "missing") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"internal", func(c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			c.Set(middleware.RequestIDKey, "req-err")
			tt.call(c)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := testutil.Envelope(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
			assert.Equal(t, "req-err", resp.Error.RequestID)
		})
	}
}

func TestBaseHandlerParseID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid", func(t *testing.T) {
		c, _ := newTestContext()
		want := uuid.New()
		c.Params = gin.Params{{Key: "id", Value: want.String()}}
		got, ok := h.parseID(c, "id")
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("malformed", func(t *testing.T) {
		c, w := newTestContext()
		c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
		_, ok := h.parseID(c, "id")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid id format", testutil.Envelope(t, w).Error.Message)
	})
}

func TestBaseHandlerBindJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name" binding:"required"`
	}
	h := &BaseHandler{}

	bind := func(body string) (*httptest.ResponseRecorder, bool) {
		c, w := newTestContext()
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var p payload
		return w, h.bindJSON(c, &p)
	}

	t.Run("valid body", func(t *testing.T) {
		_, ok := bind(`{"name":"x"}`)
		assert.True(t, ok)
	})

	t.Run("missing field reports details", func(t *testing.T) {
		w, ok := bind(`{}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := testutil.Envelope(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "name", resp.Error.Details[0].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		w, ok := bind(`{"name":`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, testutil.Envelope(t, w).Error.Code)
	})
}

func TestBaseHandlerHandleError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
		expectedFld  string
		context      map[string]string
	}{
		{
			name:         "not found",
			err:          shared.ErrNotFound,
			expectedCode: http.StatusNotFound,
			expectedErr:  dto.ErrCodeNotFound,
		},
		{
			name:         "wrapped already exists",
			err:          fmt.Errorf("save customer: %w", shared.ErrAlreadyExists),
			expectedCode: http.StatusConflict,
			expectedErr:  dto.ErrCodeAlreadyExists,
		},
		{
			name:         "invalid state",
			err:          shared.ErrInvalidState,
			expectedCode: http.StatusUnprocessableEntity,
			expectedErr:  dto.ErrCodeInvalidState,
		},
		{
			name:         "concurrency conflict",
			err:          shared.ErrConcurrencyConflict,
			expectedCode: http.StatusConflict,
			expectedErr:  dto.ErrCodeConcurrencyConflict,
		},
		{
			name:         "validation",
			err:          shared.NewValidationError("amount", "must be positive"),
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeValidation,
			expectedFld:  "amount",
		},
		{
			name: "allocation exceeds remaining",
			err: shared.NewAllocationExceedsRemainingError("INV-2025-00001",
				decimal.RequireFromString("20"), decimal.RequireFromString("25.5")),
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeAllocationExceedsRemaining,
			expectedFld:  "allocation_amount",
			context: map[string]string{
				"invoice_number": "INV-2025-00001",
				"remaining":      "20.00",
				"requested":      "25.50",
			},
		},
		{
			name: "credit limit exceeded",
			err: &shared.CreditLimitExceededError{
				CustomerName:    "Acme",
				CurrentBalance:  decimal.RequireFromString("90"),
				CreditLimit:     decimal.RequireFromString("100"),
				RequestedAmount: decimal.RequireFromString("30"),
			},
			expectedCode: http.StatusUnprocessableEntity,
			expectedErr:  dto.ErrCodeCreditLimitExceeded,
			expectedFld:  "credit_limit",
			context: map[string]string{
				"customer":        "Acme",
				"current_balance": "90.00",
				"credit_limit":    "100.00",
				"requested":       "30.00",
			},
		},
		{
			name: "insufficient stock",
			err: shared.NewInsufficientStockError("Olive oil",
				decimal.RequireFromString("5"), decimal.RequireFromString("2")),
			expectedCode: http.StatusUnprocessableEntity,
			expectedErr:  dto.ErrCodeInsufficientStock,
			context: map[string]string{
				"product":   "Olive oil",
				"requested": "5",
				"available": "2",
			},
		},
		{
			name:         "configuration",
			err:          shared.NewConfigurationError("fx_rate", "no rate for 2025-01-01"),
			expectedCode: http.StatusInternalServerError,
			expectedErr:  dto.ErrCodeConfiguration,
			expectedFld:  "fx_rate",
		},
		{
			name:         "unknown error",
			err:          errors.New("database is on fire"),
			expectedCode: http.StatusInternalServerError,
			expectedErr:  dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			c.Set(middleware.RequestIDKey, "req-handle")
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := testutil.Envelope(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
			assert.Equal(t, "req-handle", resp.Error.RequestID)
			assert.Equal(t, tt.expectedFld, resp.Error.Field)
			if tt.context != nil {
				assert.Equal(t, tt.context, resp.Error.Context)
			}
		})
	}

	t.Run("unknown errors hide their message", func(t *testing.T) {
		c, w := newTestContext()
		h.HandleError(c, errors.New("pq: connection refused"))
		assert.Equal(t, retryMessage, testutil.Envelope(t, w).Error.Message)
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		c, w := newTestContext()
		h.HandleError(c, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestBaseHandlerBindQuery(t *testing.T) {
	h := &BaseHandler{}
	type listQuery struct {
		Page     int    `form:"page" binding:"omitempty,min=1"`
		From     string `form:"from" binding:"omitempty,datetime=2006-01-02"`
		OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	}
	handler := func(c *gin.Context) {
		var q listQuery
		if !h.bindQuery(c, &q) {
			return
		}
		h.SuccessWithMeta(c, []string{}, 0, q.Page, 20)
	}

	testutil.RunHTTPTestCases(t, handler, []testutil.HTTPTestCase{
		{
			Name:           "valid query",
			Path:           "/?page=2&from=2025-01-31&order_dir=asc",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertSuccessResponse(t, tc.Recorder)
				testutil.AssertPage(t, tc.Recorder, 0, 2, 0)
			},
		},
		{
			Name:           "malformed date",
			Path:           "/?from=31-01-2025",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertFieldErrors(t, tc.Recorder, "from")
			},
		},
		{
			Name:           "page below one",
			Path:           "/?page=-1",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertFieldErrors(t, tc.Recorder, "page")
			},
		},
		{
			Name:           "non numeric page",
			Path:           "/?page=two",
			Headers:        map[string]string{middleware.RequestIDHeader: "req-42"},
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeBadRequest,
			Setup: func(t *testing.T, tc *testutil.TestContext) {
				tc.Context.Set(middleware.RequestIDKey, tc.Context.GetHeader(middleware.RequestIDHeader))
			},
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Equal(t, "req-42", testutil.APIError(t, tc.Recorder).RequestID)
			},
		},
	})
}

func TestBaseHandlerRouteErrors(t *testing.T) {
	h := &BaseHandler{}
	remaining := map[string]decimal.Decimal{}
	remaining["INV-2025-00007"] = decimal.RequireFromString("80")

	// allocates the body amount to the invoice named by :number
	handler := func(c *gin.Context) {
		var req struct {
			Amount decimal.Decimal `json:"amount" binding:"required,positive,money"`
		}
		if !h.bindJSON(c, &req) {
			return
		}
		number := c.Param("number")
		left, ok := remaining[number]
		if !ok {
			h.HandleError(c, shared.ErrNotFound)
			return
		}
		if req.Amount.GreaterThan(left) {
			h.HandleError(c, shared.NewAllocationExceedsRemainingError(number, left, req.Amount))
			return
		}
		if c.GetHeader(middleware.ActorHeader) == "" {
			h.HandleError(c, shared.NewValidationError("actor", "actor is required"))
			return
		}
		if req.Amount.GreaterThan(decimal.RequireFromString("50")) {
			h.HandleError(c, &shared.CreditLimitExceededError{
				CustomerName:    "Acme",
				CurrentBalance:  decimal.RequireFromString("90"),
				CreditLimit:     decimal.RequireFromString("100"),
				RequestedAmount: req.Amount,
			})
			return
		}
		h.Success(c, gin.H{"invoice_number": number, "allocated": req.Amount.StringFixed(2)})
	}

	invoice := gin.Params{{Key: "number", Value: "INV-2025-00007"}}

	testutil.RunHTTPTestCases(t, handler, []testutil.HTTPTestCase{
		{
			Name:           "allocated",
			Method:         http.MethodPost,
			Params:         invoice,
			Body:           map[string]string{"amount": "25"},
			Actor:          "cashier",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				got := testutil.Data[map[string]string](t, tc.Recorder)
				assert.Equal(t, "INV-2025-00007", got["invoice_number"])
				assert.Equal(t, "25.00", got["allocated"])
			},
		},
		{
			Name:           "exceeds the remaining balance",
			Method:         http.MethodPost,
			Params:         invoice,
			Body:           map[string]string{"amount": "95"},
			Actor:          "cashier",
			ExpectedStatus: http.StatusBadRequest,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertErrorContext(t, tc.Recorder, dto.ErrCodeAllocationExceedsRemaining, map[string]string{
					"invoice_number": "INV-2025-00007",
					"remaining":      "80.00",
					"requested":      "95.00",
				})
			},
		},
		{
			Name:           "over the credit limit",
			Method:         http.MethodPost,
			Params:         invoice,
			Body:           map[string]string{"amount": "60"},
			Actor:          "cashier",
			ExpectedStatus: http.StatusUnprocessableEntity,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertErrorContext(t, tc.Recorder, dto.ErrCodeCreditLimitExceeded, map[string]string{
					"credit_limit": "100.00",
					"requested":    "60.00",
				})
			},
		},
		{
			Name:           "missing actor",
			Method:         http.MethodPost,
			Params:         invoice,
			Body:           map[string]string{"amount": "10"},
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertFieldErrors(t, tc.Recorder, "actor")
			},
		},
		{
			Name:           "missing amount",
			Method:         http.MethodPost,
			Params:         invoice,
			Body:           map[string]string{},
			Actor:          "cashier",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertFieldErrors(t, tc.Recorder, "amount")
			},
		},
		{
			Name:           "too many decimal places",
			Method:         http.MethodPost,
			Params:         invoice,
			Body:           map[string]string{"amount": "10.00001"},
			Actor:          "cashier",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				testutil.AssertFieldErrors(t, tc.Recorder, "amount")
			},
		},
		{
			Name:           "unknown invoice",
			Method:         http.MethodPost,
			Params:         gin.Params{{Key: "number", Value: "INV-2025-99999"}},
			Body:           map[string]string{"amount": "10"},
			Actor:          "cashier",
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
	})
}

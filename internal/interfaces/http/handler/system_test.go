package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("Settlement API", "1.0.0")
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
}

func TestSystemHandler_Health(t *testing.T) {
	serve := func(h *SystemHandler) (*httptest.ResponseRecorder, HealthResponse) {
		engine := gin.New()
		engine.GET("/health", h.Health)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w, resp
	}

	t.Run("healthy without checks", func(t *testing.T) {
		w, resp := serve(NewSystemHandler("Settlement API", "1.0.0"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", resp.Status)
		assert.Empty(t, resp.Checks)
	})

	t.Run("all checks pass", func(t *testing.T) {
		h := NewSystemHandler("Settlement API", "1.0.0").
			AddCheck("database", func(context.Context) error { return nil }).
			AddCheck("redis", func(context.Context) error { return nil })
		w, resp := serve(h)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, resp.Checks)
	})

	t.Run("failing check answers 503", func(t *testing.T) {
		h := NewSystemHandler("Settlement API", "1.0.0").
			AddCheck("database", func(context.Context) error { return nil }).
			AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
		w, resp := serve(h)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "ok", resp.Checks["database"])
		assert.Equal(t, "error", resp.Checks["redis"])
	})

	t.Run("checks receive a deadline", func(t *testing.T) {
		var hasDeadline bool
		h := NewSystemHandler("Settlement API", "1.0.0").
			AddCheck("database", func(ctx context.Context) error {
				_, hasDeadline = ctx.Deadline()
				return nil
			})
		serve(h)
		assert.True(t, hasDeadline)
	})
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("Settlement API", "1.0.0")
	h.SetRoutes([]router.RouteInfo{
		{Method: http.MethodPost, Path: "/api/v1/payments"},
		{Method: http.MethodGet, Path: "/api/v1/invoices/:id"},
		{Method: http.MethodGet, Path: "/api/v1/payments"},
	})

	c, w := newTestContext()
	h.GetSystemInfo(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool               `json:"success"`
		Data    SystemInfoResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Settlement API", resp.Data.Name)
	assert.Equal(t, "1.0.0", resp.Data.Version)
	assert.NotEmpty(t, resp.Data.GoVersion)
	assert.NotEmpty(t, resp.Data.Uptime)
	assert.Equal(t, []router.RouteInfo{
		{Method: http.MethodGet, Path: "/api/v1/invoices/:id"},
		{Method: http.MethodGet, Path: "/api/v1/payments"},
		{Method: http.MethodPost, Path: "/api/v1/payments"},
	}, resp.Data.Routes)
}

func TestSystemHandler_Ping(t *testing.T) {
	h := NewSystemHandler("Settlement API", "1.0.0")

	c, w := newTestContext()
	h.Ping(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data PingResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pong", resp.Data.Message)
	_, err := time.Parse(time.RFC3339, resp.Data.Timestamp)
	assert.NoError(t, err)
}

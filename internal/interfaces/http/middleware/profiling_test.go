package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenLabels map[string]string

func newProfiledRouter(cfg ProfilingConfig, seen *seenLabels) *gin.Engine {
	capture := func(c *gin.Context) {
		got := seenLabels{}
		pprof.ForLabels(c.Request.Context(), func(key, value string) bool {
			got[key] = value
			return true
		})
		*seen = got
		c.Status(http.StatusOK)
	}

	router := gin.New()
	router.Use(Profiling(cfg))
	router.GET("/health", capture)
	router.GET("/swagger/*any", capture)
	router.GET("/api/v1/customers/:id/ledger", capture)
	router.POST("/api/v1/invoices/:id/confirm", capture)
	return router
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPathPrefixes, "/swagger")
}

func TestProfiling_Disabled(t *testing.T) {
	var seen seenLabels
	router := newProfiledRouter(ProfilingConfig{Enabled: false}, &seen)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/customers/c1/ledger", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, seen)
}

func TestProfiling_LabelsHandlers(t *testing.T) {
	var seen seenLabels
	router := newProfiledRouter(DefaultProfilingConfig(), &seen)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/42/confirm", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.MethodPost, seen[ProfilingLabelMethod])
	assert.Equal(t, "/api/v1/invoices/:id/confirm", seen[ProfilingLabelRoute])
	assert.Equal(t, "invoices", seen[ProfilingLabelController])
}

func TestProfiling_SkipPaths(t *testing.T) {
	for _, path := range []string{"/health", "/swagger/index.html"} {
		t.Run(path, func(t *testing.T) {
			var seen seenLabels
			router := newProfiledRouter(DefaultProfilingConfig(), &seen)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, seen)
		})
	}
}

func TestProfiling_ContextPreserved(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Profiling(DefaultProfilingConfig()))

	var requestID string
	router.GET("/api/v1/payments/:id", func(c *gin.Context) {
		requestID = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/p1", nil)
	req.Header.Set(RequestIDHeader, "req-prof")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-prof", requestID)
}

func TestExtractControllerFromRoute(t *testing.T) {
	tests := map[string]string{
		"/api/v1/customers/:id/ledger": "customers",
		"/api/v2/fx-rates/:date":       "fx-rates",
		"/api/v1/:id":                  "",
		"/swagger/*any":                "swagger",
		"":                             "",
	}
	for route, want := range tests {
		assert.Equal(t, want, extractControllerFromRoute(route), route)
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vx"))
	assert.False(t, isVersionSegment("invoices"))
}

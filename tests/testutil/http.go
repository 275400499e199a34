package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actorHeader = "X-Actor"

// HTTPTestCase describes one request served by a single handler.
type HTTPTestCase struct {
	Name    string
	Method  string
	Path    string
	Params  gin.Params // route parameters such as :id
	Body    any
	Actor   string // sent as X-Actor
	Headers map[string]string

	ExpectedStatus int
	// ExpectedCode is the error code of a failed response
	ExpectedCode string

	Setup    func(t *testing.T, tc *TestContext)
	Validate func(t *testing.T, tc *TestContext)
}

// RunHTTPTestCases runs each case as a subtest against handler.
func RunHTTPTestCases(t *testing.T, handler gin.HandlerFunc, cases []HTTPTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, handler, tc)
		})
	}
}

// RunHTTPTestCase runs a single case.
func RunHTTPTestCase(t *testing.T, handler gin.HandlerFunc, tc HTTPTestCase) {
	t.Helper()

	var body io.Reader
	if tc.Body != nil {
		raw, err := json.Marshal(tc.Body)
		require.NoError(t, err, "Failed to marshal request body")
		body = bytes.NewReader(raw)
	}

	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}
	path := tc.Path
	if path == "" {
		path = "/"
	}
	req := httptest.NewRequest(method, path, body)
	if tc.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.Actor != "" {
		req.Header.Set(actorHeader, tc.Actor)
	}
	for k, v := range tc.Headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = tc.Params

	testCtx := &TestContext{Context: c, Recorder: w}
	if tc.Setup != nil {
		tc.Setup(t, testCtx)
	}

	handler(c)

	if tc.ExpectedStatus != 0 {
		assert.Equal(t, tc.ExpectedStatus, w.Code, "Unexpected status code: %s", w.Body.String())
	}
	if tc.ExpectedCode != "" {
		AssertAPIError(t, w, tc.ExpectedCode)
	}
	if tc.Validate != nil {
		tc.Validate(t, testCtx)
	}
}

// Envelope decodes the response envelope every endpoint answers with.
func Envelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to parse response: %s", w.Body.String())
	return resp
}

// Data asserts a successful response and decodes its data into T.
func Data[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var env struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to parse response: %s", w.Body.String())
	require.True(t, env.Success, "Expected a successful response: %s", w.Body.String())
	return env.Data
}

// AssertSuccessResponse asserts a successful envelope without an error.
func AssertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()

	resp := Envelope(t, w)
	assert.True(t, resp.Success, "Expected success to be true")
	assert.Nil(t, resp.Error, "Expected no error")
}

// APIError asserts a failed envelope and returns its error.
func APIError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()

	resp := Envelope(t, w)
	require.False(t, resp.Success, "Expected success to be false: %s", w.Body.String())
	require.NotNil(t, resp.Error, "Expected error object in response")
	return resp.Error
}

// AssertAPIError asserts a failed envelope carrying code.
func AssertAPIError(t *testing.T, w *httptest.ResponseRecorder, code string) *dto.ErrorInfo {
	t.Helper()

	errInfo := APIError(t, w)
	assert.Equal(t, code, errInfo.Code, "Unexpected error code")
	return errInfo
}

// AssertErrorContext asserts a business rule failure and the structured
// values it reports, such as the remaining balance or the credit limit.
// Keys not named in want are ignored.
func AssertErrorContext(t *testing.T, w *httptest.ResponseRecorder, code string, want map[string]string) {
	t.Helper()

	errInfo := AssertAPIError(t, w, code)
	for key, value := range want {
		assert.Equal(t, value, errInfo.Context[key], "Unexpected error context for %s", key)
	}
}

// AssertFieldErrors asserts that every named field has a validation detail.
func AssertFieldErrors(t *testing.T, w *httptest.ResponseRecorder, fields ...string) {
	t.Helper()

	errInfo := APIError(t, w)
	rejected := make([]string, 0, len(errInfo.Details))
	for _, d := range errInfo.Details {
		rejected = append(rejected, d.Field)
	}
	for _, f := range fields {
		assert.Contains(t, rejected, f, "Expected a validation detail for %s", f)
	}
}

// AssertPage asserts the pagination meta of a list response.
func AssertPage(t *testing.T, w *httptest.ResponseRecorder, total int64, page, totalPages int) {
	t.Helper()

	resp := Envelope(t, w)
	require.NotNil(t, resp.Meta, "Expected pagination meta")
	assert.Equal(t, total, resp.Meta.Total, "Unexpected total")
	assert.Equal(t, page, resp.Meta.Page, "Unexpected page")
	assert.Equal(t, totalPages, resp.Meta.TotalPages, "Unexpected total pages")
}

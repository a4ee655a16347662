package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// =============================================================================
// AuthMiddleware Tests
// =============================================================================

func TestAuthMiddleware_NoSecret_PassesThrough(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{}).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app-management/images", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_RejectsMissingSecret(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{SharedSecret: "s3cret"}).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app-management/images", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "forbidden", resp.Error)
}

func TestAuthMiddleware_RejectsWrongSecret(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{SharedSecret: "s3cret"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/app-management/images", nil)
	req.Header.Set(DefaultSecretHeader, "guess")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthMiddleware_AcceptsSecret(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{SharedSecret: "s3cret", Header: "X-Gateway"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/app-management/images", nil)
	req.Header.Set("X-Gateway", "s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	handler := NewAuthMiddleware(AuthConfig{SharedSecret: "s3cret", Exempt: []string{"/health"}}).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// RequestLogger Tests
// =============================================================================

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/app-management/applications", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/app-management/applications", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
}

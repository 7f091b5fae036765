package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLiveness(t *testing.T) {
	r := NewHealthRouter(nil, zerolog.Nop())
	for _, p := range []string{"/health", "/live"} {
		rec, body := get(t, r, p)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestReadiness(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("connection refused") }

	rec, body := get(t, NewHealthRouter(map[string]Check{"store": healthy}, zerolog.Nop()), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = get(t, NewHealthRouter(map[string]Check{"store": healthy, "redis": broken}, zerolog.Nop()), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "connection refused", checks["redis"])
	assert.Equal(t, "ok", checks["store"])
}

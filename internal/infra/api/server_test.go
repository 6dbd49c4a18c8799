//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amc-subscription/internal/config"
	"amc-subscription/internal/infra/api/apiv1"
)

func testServer(checks map[string]Pinger) *Server {
	logger := zerolog.New(io.Discard)
	v1 := apiv1.NewServer(nil, nil, nil, apiv1.Options{}, &logger)
	return NewServer(config.ServerConfig{Port: 0, RequestTimeout: time.Second}, v1, checks, &logger)
}

func TestServer_CORS(t *testing.T) {
	h := testServer(nil).Handler()

	t.Run("answers preflight with an empty 200", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/payments/verify", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Body.String())
	})

	t.Run("sets the origin header on regular responses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/orders", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, "nil use cases answer not configured")
		assert.NotEmpty(t, rec.Header().Get(traceHeader))
	})

	t.Run("echoes the caller trace id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/orders", strings.NewReader(`{}`))
		req.Header.Set(traceHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(traceHeader))
	})
}

func TestServer_Health(t *testing.T) {
	t.Run("ok when every dependency answers", func(t *testing.T) {
		h := testServer(map[string]Pinger{
			"postgres": PingFunc(func(context.Context) error { return nil }),
			"redis":    PingFunc(func(context.Context) error { return nil }),
		}).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
	})

	t.Run("503 when a dependency is down", func(t *testing.T) {
		h := testServer(map[string]Pinger{
			"postgres": PingFunc(func(context.Context) error { return nil }),
			"redis":    PingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") }),
		}).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "down", body.Checks["redis"])
	})
}

func TestServer_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecover(t *testing.T) {
	logger := zerolog.New(io.Discard)
	h := Recover(&logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

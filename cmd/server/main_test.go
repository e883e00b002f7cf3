package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDep struct {
	err error
}

func (f fakeDep) Ping(context.Context) error  { return f.err }
func (f fakeDep) Ready(context.Context) error { return f.err }

func serveHealth(t *testing.T, db, c, up fakeDep) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	healthHandler(db, c, up)(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	w, body := serveHealth(t, fakeDep{}, fakeDep{}, fakeDep{})

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
	assert.Equal(t, "ok", services["upstream"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	w, body := serveHealth(t, fakeDep{err: errors.New("connection refused")}, fakeDep{}, fakeDep{})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
	assert.Equal(t, "degraded", errObj["details"].(map[string]any)["database"])
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	w, _ := serveHealth(t, fakeDep{}, fakeDep{err: errors.New("redis down")}, fakeDep{})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_UpstreamDownStaysHealthy(t *testing.T) {
	w, body := serveHealth(t, fakeDep{}, fakeDep{}, fakeDep{err: errors.New("503")})

	assert.Equal(t, http.StatusOK, w.Code)
	services := body["data"].(map[string]any)["services"].(map[string]any)
	assert.Equal(t, "degraded", services["upstream"])
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "UPSTREAM_BASE_URL"} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("UPSTREAM_BASE_URL", "http://localhost:8000")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}

package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, handler http.Handler, method, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec.Result()
}

func TestLiveness_Healthz(t *testing.T) {
	router := newLivenessRouter(t.TempDir(), time.Now())

	resp := get(t, router, http.MethodGet, "/healthz")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestLiveness_RootWithoutIndex(t *testing.T) {
	router := newLivenessRouter(filepath.Join(t.TempDir(), "missing"), time.Now())

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		resp := get(t, router, method, "/")
		assert.Equal(t, http.StatusOK, resp.StatusCode, method)
		resp.Body.Close()
	}
}

func TestLiveness_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hello</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "robots.txt"), []byte("User-agent: *"), 0o644))
	router := newLivenessRouter(dir, time.Now())

	resp := get(t, router, http.MethodGet, "/")
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hello")

	resp = get(t, router, http.MethodGet, "/robots.txt")
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *", string(body))

	resp = get(t, router, http.MethodGet, "/nope.txt")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLiveness_Metrics(t *testing.T) {
	requestsTotal.WithLabelValues(OutcomeDelivered.String()).Add(0)
	router := newLivenessRouter(t.TempDir(), time.Now())

	resp := get(t, router, http.MethodGet, "/metrics")
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "roundclip_requests_total")
}

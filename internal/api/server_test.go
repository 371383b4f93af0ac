package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kafitramarna/replika/internal/config"
	"github.com/kafitramarna/replika/internal/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Source.User = "repl"
	cfg.API.APIKey = "test-key"
	return NewServer(&cfg.API, connector.New(cfg))
}

func doRequest(s *Server, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	// Nothing is connected in tests, so the service reports degraded.
	assert.Equal(t, "degraded", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestStatusRequiresAuth(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/connection/status", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/connection/status", "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodGet, "/api/v1/connection/status", "test-key")

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "disconnected", body["state"])
	assert.Equal(t, false, body["connected"])
}

func TestDisconnectNoopEndpoint(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodPost, "/api/v1/connection/disconnect", "test-key")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "disconnected")
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_Healthy(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var h Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, HealthStatusHealthy, h.Status)
	assert.Equal(t, "test", h.Version)
	assert.Equal(t, ComponentStatusUp, h.Components["storage"].Status)
	assert.Equal(t, "filesystem", h.Components["storage"].Details["backend"])
}

func TestHealth_StorageGone(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, os.RemoveAll(ts.root))

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var h Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, HealthStatusUnhealthy, h.Status)
	assert.Equal(t, ComponentStatusDown, h.Components["storage"].Status)
	assert.Equal(t, "storage unreachable", h.Components["storage"].Message)
}

func TestLive(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestDetermineOverallHealth(t *testing.T) {
	assert.Equal(t, HealthStatusHealthy, determineOverallHealth(map[string]ComponentHealth{
		"storage": {Status: ComponentStatusUp},
	}))
	assert.Equal(t, HealthStatusUnhealthy, determineOverallHealth(map[string]ComponentHealth{
		"storage": {Status: ComponentStatusUp},
		"other":   {Status: ComponentStatusDown},
	}))
}

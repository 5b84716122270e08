//go:build unix

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ipckit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ipckit/internal/pipe"
)

func setupRouter(t *testing.T) (*gin.Engine, *pipe.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := pipe.New()
	handlers := NewOpsHandlers(manager, monitoring.New())
	router := gin.New()
	handlers.Register(router)
	return router, manager
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["streams_open"])
}

func TestStreamsReflectsManager(t *testing.T) {
	router, manager := setupRouter(t)

	s, err := manager.Open("sleep 1", pipe.WriteToChild)
	require.NoError(t, err)
	defer manager.Close(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/streams", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count   int               `json:"count"`
		Streams []pipe.StreamInfo `json:"streams"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "sleep 1", body.Streams[0].Command)
	assert.Equal(t, "write", body.Streams[0].Direction)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ipckit_streams_open")
}

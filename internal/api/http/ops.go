//go:build unix

// Package http provides the daemon's operational HTTP endpoints.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ipckit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ipckit/internal/pipe"
)

// OpsHandlers serves health, metrics, and stream inspection endpoints.
type OpsHandlers struct {
	manager *pipe.Manager
	metrics *monitoring.Metrics
}

// NewOpsHandlers creates the operational handler set.
func NewOpsHandlers(manager *pipe.Manager, metrics *monitoring.Metrics) *OpsHandlers {
	return &OpsHandlers{manager: manager, metrics: metrics}
}

// Register mounts the operational routes.
func (h *OpsHandlers) Register(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/streams", h.Streams)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
}

// Health reports daemon liveness.
func (h *OpsHandlers) Health(c *gin.Context) {
	h.metrics.UpdateUptime()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"streams_open": h.manager.Len(),
	})
}

// Streams lists every currently open managed pipe stream.
func (h *OpsHandlers) Streams(c *gin.Context) {
	streams := h.manager.OpenStreams()
	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"count":   len(streams),
	})
}

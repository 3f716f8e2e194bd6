package handler

import (
	"net/http"

	"Kaupa/internal/hub"

	"github.com/gin-gonic/gin"
)

// MonitorHandler exposes the live hub snapshot for operations.
type MonitorHandler struct {
	hub *hub.Hub
}

func NewMonitorHandler(h *hub.Hub) *MonitorHandler {
	return &MonitorHandler{hub: h}
}

// Stats handles GET /monitor/stats.
func (h *MonitorHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// Health handles GET /health.
func (h *MonitorHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

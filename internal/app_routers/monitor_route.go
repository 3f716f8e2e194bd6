package app_routers

import (
	"Kaupa/internal/configuration"

	"github.com/gin-gonic/gin"
)

// RegisterMonitorRoutes mounts the unauthenticated operational endpoints.
func RegisterMonitorRoutes(engine *gin.Engine, c *configuration.Container) {
	engine.GET("/health", c.MonitorHandler.Health)
	engine.GET("/monitor/stats", c.MonitorHandler.Stats)
}

package approuters

import (
	"net/http"

	"Livestream/internal/configuration"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MonitorRouters sets up the operational routes. Stats and metrics are not
// behind the user credential middleware.
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	monitorGroup := router.Group("/api/monitor")
	{
		// GET /api/monitor/stats - Get gateway statistics
		monitorGroup.GET("/stats", container.MonitorHandler.GetGatewayStats)
	}
}

func PresenceRouters(api *gin.RouterGroup, container *configuration.Container) {
	api.GET("/presence/:userId", container.MonitorHandler.GetPresence)
}

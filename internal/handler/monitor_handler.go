package handler

import (
	"net/http"

	"Livestream/internal/hub"
	"Livestream/internal/presence"

	"github.com/gin-gonic/gin"
)

// MonitorHandler handles monitoring and presence API endpoints
type MonitorHandler interface {
	GetGatewayStats(c *gin.Context)
	GetPresence(c *gin.Context)
}

type monitorHandler struct {
	monitorService *hub.MonitorService
	presence       presence.Tracker
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService *hub.MonitorService, tracker presence.Tracker) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
		presence:       tracker,
	}
}

// GetGatewayStats returns current gateway statistics
func (h *monitorHandler) GetGatewayStats(c *gin.Context) {
	stats := h.monitorService.GetStats()
	respond(c, http.StatusOK, stats, "Gateway statistics retrieved successfully")
}

// GetPresence returns the online state and last-seen time of a user
func (h *monitorHandler) GetPresence(c *gin.Context) {
	respond(c, http.StatusOK, h.presence.Status(c.Param("userId")), "Presence retrieved successfully")
}

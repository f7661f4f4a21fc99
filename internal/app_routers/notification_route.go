package approuters

import (
	"Livestream/internal/configuration"

	"github.com/gin-gonic/gin"
)

func NotificationRouters(api *gin.RouterGroup, container *configuration.Container) {
	h := container.NotificationHandler
	notificationRoute := api.Group("/notifications")
	{
		notificationRoute.GET("", h.GetNotifications)
		notificationRoute.GET("/unread-count", h.GetUnreadCount)
		notificationRoute.PATCH("/read-all", h.MarkAllAsRead)
		notificationRoute.PATCH("/:id/read", h.MarkAsRead)
		notificationRoute.DELETE("/:id", h.DeleteNotification)
		notificationRoute.DELETE("", h.ClearAll)
	}
}

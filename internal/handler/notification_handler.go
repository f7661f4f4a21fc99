package handler

import (
	"net/http"

	"Livestream/internal/auth"
	"Livestream/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler serves the caller's notifications. The service pushes
// notification-count to the caller's sockets after each mutation.
type NotificationHandler interface {
	GetNotifications(c *gin.Context)
	GetUnreadCount(c *gin.Context)
	MarkAsRead(c *gin.Context)
	MarkAllAsRead(c *gin.Context)
	DeleteNotification(c *gin.Context)
	ClearAll(c *gin.Context)
}

type notificationHandler struct {
	notifications service.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications service.NotificationService, logger *zap.Logger) NotificationHandler {
	return &notificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

type countResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

func (h *notificationHandler) GetNotifications(c *gin.Context) {
	page, err := queryInt64(c, "page", 1)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	limit, err := queryInt64(c, "limit", 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.notifications.GetNotifications(c.Request.Context(), auth.UserID(c), page, limit, c.Query("type"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result, "Notifications retrieved successfully")
}

func (h *notificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, countResponse{UnreadCount: count}, "Unread count retrieved successfully")
}

func (h *notificationHandler) MarkAsRead(c *gin.Context) {
	count, err := h.notifications.MarkAsRead(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, countResponse{UnreadCount: count}, "Notification marked as read")
}

func (h *notificationHandler) MarkAllAsRead(c *gin.Context) {
	count, err := h.notifications.MarkAllAsRead(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, countResponse{UnreadCount: count}, "All notifications marked as read")
}

func (h *notificationHandler) DeleteNotification(c *gin.Context) {
	count, err := h.notifications.DeleteNotification(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, countResponse{UnreadCount: count}, "Notification deleted")
}

func (h *notificationHandler) ClearAll(c *gin.Context) {
	count, err := h.notifications.ClearAll(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, countResponse{UnreadCount: count}, "All notifications cleared")
}

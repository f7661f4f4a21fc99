package approuters

import (
	"Livestream/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ConversationRouters(api *gin.RouterGroup, container *configuration.Container) {
	conversationRoute := api.Group("/conversations")
	{
		conversationRoute.GET("", container.ConversationHandler.GetConversations)
		conversationRoute.POST("", container.ConversationHandler.CreateConversation)
		conversationRoute.GET("/:id/messages", container.ConversationHandler.GetConversationMessages)
	}
}

func MessageRouters(api *gin.RouterGroup, container *configuration.Container) {
	messageRoute := api.Group("/messages")
	{
		messageRoute.PATCH("/:id", container.MessageHandler.EditMessage)
		messageRoute.DELETE("/:id", container.MessageHandler.DeleteMessage)
		messageRoute.POST("/:id/read", container.MessageHandler.MarkMessageRead)
		messageRoute.POST("/:id/reactions", container.MessageHandler.ToggleReaction)
	}
}

package handler

import (
	"net/http"

	"Livestream/internal/apperr"
	"Livestream/internal/auth"
	"Livestream/internal/event"
	"Livestream/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler exposes the message mutations over HTTP. Every change is
// also broadcast to the conversation room, the same way the socket handlers do.
type MessageHandler interface {
	EditMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	MarkMessageRead(c *gin.Context)
	ToggleReaction(c *gin.Context)
}

type messageHandler struct {
	chat        service.ChatService
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewMessageHandler(chat service.ChatService, broadcaster Broadcaster, logger *zap.Logger) MessageHandler {
	return &messageHandler{
		chat:        chat,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

type editMessageRequest struct {
	Content string `json:"content"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (h *messageHandler) EditMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	msg, err := h.chat.EditMessage(c.Request.Context(), c.Param("id"), auth.UserID(c), req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	broadcast(h.broadcaster, h.logger, event.ConversationRoom(msg.ConversationID.Hex()), event.EventMessageEdited, msg)
	respond(c, http.StatusOK, msg, "Message updated successfully")
}

func (h *messageHandler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("id")
	res, err := h.chat.SoftDelete(c.Request.Context(), messageID, auth.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if res.Changed {
		convID := res.Message.ConversationID.Hex()
		broadcast(h.broadcaster, h.logger, event.ConversationRoom(convID), event.EventMessageDeleted, event.MessageDeletedEvent{
			MessageID:      messageID,
			ConversationID: convID,
			DeletedBy:      res.Message.DeletedBy,
		})
	}
	respond(c, http.StatusOK, res.Message, "Message deleted successfully")
}

func (h *messageHandler) MarkMessageRead(c *gin.Context) {
	messageID := c.Param("id")
	userID := auth.UserID(c)
	res, err := h.chat.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if res.Changed {
		convID := res.Message.ConversationID.Hex()
		broadcast(h.broadcaster, h.logger, event.ConversationRoom(convID), event.EventMessageRead, event.MessageReadEvent{
			MessageID:      messageID,
			ConversationID: convID,
			UserID:         userID,
		})
	}
	respond(c, http.StatusOK, res.Message, "Message marked as read")
}

func (h *messageHandler) ToggleReaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	messageID := c.Param("id")
	userID := auth.UserID(c)
	res, err := h.chat.ToggleReaction(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	convID := res.Message.ConversationID.Hex()
	reaction := event.ReactionEvent{
		MessageID:      messageID,
		ConversationID: convID,
		UserID:         userID,
		Emoji:          res.Emoji,
		Reactions:      res.Message.Reactions,
	}
	broadcast(h.broadcaster, h.logger, event.ConversationRoom(convID), event.EventMessageReaction, reaction)
	respond(c, http.StatusOK, reaction, "Reaction updated successfully")
}

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

type ConversationHandler interface {
	GetConversations(c *gin.Context)
	CreateConversation(c *gin.Context)
	GetConversationMessages(c *gin.Context)
}

type conversationHandler struct {
	chat        service.ChatService
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewConversationHandler(chat service.ChatService, broadcaster Broadcaster, logger *zap.Logger) ConversationHandler {
	return &conversationHandler{
		chat:        chat,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

type createConversationRequest struct {
	UserID string `json:"userId"`
}

func (h *conversationHandler) GetConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, convs, "Conversations retrieved successfully")
}

// CreateConversation returns the direct conversation between the caller and
// userId, creating it on first use.
func (h *conversationHandler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	userID := auth.UserID(c)
	conv, created, err := h.chat.GetOrCreateConversation(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if !created {
		respond(c, http.StatusOK, conv, "Conversation retrieved successfully")
		return
	}
	room := event.ConversationRoom(conv.ID.Hex())
	for _, member := range conv.Members {
		h.broadcaster.JoinUser(member, room)
	}
	respond(c, http.StatusCreated, conv, "Conversation created successfully")
}

func (h *conversationHandler) GetConversationMessages(c *gin.Context) {
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

	msgs, err := h.chat.ListMessages(c.Request.Context(), auth.UserID(c), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgs, "Messages retrieved successfully")
}

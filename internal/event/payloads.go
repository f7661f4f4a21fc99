package event

import "Livestream/internal/model"

// -----------------------------------------------------------------
// Inbound payloads
// -----------------------------------------------------------------

type AuthPayload struct {
	Token string `json:"token"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID string             `json:"conversationId"`
	Content        string             `json:"content"`
	Type           string             `json:"type"`
	Attachments    []model.Attachment `json:"attachments"`
}

type MarkAsReadPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

type MessageRefPayload struct {
	MessageID string `json:"messageId"`
}

type ToggleReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type NotificationRefPayload struct {
	NotificationID string `json:"notificationId"`
}

type GetNotificationsPayload struct {
	Page  int64  `json:"page"`
	Limit int64  `json:"limit"`
	Type  string `json:"type,omitempty"`
}

// -----------------------------------------------------------------
// Outbound payloads
// -----------------------------------------------------------------

type MessageReadEvent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MessageDeletedEvent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	DeletedBy      string `json:"deletedBy"`
}

type ReactionEvent struct {
	MessageID      string           `json:"messageId"`
	ConversationID string           `json:"conversationId"`
	UserID         string           `json:"userId"`
	Emoji          string           `json:"emoji,omitempty"`
	Reactions      []model.Reaction `json:"reactions"`
}

type TypingEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type PresenceEvent struct {
	UserID   string `json:"userId"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

type CountEvent struct {
	Count int64 `json:"count"`
}

type NotificationRefEvent struct {
	NotificationID string `json:"notificationId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
}

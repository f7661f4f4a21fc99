package event

import "encoding/json"

// Inbound events (client -> server)
const (
	EventAuth                     = "auth"
	EventJoinConversation         = "join-conversation"
	EventLeaveConversation        = "leave-conversation"
	EventSendMessage              = "send-message"
	EventMarkAsRead               = "mark-as-read"
	EventTypingStart              = "typing-start"
	EventTypingStop               = "typing-stop"
	EventEditMessage              = "edit-message"
	EventDeleteMessage            = "delete-message"
	EventToggleReaction           = "toggle-reaction"
	EventMarkNotificationRead     = "mark-notification-read"
	EventMarkAllNotificationsRead = "mark-all-notifications-read"
	EventGetNotifications         = "get-notifications"
	EventDeleteNotification       = "delete-notification"
	EventClearAllNotifications    = "clear-all-notifications"
)

// Outbound events (server -> client)
const (
	EventNewMessage              = "new-message"
	EventConversationUpdated     = "conversation-updated"
	EventMessageRead             = "message-read"
	EventMessageEdited           = "message-edited"
	EventMessageDeleted          = "message-deleted"
	EventMessageReaction         = "message-reaction"
	EventUserTyping              = "user-typing"
	EventUserStopTyping          = "user-stop-typing"
	EventUserOnline              = "user-online"
	EventUserOffline             = "user-offline"
	EventNewNotification         = "new-notification"
	EventNotificationCount       = "notification-count"
	EventNotificationsList       = "notifications-list"
	EventNotificationRead        = "notification-read"
	EventNotificationDeleted     = "notification-deleted"
	EventAllNotificationsRead    = "all-notifications-read"
	EventAllNotificationsCleared = "all-notifications-cleared"
	EventError                   = "error"
)

// WsEvent is the wire envelope for every frame in both directions.
type WsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// New marshals payload into an envelope. A nil payload produces an event with no data.
func New(name string, payload interface{}) (WsEvent, error) {
	if payload == nil {
		return WsEvent{Event: name}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Data: b}, nil
}

// MustNew is New for payloads that are known to marshal.
func MustNew(name string, payload interface{}) WsEvent {
	ev, err := New(name, payload)
	if err != nil {
		panic(err)
	}
	return ev
}

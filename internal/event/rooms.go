package event

import "strings"

const (
	userRoomPrefix         = "user:"
	conversationRoomPrefix = "conversation:"
)

// UserRoom is the personal notification room of a user.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// ConversationRoom is the broadcast room of a conversation.
func ConversationRoom(conversationID string) string {
	return conversationRoomPrefix + conversationID
}

// IsConversationRoom reports whether roomID names a conversation room.
func IsConversationRoom(roomID string) bool {
	return strings.HasPrefix(roomID, conversationRoomPrefix)
}

// IsUserRoom reports whether roomID names a personal room.
func IsUserRoom(roomID string) bool {
	return strings.HasPrefix(roomID, userRoomPrefix)
}

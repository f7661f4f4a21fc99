package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType is the fixed set of notification kinds
type NotificationType string

const (
	NotificationFollow      NotificationType = "FOLLOW"
	NotificationLike        NotificationType = "LIKE"
	NotificationComment     NotificationType = "COMMENT"
	NotificationMessage     NotificationType = "MESSAGE"
	NotificationOrderUpdate NotificationType = "ORDER_UPDATE"
	NotificationStreamStart NotificationType = "STREAM_START"
	NotificationGeneral     NotificationType = "GENERAL"
)

// Valid reports whether t belongs to the enum.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationFollow, NotificationLike, NotificationComment, NotificationMessage,
		NotificationOrderUpdate, NotificationStreamStart, NotificationGeneral:
		return true
	}
	return false
}

// Notification is addressed to exactly one recipient
type Notification struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     string             `json:"user" bson:"user_id"`
	Type       NotificationType   `json:"type" bson:"type"`
	Message    string             `json:"message" bson:"message"`
	Link       string             `json:"link,omitempty" bson:"link"`
	FromUserID string             `json:"fromUserId,omitempty" bson:"from_user_id"`
	FromUser   *UserSummary       `json:"fromUser,omitempty" bson:"-"`
	IsRead     bool               `json:"isRead" bson:"is_read"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
}

// NotificationQuery filters a user's notifications
type NotificationQuery struct {
	UserID string
	Type   NotificationType
	Page   int64
	Limit  int64
}

// NotificationPage is one page of notifications plus counters
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unreadCount"`
	CurrentPage   int64          `json:"currentPage"`
	TotalPages    int64          `json:"totalPages"`
	Total         int64          `json:"total"`
	HasMore       bool           `json:"hasMore"`
}

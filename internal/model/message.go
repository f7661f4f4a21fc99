package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeAudio = "audio"
	MessageTypeVideo = "video"
)

// MaxContentLength bounds message content, counted in runes.
const MaxContentLength = 5000

// Message represents a chat message in MongoDB
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	Sender         *UserSummary       `json:"sender,omitempty" bson:"-"`
	Content        string             `json:"content" bson:"content"`
	Type           string             `json:"type" bson:"type"`
	Seq            int64              `json:"seq" bson:"seq"`
	ReadBy         []ReadReceipt      `json:"readBy" bson:"read_by"`
	Reactions      []Reaction         `json:"reactions" bson:"reactions"`
	Attachments    []Attachment       `json:"attachments" bson:"attachments"`
	Edited         bool               `json:"edited" bson:"edited"`
	EditedAt       *time.Time         `json:"editedAt" bson:"edited_at"`
	Deleted        bool               `json:"deleted" bson:"deleted"`
	DeletedAt      *time.Time         `json:"deletedAt" bson:"deleted_at"`
	DeletedBy      string             `json:"deletedBy,omitempty" bson:"deleted_by"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
}

// ReadReceipt records that a user has seen a message
type ReadReceipt struct {
	UserID string    `json:"userId" bson:"user_id"`
	ReadAt time.Time `json:"readAt" bson:"read_at"`
}

// Reaction represents a reaction on a message
type Reaction struct {
	UserID string `json:"userId" bson:"user_id"`
	Emoji  string `json:"emoji" bson:"emoji"`
}

// Attachment references media uploaded elsewhere
type Attachment struct {
	URL      string `json:"url" bson:"url"`
	Name     string `json:"name" bson:"name"`
	MimeType string `json:"mimeType" bson:"mime_type"`
	Size     int64  `json:"size" bson:"size"`
}

// IsValidMessageType reports whether t is one of the known message types.
func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeVideo:
		return true
	}
	return false
}

// HasReadBy reports whether userID already has a read receipt.
func (m *Message) HasReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// ReactionOf returns the emoji userID reacted with, if any.
func (m *Message) ReactionOf(userID string) (string, bool) {
	for _, r := range m.Reactions {
		if r.UserID == userID {
			return r.Emoji, true
		}
	}
	return "", false
}

// Redacted returns a copy safe for history reads: deleted messages keep their
// position and metadata but lose content and attachments.
func (m Message) Redacted() Message {
	if !m.Deleted {
		return m
	}
	m.Content = ""
	m.Attachments = nil
	m.Reactions = nil
	return m
}

package model

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a direct chat between a fixed set of members in MongoDB
type Conversation struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Members     []string           `json:"members" bson:"members"`
	PairKey     string             `json:"-" bson:"pair_key"`
	LastMessage *LastMessage       `json:"lastMessage" bson:"last_message"`
	Seq         int64              `json:"-" bson:"seq"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

// LastMessage stores the most recent message preview
type LastMessage struct {
	MessageID string    `json:"messageId" bson:"message_id"`
	Content   string    `json:"content" bson:"content"`
	Type      string    `json:"type" bson:"type"`
	SenderID  string    `json:"senderId" bson:"sender_id"`
	Seq       int64     `json:"seq" bson:"seq"`
	SentAt    time.Time `json:"sentAt" bson:"sent_at"`
}

// HasMember reports whether userID belongs to the conversation.
func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// OtherMembers returns every member except userID.
func (c *Conversation) OtherMembers(userID string) []string {
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	return out
}

// NormalizeMembers de-duplicates and sorts a member list so that the same set
// always produces the same slice.
func NormalizeMembers(members ...string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// PairKeyFor is the lookup key of a conversation keyed by its unordered member set.
func PairKeyFor(members ...string) string {
	return strings.Join(NormalizeMembers(members...), ":")
}

// Package memory provides in-process implementations of the repository
// interfaces. They back the "memory" store driver and the package tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"Livestream/internal/apperr"
	"Livestream/internal/db"
	"Livestream/internal/model"
	"Livestream/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one mutex. Values are copied in and out
// so callers never share memory with the store.
type Store struct {
	mu            sync.RWMutex
	conversations map[primitive.ObjectID]*model.Conversation
	pairs         map[string]primitive.ObjectID
	messages      map[primitive.ObjectID]*model.Message
	notifications map[primitive.ObjectID]*model.Notification
	users         map[string]*model.User
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[primitive.ObjectID]*model.Conversation),
		pairs:         make(map[string]primitive.ObjectID),
		messages:      make(map[primitive.ObjectID]*model.Message),
		notifications: make(map[primitive.ObjectID]*model.Notification),
		users:         make(map[string]*model.User),
	}
}

func (s *Store) Conversations() repo.ConversationRepository { return (*conversations)(s) }
func (s *Store) Messages() repo.MessageRepository           { return (*messages)(s) }
func (s *Store) Notifications() repo.NotificationRepository { return (*notifications)(s) }
func (s *Store) Users() repo.UserRepository                 { return (*users)(s) }

// PutUser seeds display data for hydration.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.UserID] = &u
}

// -----------------------------------------------------------------------------
// Conversations
// -----------------------------------------------------------------------------

type conversations Store

func copyConversation(c *model.Conversation) *model.Conversation {
	out := *c
	out.Members = append([]string(nil), c.Members...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return &out
}

func (r *conversations) GetByID(_ context.Context, id primitive.ObjectID) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, apperr.NotFound("conversation not found")
	}
	return copyConversation(c), nil
}

func (r *conversations) GetOrCreate(_ context.Context, members []string) (*model.Conversation, bool, error) {
	members = model.NormalizeMembers(members...)
	key := model.PairKeyFor(members...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.pairs[key]; ok {
		return copyConversation(r.conversations[id]), false, nil
	}
	now := time.Now().UTC()
	c := &model.Conversation{
		ID:        primitive.NewObjectID(),
		Members:   members,
		PairKey:   key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.conversations[c.ID] = c
	r.pairs[key] = c.ID
	return copyConversation(c), true, nil
}

func (r *conversations) ListForUser(_ context.Context, userID string) ([]model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Conversation, 0)
	for _, c := range r.conversations {
		if c.HasMember(userID) {
			out = append(out, *copyConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *conversations) NextSeq(_ context.Context, id primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return 0, apperr.NotFound("conversation not found")
	}
	c.Seq++
	return c.Seq, nil
}

func (r *conversations) SetLastMessage(_ context.Context, id primitive.ObjectID, last model.LastMessage) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, apperr.NotFound("conversation not found")
	}
	if c.LastMessage == nil || c.LastMessage.Seq < last.Seq {
		c.LastMessage = &last
		c.UpdatedAt = last.SentAt
	}
	return copyConversation(c), nil
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

type messages Store

func copyMessage(m *model.Message) *model.Message {
	out := *m
	out.ReadBy = append([]model.ReadReceipt{}, m.ReadBy...)
	out.Reactions = append([]model.Reaction{}, m.Reactions...)
	out.Attachments = append([]model.Attachment(nil), m.Attachments...)
	return &out
}

func (r *messages) Insert(_ context.Context, msg *model.Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ID] = copyMessage(msg)
	return nil
}

func (r *messages) GetByID(_ context.Context, id primitive.ObjectID) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, apperr.NotFound("message not found")
	}
	return copyMessage(m), nil
}

func (r *messages) ListByConversation(_ context.Context, conversationID primitive.ObjectID, page, limit int64) (*db.PaginatedResult[model.Message], error) {
	params := db.PaginationParams{Page: page, PageSize: limit}.Normalize()

	r.mu.RLock()
	all := make([]model.Message, 0)
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			all = append(all, *copyMessage(m))
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return db.NewPaginatedResult(pageOf(all, params), int64(len(all)), params), nil
}

func (r *messages) mutate(id primitive.ObjectID, allowDeleted bool, fn func(m *model.Message) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || (m.Deleted && !allowDeleted) {
		return false, nil
	}
	return fn(m), nil
}

func (r *messages) AddReadReceipt(_ context.Context, id primitive.ObjectID, receipt model.ReadReceipt) (bool, error) {
	return r.mutate(id, true, func(m *model.Message) bool {
		if m.HasReadBy(receipt.UserID) {
			return false
		}
		m.ReadBy = append(m.ReadBy, receipt)
		return true
	})
}

func (r *messages) UpdateContent(_ context.Context, id primitive.ObjectID, content string, editedAt time.Time) (bool, error) {
	return r.mutate(id, false, func(m *model.Message) bool {
		m.Content = content
		m.Edited = true
		m.EditedAt = &editedAt
		return true
	})
}

func (r *messages) SoftDelete(_ context.Context, id primitive.ObjectID, deletedBy string, deletedAt time.Time) (bool, error) {
	return r.mutate(id, false, func(m *model.Message) bool {
		m.Deleted = true
		m.DeletedAt = &deletedAt
		m.DeletedBy = deletedBy
		return true
	})
}

func (r *messages) SetReaction(_ context.Context, id primitive.ObjectID, reaction model.Reaction) (bool, error) {
	return r.mutate(id, false, func(m *model.Message) bool {
		m.Reactions = append(withoutReaction(m.Reactions, reaction.UserID), reaction)
		return true
	})
}

func (r *messages) RemoveReaction(_ context.Context, id primitive.ObjectID, userID string) (bool, error) {
	return r.mutate(id, false, func(m *model.Message) bool {
		m.Reactions = withoutReaction(m.Reactions, userID)
		return true
	})
}

func withoutReaction(in []model.Reaction, userID string) []model.Reaction {
	out := make([]model.Reaction, 0, len(in))
	for _, r := range in {
		if r.UserID != userID {
			out = append(out, r)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

type notifications Store

func (r *notifications) Insert(_ context.Context, n *model.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	cp := *n
	cp.FromUser = nil
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.ID] = &cp
	return nil
}

func (r *notifications) List(_ context.Context, q model.NotificationQuery) ([]model.Notification, int64, error) {
	params := db.PaginationParams{Page: q.Page, PageSize: q.Limit}.Normalize()

	r.mu.RLock()
	all := make([]model.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID != q.UserID || (q.Type != "" && n.Type != q.Type) {
			continue
		}
		all = append(all, *n)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.Hex() > all[j].ID.Hex()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return pageOf(all, params), int64(len(all)), nil
}

func (r *notifications) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, v := range r.notifications {
		if v.UserID == userID && !v.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *notifications) MarkRead(_ context.Context, userID string, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

func (r *notifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var modified int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			modified++
		}
	}
	return modified, nil
}

func (r *notifications) Delete(_ context.Context, userID string, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(r.notifications, id)
	return true, nil
}

func (r *notifications) DeleteAll(_ context.Context, userID string) (int64, error) {
	return r.deleteWhere(func(n *model.Notification) bool { return n.UserID == userID }), nil
}

func (r *notifications) PurgeReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(n *model.Notification) bool { return n.IsRead && n.CreatedAt.Before(cutoff) }), nil
}

func (r *notifications) deleteWhere(match func(n *model.Notification) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, n := range r.notifications {
		if match(n) {
			delete(r.notifications, id)
			deleted++
		}
	}
	return deleted
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

type users Store

func (r *users) GetUser(_ context.Context, userID string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func pageOf[T any](all []T, params db.PaginationParams) []T {
	start := params.Skip()
	if start >= int64(len(all)) {
		return []T{}
	}
	end := start + params.PageSize
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[start:end]
}

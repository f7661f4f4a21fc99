package service

import (
	"context"

	"Livestream/internal/model"
	"Livestream/internal/repo"

	"go.uber.org/zap"
)

// Hydrator joins display fields of users onto read models. A failed lookup
// leaves the field empty.
type Hydrator struct {
	users  repo.UserRepository
	logger *zap.Logger
}

func NewHydrator(users repo.UserRepository, logger *zap.Logger) *Hydrator {
	return &Hydrator{users: users, logger: logger}
}

// User returns the display summary of userID or nil.
func (h *Hydrator) User(ctx context.Context, userID string) *model.UserSummary {
	if h == nil || h.users == nil || userID == "" {
		return nil
	}
	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.logger.Debug("user hydration skipped", zap.String("userID", userID), zap.Error(err))
		return nil
	}
	return u.Summary()
}

// Messages fills Sender on each message, looking each sender up once.
func (h *Hydrator) Messages(ctx context.Context, msgs []model.Message) {
	cache := make(map[string]*model.UserSummary)
	for i := range msgs {
		id := msgs[i].SenderID
		s, ok := cache[id]
		if !ok {
			s = h.User(ctx, id)
			cache[id] = s
		}
		msgs[i].Sender = s
	}
}

// Message fills Sender on a single message.
func (h *Hydrator) Message(ctx context.Context, msg *model.Message) {
	if msg != nil {
		msg.Sender = h.User(ctx, msg.SenderID)
	}
}

// Notifications fills FromUser on each notification.
func (h *Hydrator) Notifications(ctx context.Context, items []model.Notification) {
	cache := make(map[string]*model.UserSummary)
	for i := range items {
		id := items[i].FromUserID
		if id == "" {
			continue
		}
		s, ok := cache[id]
		if !ok {
			s = h.User(ctx, id)
			cache[id] = s
		}
		items[i].FromUser = s
	}
}

// DisplayName is the name used in notification text.
func (h *Hydrator) DisplayName(ctx context.Context, userID string) string {
	if s := h.User(ctx, userID); s != nil && s.Name != "" {
		return s.Name
	}
	return "Someone"
}

package service

import (
	"context"
	"strings"
	"time"

	"Livestream/internal/apperr"
	"Livestream/internal/db"
	"Livestream/internal/event"
	"Livestream/internal/metrics"
	"Livestream/internal/model"
	"Livestream/internal/repo"

	"go.uber.org/zap"
)

// previewLength bounds quoted user content in notification text, in runes.
const previewLength = 50

// Publisher delivers an event to every connection joined to a room.
type Publisher interface {
	Broadcast(roomID string, ev event.WsEvent) int
}

type NotificationService interface {
	CreateNotification(ctx context.Context, in NotificationInput) (*model.Notification, error)

	// The Send* helpers return a nil notification when the actor is the target.
	SendLikeNotification(ctx context.Context, actorID, ownerID, postID string) (*model.Notification, error)
	SendCommentNotification(ctx context.Context, actorID, ownerID, postID, comment string) (*model.Notification, error)
	SendFollowNotification(ctx context.Context, followerID, followedID string) (*model.Notification, error)
	SendMessageNotification(ctx context.Context, senderID, recipientID, conversationID, content string) (*model.Notification, error)
	SendStreamStartNotification(ctx context.Context, streamerID string, followerIDs []string, streamID, title string) (int, error)
	SendOrderUpdateNotification(ctx context.Context, userID, orderID, status string) (*model.Notification, error)

	GetNotifications(ctx context.Context, userID string, page, limit int64, typeFilter string) (*model.NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) (int64, error)
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, notificationID string) (int64, error)
	ClearAll(ctx context.Context, userID string) (int64, error)
}

type NotificationInput struct {
	UserID     string
	Type       model.NotificationType
	Message    string
	Link       string
	FromUserID string
}

type notificationService struct {
	notifications repo.NotificationRepository
	hydrator      *Hydrator
	publisher     Publisher
	logger        *zap.Logger
	now           func() time.Time
}

func NewNotificationService(
	notifications repo.NotificationRepository,
	hydrator *Hydrator,
	publisher Publisher,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		hydrator:      hydrator,
		publisher:     publisher,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func (s *notificationService) push(userID, name string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	ev, err := event.New(name, payload)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}
	s.publisher.Broadcast(event.UserRoom(userID), ev)
}

// pushCount recomputes the unread count and pushes it to the user's room.
func (s *notificationService) pushCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.push(userID, event.EventNotificationCount, event.CountEvent{Count: count})
	return count, nil
}

func (s *notificationService) CreateNotification(ctx context.Context, in NotificationInput) (*model.Notification, error) {
	if in.UserID == "" {
		return nil, apperr.Validation("recipient is required")
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("unknown notification type " + string(in.Type))
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, apperr.Validation("notification text is required")
	}
	if in.Type != model.NotificationGeneral && in.FromUserID == in.UserID {
		return nil, apperr.Validation("recipient and sender must differ")
	}

	n := &model.Notification{
		UserID:     in.UserID,
		Type:       in.Type,
		Message:    in.Message,
		Link:       in.Link,
		FromUserID: in.FromUserID,
		CreatedAt:  s.now(),
	}
	if err := s.notifications.Insert(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	n.FromUser = s.hydrator.User(ctx, n.FromUserID)
	s.push(n.UserID, event.EventNewNotification, n)

	// Persist, push and recount are separate steps; a concurrent create can
	// leave the pushed count one behind until the next recount.
	if _, err := s.pushCount(ctx, n.UserID); err != nil {
		s.logger.Warn("Failed to push unread count", zap.String("userID", n.UserID), zap.Error(err))
	}

	s.logger.Debug("Notification created",
		zap.String("notificationID", n.ID.Hex()),
		zap.String("userID", n.UserID),
		zap.String("type", string(n.Type)))
	return n, nil
}

func (s *notificationService) SendLikeNotification(ctx context.Context, actorID, ownerID, postID string) (*model.Notification, error) {
	if actorID == ownerID {
		return nil, nil
	}
	return s.CreateNotification(ctx, NotificationInput{
		UserID:     ownerID,
		Type:       model.NotificationLike,
		Message:    s.hydrator.DisplayName(ctx, actorID) + " liked your post",
		Link:       "/post/" + postID,
		FromUserID: actorID,
	})
}

func (s *notificationService) SendCommentNotification(ctx context.Context, actorID, ownerID, postID, comment string) (*model.Notification, error) {
	if actorID == ownerID {
		return nil, nil
	}
	return s.CreateNotification(ctx, NotificationInput{
		UserID:     ownerID,
		Type:       model.NotificationComment,
		Message:    s.hydrator.DisplayName(ctx, actorID) + " commented: " + truncate(comment, previewLength),
		Link:       "/post/" + postID,
		FromUserID: actorID,
	})
}

func (s *notificationService) SendFollowNotification(ctx context.Context, followerID, followedID string) (*model.Notification, error) {
	if followerID == followedID {
		return nil, nil
	}
	return s.CreateNotification(ctx, NotificationInput{
		UserID:     followedID,
		Type:       model.NotificationFollow,
		Message:    s.hydrator.DisplayName(ctx, followerID) + " started following you",
		Link:       "/profile/" + followerID,
		FromUserID: followerID,
	})
}

func (s *notificationService) SendMessageNotification(ctx context.Context, senderID, recipientID, conversationID, content string) (*model.Notification, error) {
	if senderID == recipientID {
		return nil, nil
	}
	return s.CreateNotification(ctx, NotificationInput{
		UserID:     recipientID,
		Type:       model.NotificationMessage,
		Message:    s.hydrator.DisplayName(ctx, senderID) + ": " + truncate(content, previewLength),
		Link:       "/messages/" + conversationID,
		FromUserID: senderID,
	})
}

// SendStreamStartNotification notifies every follower and returns how many
// notifications were created. A failure for one follower does not stop the rest.
func (s *notificationService) SendStreamStartNotification(ctx context.Context, streamerID string, followerIDs []string, streamID, title string) (int, error) {
	recipients := Unique(Filter(followerIDs, func(id string) bool { return id != "" && id != streamerID }))
	if len(recipients) == 0 {
		return 0, nil
	}

	text := s.hydrator.DisplayName(ctx, streamerID) + " is live"
	if t := truncate(title, previewLength); t != "" {
		text += ": " + t
	}

	var (
		created int
		lastErr error
	)
	for _, id := range recipients {
		_, err := s.CreateNotification(ctx, NotificationInput{
			UserID:     id,
			Type:       model.NotificationStreamStart,
			Message:    text,
			Link:       "/live/" + streamID,
			FromUserID: streamerID,
		})
		if err != nil {
			s.logger.Warn("Failed to notify follower of stream start",
				zap.String("followerID", id), zap.String("streamID", streamID), zap.Error(err))
			lastErr = err
			continue
		}
		created++
	}
	if created == 0 {
		return 0, lastErr
	}
	return created, nil
}

func (s *notificationService) SendOrderUpdateNotification(ctx context.Context, userID, orderID, status string) (*model.Notification, error) {
	if status == "" {
		return nil, apperr.Validation("order status is required")
	}
	return s.CreateNotification(ctx, NotificationInput{
		UserID:  userID,
		Type:    model.NotificationOrderUpdate,
		Message: "Your order " + orderID + " is now " + strings.ToLower(status),
		Link:    "/orders/" + orderID,
	})
}

func (s *notificationService) GetNotifications(ctx context.Context, userID string, page, limit int64, typeFilter string) (*model.NotificationPage, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	q := model.NotificationQuery{UserID: userID, Page: page, Limit: limit}
	if typeFilter != "" {
		t := model.NotificationType(strings.ToUpper(typeFilter))
		if !t.Valid() {
			return nil, apperr.Validation("unknown notification type " + typeFilter)
		}
		q.Type = t
	}
	params := db.PaginationParams{Page: page, PageSize: limit}.Normalize()
	q.Page, q.Limit = params.Page, params.PageSize

	items, total, err := s.notifications.List(ctx, q)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.hydrator.Notifications(ctx, items)

	totalPages := total / q.Limit
	if total%q.Limit > 0 {
		totalPages++
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &model.NotificationPage{
		Notifications: items,
		UnreadCount:   unread,
		CurrentPage:   q.Page,
		TotalPages:    totalPages,
		Total:         total,
		HasMore:       total > q.Page*q.Limit,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.notifications.CountUnread(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (int64, error) {
	id, err := parseObjectID("notification", notificationID)
	if err != nil {
		return 0, err
	}
	found, err := s.notifications.MarkRead(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, apperr.NotFound("notification not found")
	}
	return s.pushCount(ctx, userID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("Notifications marked read", zap.String("userID", userID), zap.Int64("count", n))
	return s.pushCount(ctx, userID)
}

func (s *notificationService) DeleteNotification(ctx context.Context, userID, notificationID string) (int64, error) {
	id, err := parseObjectID("notification", notificationID)
	if err != nil {
		return 0, err
	}
	found, err := s.notifications.Delete(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, apperr.NotFound("notification not found")
	}
	return s.pushCount(ctx, userID)
}

func (s *notificationService) ClearAll(ctx context.Context, userID string) (int64, error) {
	if _, err := s.notifications.DeleteAll(ctx, userID); err != nil {
		return 0, err
	}
	return s.pushCount(ctx, userID)
}

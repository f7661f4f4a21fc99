package hub

import (
	"context"
	"encoding/json"

	"Livestream/internal/event"
)

// The notification service pushes notification-count to the user's room after
// every mutation; these handlers only acknowledge to the caller.

func (g *Gateway) handleMarkNotificationRead(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.NotificationRefPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if _, err := g.notifications.MarkAsRead(ctx, s.UserID, p.NotificationID); err != nil {
		return nil, err
	}
	return (&Outcome{}).Reply(event.EventNotificationRead, event.NotificationRefEvent{NotificationID: p.NotificationID}), nil
}

func (g *Gateway) handleMarkAllNotificationsRead(ctx context.Context, s *Session, _ json.RawMessage) (*Outcome, error) {
	if _, err := g.notifications.MarkAllAsRead(ctx, s.UserID); err != nil {
		return nil, err
	}
	return (&Outcome{}).Reply(event.EventAllNotificationsRead, nil), nil
}

func (g *Gateway) handleGetNotifications(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.GetNotificationsPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	page, err := g.notifications.GetNotifications(ctx, s.UserID, p.Page, p.Limit, p.Type)
	if err != nil {
		return nil, err
	}
	return (&Outcome{}).Reply(event.EventNotificationsList, page), nil
}

func (g *Gateway) handleDeleteNotification(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.NotificationRefPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if _, err := g.notifications.DeleteNotification(ctx, s.UserID, p.NotificationID); err != nil {
		return nil, err
	}
	return (&Outcome{}).Reply(event.EventNotificationDeleted, event.NotificationRefEvent{NotificationID: p.NotificationID}), nil
}

func (g *Gateway) handleClearAllNotifications(ctx context.Context, s *Session, _ json.RawMessage) (*Outcome, error) {
	if _, err := g.notifications.ClearAll(ctx, s.UserID); err != nil {
		return nil, err
	}
	return (&Outcome{}).Reply(event.EventAllNotificationsCleared, nil), nil
}

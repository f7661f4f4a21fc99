package hub

import (
	"context"
	"encoding/json"

	"Livestream/internal/apperr"
	"Livestream/internal/event"
	"Livestream/internal/service"

	"go.uber.org/zap"
)

func (g *Gateway) handleJoinConversation(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.ConversationPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	room := event.ConversationRoom(p.ConversationID)
	if p.ConversationID != "" && s.InRoom(room) {
		return nil, nil
	}
	if _, err := g.chat.ConversationForMember(ctx, s.UserID, p.ConversationID); err != nil {
		return nil, err
	}
	return (&Outcome{}).Join(room), nil
}

func (g *Gateway) handleLeaveConversation(_ context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.ConversationPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.ConversationID == "" {
		return nil, apperr.Validation("conversation id is required")
	}
	return (&Outcome{}).Leave(event.ConversationRoom(p.ConversationID)), nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.SendMessagePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}

	res, err := g.chat.SendMessage(ctx, service.SendMessageInput{
		SenderID:       s.UserID,
		ConversationID: p.ConversationID,
		Content:        p.Content,
		Type:           p.Type,
		Attachments:    p.Attachments,
	})
	if err != nil {
		return nil, err
	}

	room := event.ConversationRoom(p.ConversationID)
	out := (&Outcome{}).Join(room).JoinMember(s.UserID, room)
	// Members who connected before the conversation existed are not in its room yet.
	for _, member := range res.Recipients {
		out.JoinMember(member, room)
	}
	out.Broadcast(room, event.EventNewMessage, res.Message).
		Broadcast(room, event.EventConversationUpdated, res.Conversation)

	content := res.Message.Content
	out.Then(func(ctx context.Context) {
		for _, recipient := range res.Recipients {
			if _, err := g.notifications.SendMessageNotification(ctx, s.UserID, recipient, p.ConversationID, content); err != nil {
				g.logger.Warn("Failed to create message notification",
					zap.String("recipient", recipient),
					zap.String("conversationID", p.ConversationID),
					zap.Error(err))
			}
		}
	})
	return out, nil
}

func (g *Gateway) handleMarkAsRead(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.MarkAsReadPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}

	res, err := g.chat.MarkRead(ctx, p.MessageID, s.UserID)
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		return nil, nil
	}

	convID := res.Message.ConversationID.Hex()
	return (&Outcome{}).Broadcast(event.ConversationRoom(convID), event.EventMessageRead, event.MessageReadEvent{
		MessageID:      p.MessageID,
		ConversationID: convID,
		UserID:         s.UserID,
	}), nil
}

// typingHandler relays typing indicators to the other connections of the room.
func (g *Gateway) typingHandler(outbound string) Handler {
	return func(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
		var p event.ConversationPayload
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		room := event.ConversationRoom(p.ConversationID)
		out := &Outcome{}
		if p.ConversationID == "" || !s.InRoom(room) {
			if _, err := g.chat.ConversationForMember(ctx, s.UserID, p.ConversationID); err != nil {
				return nil, err
			}
			out.Join(room)
		}
		return out.BroadcastExcept(room, s.ConnID, outbound, event.TypingEvent{
			UserID:         s.UserID,
			ConversationID: p.ConversationID,
		}), nil
	}
}

func (g *Gateway) handleEditMessage(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.EditMessagePayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}

	msg, err := g.chat.EditMessage(ctx, p.MessageID, s.UserID, p.Content)
	if err != nil {
		return nil, err
	}
	room := event.ConversationRoom(msg.ConversationID.Hex())
	return (&Outcome{}).Broadcast(room, event.EventMessageEdited, msg), nil
}

func (g *Gateway) handleDeleteMessage(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.MessageRefPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}

	res, err := g.chat.SoftDelete(ctx, p.MessageID, s.UserID)
	if err != nil {
		return nil, err
	}

	convID := res.Message.ConversationID.Hex()
	payload := event.MessageDeletedEvent{
		MessageID:      p.MessageID,
		ConversationID: convID,
		DeletedBy:      res.Message.DeletedBy,
	}
	if !res.Changed {
		return (&Outcome{}).Reply(event.EventMessageDeleted, payload), nil
	}
	return (&Outcome{}).Broadcast(event.ConversationRoom(convID), event.EventMessageDeleted, payload), nil
}

func (g *Gateway) handleToggleReaction(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error) {
	var p event.ToggleReactionPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}

	res, err := g.chat.ToggleReaction(ctx, p.MessageID, s.UserID, p.Emoji)
	if err != nil {
		return nil, err
	}

	convID := res.Message.ConversationID.Hex()
	return (&Outcome{}).Broadcast(event.ConversationRoom(convID), event.EventMessageReaction, event.ReactionEvent{
		MessageID:      p.MessageID,
		ConversationID: convID,
		UserID:         s.UserID,
		Emoji:          res.Emoji,
		Reactions:      res.Message.Reactions,
	}), nil
}

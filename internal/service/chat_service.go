package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"Livestream/internal/apperr"
	"Livestream/internal/db"
	"Livestream/internal/model"
	"Livestream/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ChatService owns conversation membership and the message state machine:
// created -> edited* -> deleted (terminal).
type ChatService interface {
	SendMessage(ctx context.Context, in SendMessageInput) (*SendResult, error)
	MarkRead(ctx context.Context, messageID, userID string) (*ReadResult, error)
	EditMessage(ctx context.Context, messageID, userID, content string) (*model.Message, error)
	SoftDelete(ctx context.Context, messageID, userID string) (*DeleteResult, error)
	ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*ReactionResult, error)
	ListMessages(ctx context.Context, userID, conversationID string, page, limit int64) (*db.PaginatedResult[model.Message], error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	GetOrCreateConversation(ctx context.Context, userID, otherID string) (*model.Conversation, bool, error)
	// ConversationForMember loads a conversation and checks that userID belongs to it.
	ConversationForMember(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
}

type SendMessageInput struct {
	SenderID       string
	ConversationID string
	Content        string
	Type           string
	Attachments    []model.Attachment
}

type SendResult struct {
	Message      *model.Message
	Conversation *model.Conversation
	// Recipients are the members other than the sender.
	Recipients []string
}

type ReadResult struct {
	Message *model.Message
	// Changed is false when the receipt already existed.
	Changed bool
}

type DeleteResult struct {
	Message *model.Message
	Changed bool
}

type ReactionResult struct {
	Message *model.Message
	// Emoji is the caller's reaction after the toggle, "" when removed.
	Emoji string
}

// ChatConfig carries the tunables of the chat protocol.
type ChatConfig struct {
	// Moderators may soft-delete messages they did not send.
	Moderators []string
}

type chatService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	hydrator      *Hydrator
	moderators    map[string]struct{}
	logger        *zap.Logger
	now           func() time.Time
}

func NewChatService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	hydrator *Hydrator,
	cfg ChatConfig,
	logger *zap.Logger,
) ChatService {
	mods := make(map[string]struct{}, len(cfg.Moderators))
	for _, m := range cfg.Moderators {
		mods[m] = struct{}{}
	}
	return &chatService{
		conversations: conversations,
		messages:      messages,
		hydrator:      hydrator,
		moderators:    mods,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func parseObjectID(kind, hex string) (primitive.ObjectID, error) {
	if hex == "" {
		return primitive.NilObjectID, apperr.Validation(kind + " id is required")
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid " + kind + " id")
	}
	return id, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Validation("message content is required")
	}
	if utf8.RuneCountInString(content) > model.MaxContentLength {
		return apperr.Validation("message content exceeds 5000 characters")
	}
	return nil
}

func (s *chatService) SendMessage(ctx context.Context, in SendMessageInput) (*SendResult, error) {
	convID, err := parseObjectID("conversation", in.ConversationID)
	if err != nil {
		return nil, err
	}

	msgType := in.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if !model.IsValidMessageType(msgType) {
		return nil, apperr.Validation("unknown message type " + msgType)
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	conv, err := s.conversations.GetByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(in.SenderID) {
		return nil, apperr.NotMember("not a member of this conversation")
	}

	seq, err := s.conversations.NextSeq(ctx, convID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &model.Message{
		ConversationID: convID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           msgType,
		Seq:            seq,
		ReadBy:         []model.ReadReceipt{},
		Reactions:      []model.Reaction{},
		Attachments:    in.Attachments,
		CreatedAt:      now,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	updated, err := s.conversations.SetLastMessage(ctx, convID, model.LastMessage{
		MessageID: msg.ID.Hex(),
		Content:   msg.Content,
		Type:      msg.Type,
		SenderID:  msg.SenderID,
		Seq:       msg.Seq,
		SentAt:    now,
	})
	if err != nil {
		// The message is already durable; readers still find it through history.
		s.logger.Warn("Failed to update last message",
			zap.String("conversationID", in.ConversationID),
			zap.String("messageID", msg.ID.Hex()),
			zap.Error(err))
		updated = conv
	}

	s.hydrator.Message(ctx, msg)

	return &SendResult{
		Message:      msg,
		Conversation: updated,
		Recipients:   conv.OtherMembers(in.SenderID),
	}, nil
}

// loadForMember fetches a message and checks the caller belongs to its conversation.
func (s *chatService) loadForMember(ctx context.Context, messageID, userID string) (primitive.ObjectID, *model.Message, error) {
	id, err := parseObjectID("message", messageID)
	if err != nil {
		return id, nil, err
	}
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return id, nil, err
	}
	conv, err := s.conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return id, nil, err
	}
	if !conv.HasMember(userID) {
		return id, nil, apperr.NotMember("not a member of this conversation")
	}
	return id, msg, nil
}

func (s *chatService) MarkRead(ctx context.Context, messageID, userID string) (*ReadResult, error) {
	id, msg, err := s.loadForMember(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.HasReadBy(userID) {
		redacted := msg.Redacted()
		return &ReadResult{Message: &redacted}, nil
	}

	changed, err := s.messages.AddReadReceipt(ctx, id, model.ReadReceipt{UserID: userID, ReadAt: s.now()})
	if err != nil {
		return nil, err
	}
	if changed {
		if msg, err = s.messages.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}
	// receipts are allowed on deleted messages; their content stays hidden
	redacted := msg.Redacted()
	return &ReadResult{Message: &redacted, Changed: changed}, nil
}

func (s *chatService) EditMessage(ctx context.Context, messageID, userID, content string) (*model.Message, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	id, msg, err := s.loadForMember(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, apperr.NotMember("only the sender can edit this message")
	}
	if msg.Deleted {
		return nil, apperr.InvalidState("message has been deleted")
	}

	ok, err := s.messages.UpdateContent(ctx, id, content, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Deleted between the read and the write.
		return nil, apperr.InvalidState("message has been deleted")
	}

	if msg, err = s.messages.GetByID(ctx, id); err != nil {
		return nil, err
	}
	s.hydrator.Message(ctx, msg)
	return msg, nil
}

func (s *chatService) canDelete(msg *model.Message, userID string) bool {
	if msg.SenderID == userID {
		return true
	}
	_, ok := s.moderators[userID]
	return ok
}

func (s *chatService) SoftDelete(ctx context.Context, messageID, userID string) (*DeleteResult, error) {
	id, err := parseObjectID("message", messageID)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canDelete(msg, userID) {
		return nil, apperr.NotMember("only the sender can delete this message")
	}
	if msg.Deleted {
		redacted := msg.Redacted()
		return &DeleteResult{Message: &redacted}, nil
	}

	changed, err := s.messages.SoftDelete(ctx, id, userID, s.now())
	if err != nil {
		return nil, err
	}
	if msg, err = s.messages.GetByID(ctx, id); err != nil {
		return nil, err
	}
	redacted := msg.Redacted()
	return &DeleteResult{Message: &redacted, Changed: changed}, nil
}

func (s *chatService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*ReactionResult, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, apperr.Validation("emoji is required")
	}
	id, msg, err := s.loadForMember(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, apperr.InvalidState("message has been deleted")
	}

	current, has := msg.ReactionOf(userID)
	next := emoji
	var ok bool
	if has && current == emoji {
		next = ""
		ok, err = s.messages.RemoveReaction(ctx, id, userID)
	} else {
		ok, err = s.messages.SetReaction(ctx, id, model.Reaction{UserID: userID, Emoji: emoji})
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState("message has been deleted")
	}

	if msg, err = s.messages.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return &ReactionResult{Message: msg, Emoji: next}, nil
}

func (s *chatService) ListMessages(ctx context.Context, userID, conversationID string, page, limit int64) (*db.PaginatedResult[model.Message], error) {
	if _, err := s.ConversationForMember(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	convID, _ := primitive.ObjectIDFromHex(conversationID)

	result, err := s.messages.ListByConversation(ctx, convID, page, limit)
	if err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i] = result.Data[i].Redacted()
	}
	s.hydrator.Messages(ctx, result.Data)
	return result, nil
}

func (s *chatService) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	return s.conversations.ListForUser(ctx, userID)
}

func (s *chatService) GetOrCreateConversation(ctx context.Context, userID, otherID string) (*model.Conversation, bool, error) {
	if userID == "" || otherID == "" {
		return nil, false, apperr.Validation("both members are required")
	}
	if userID == otherID {
		return nil, false, apperr.Validation("cannot start a conversation with yourself")
	}

	conv, created, err := s.conversations.GetOrCreate(ctx, []string{userID, otherID})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("Conversation created",
			zap.String("conversationID", conv.ID.Hex()),
			zap.Strings("members", conv.Members))
	}
	return conv, created, nil
}

func (s *chatService) ConversationForMember(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	id, err := parseObjectID("conversation", conversationID)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, apperr.NotMember("not a member of this conversation")
	}
	return conv, nil
}

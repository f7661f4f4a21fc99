package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"Livestream/internal/apperr"
	"Livestream/internal/event"
	"Livestream/internal/model"
	"Livestream/internal/repo/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	room string
	ev   event.WsEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Broadcast(roomID string, ev event.WsEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room: roomID, ev: ev})
	return 1
}

func (p *recordingPublisher) named(room, name string) []event.WsEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.WsEvent
	for _, e := range p.events {
		if e.room == room && e.ev.Event == name {
			out = append(out, e.ev)
		}
	}
	return out
}

type fixture struct {
	store *memory.Store
	pub   *recordingPublisher
	chat  ChatService
	notes NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutUser(model.User{UserID: "alice", Username: "alice", FirstName: "Alice", LastName: "Liddell"})
	store.PutUser(model.User{UserID: "bob", Username: "bob", FirstName: "Bob"})

	logger := zap.NewNop()
	hydrator := NewHydrator(store.Users(), logger)
	pub := &recordingPublisher{}
	return &fixture{
		store: store,
		pub:   pub,
		chat: NewChatService(store.Conversations(), store.Messages(), hydrator,
			ChatConfig{Moderators: []string{"mod"}}, logger),
		notes: NewNotificationService(store.Notifications(), hydrator, pub, logger),
	}
}

func (f *fixture) conversation(t *testing.T, a, b string) *model.Conversation {
	t.Helper()
	conv, _, err := f.chat.GetOrCreateConversation(context.Background(), a, b)
	require.NoError(t, err)
	return conv
}

func (f *fixture) send(t *testing.T, conv *model.Conversation, sender, content string) *model.Message {
	t.Helper()
	res, err := f.chat.SendMessage(context.Background(), SendMessageInput{
		SenderID:       sender,
		ConversationID: conv.ID.Hex(),
		Content:        content,
	})
	require.NoError(t, err)
	return res.Message
}

func TestGetOrCreateConversationIsKeyedByUnorderedPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.chat.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.chat.GetOrCreateConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"alice", "bob"}, second.Members)

	_, _, err = f.chat.GetOrCreateConversation(ctx, "alice", "alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, _, err = f.chat.GetOrCreateConversation(ctx, "alice", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")

	_, err := f.chat.SendMessage(context.Background(), SendMessageInput{
		SenderID:       "mallory",
		ConversationID: conv.ID.Hex(),
		Content:        "hi",
	})
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	page, err := f.chat.ListMessages(context.Background(), "alice", conv.ID.Hex(), 1, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.EqualValues(t, 0, page.Total)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	ctx := context.Background()

	cases := map[string]SendMessageInput{
		"empty":        {Content: ""},
		"whitespace":   {Content: "  \n\t"},
		"too long":     {Content: strings.Repeat("é", model.MaxContentLength+1)},
		"unknown type": {Content: "hi", Type: "sticker"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			in.SenderID = "alice"
			in.ConversationID = conv.ID.Hex()
			_, err := f.chat.SendMessage(ctx, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	res, err := f.chat.SendMessage(ctx, SendMessageInput{
		SenderID:       "alice",
		ConversationID: conv.ID.Hex(),
		Content:        strings.Repeat("é", model.MaxContentLength),
	})
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeText, res.Message.Type)

	_, err = f.chat.SendMessage(ctx, SendMessageInput{SenderID: "alice", ConversationID: "nope", Content: "hi"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSendMessageUpdatesConversationAndHydratesSender(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")

	res, err := f.chat.SendMessage(context.Background(), SendMessageInput{
		SenderID:       "alice",
		ConversationID: conv.ID.Hex(),
		Content:        "hello",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Message.Sender)
	assert.Equal(t, "Alice Liddell", res.Message.Sender.Name)
	assert.Equal(t, []string{"bob"}, res.Recipients)
	require.NotNil(t, res.Conversation.LastMessage)
	assert.Equal(t, "hello", res.Conversation.LastMessage.Content)
	assert.Equal(t, res.Message.ID.Hex(), res.Conversation.LastMessage.MessageID)
}

func TestHistoryFollowsCreationOrder(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "alice"
			if i%2 == 1 {
				sender = "bob"
			}
			_, err := f.chat.SendMessage(context.Background(), SendMessageInput{
				SenderID: sender, ConversationID: conv.ID.Hex(), Content: "m",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	page, err := f.chat.ListMessages(context.Background(), "bob", conv.ID.Hex(), 1, 100)
	require.NoError(t, err)
	require.Len(t, page.Data, 20)
	for i := 1; i < len(page.Data); i++ {
		assert.Less(t, page.Data[i-1].Seq, page.Data[i].Seq)
	}

	latest, err := f.chat.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.EqualValues(t, 20, latest[0].LastMessage.Seq)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	msg := f.send(t, conv, "alice", "hello")
	ctx := context.Background()

	first, err := f.chat.MarkRead(ctx, msg.ID.Hex(), "bob")
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := f.chat.MarkRead(ctx, msg.ID.Hex(), "bob")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	require.Len(t, second.Message.ReadBy, 1)
	assert.Equal(t, "bob", second.Message.ReadBy[0].UserID)

	_, err = f.chat.MarkRead(ctx, msg.ID.Hex(), "mallory")
	assert.ErrorIs(t, err, apperr.ErrNotMember)
}

func TestMarkReadHidesDeletedContent(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	msg := f.send(t, conv, "alice", "secret")
	ctx := context.Background()

	_, err := f.chat.SoftDelete(ctx, msg.ID.Hex(), "alice")
	require.NoError(t, err)

	first, err := f.chat.MarkRead(ctx, msg.ID.Hex(), "bob")
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.True(t, first.Message.Deleted)
	assert.Empty(t, first.Message.Content)
	assert.Empty(t, first.Message.Attachments)
	require.Len(t, first.Message.ReadBy, 1)

	second, err := f.chat.MarkRead(ctx, msg.ID.Hex(), "bob")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Empty(t, second.Message.Content)
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	msg := f.send(t, conv, "alice", "helo")
	ctx := context.Background()

	_, err := f.chat.EditMessage(ctx, msg.ID.Hex(), "bob", "hijack")
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	_, err = f.chat.EditMessage(ctx, msg.ID.Hex(), "alice", " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	edited, err := f.chat.EditMessage(ctx, msg.ID.Hex(), "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Content)
	assert.True(t, edited.Edited)
	assert.NotNil(t, edited.EditedAt)
}

// A deleted message rejects edits but keeps its place in history.
func TestSoftDeleteThenEditFails(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	first := f.send(t, conv, "alice", "one")
	doomed := f.send(t, conv, "alice", "two")
	f.send(t, conv, "bob", "three")
	ctx := context.Background()

	_, err := f.chat.SoftDelete(ctx, doomed.ID.Hex(), "bob")
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	del, err := f.chat.SoftDelete(ctx, doomed.ID.Hex(), "alice")
	require.NoError(t, err)
	assert.True(t, del.Changed)
	assert.True(t, del.Message.Deleted)
	assert.Equal(t, "alice", del.Message.DeletedBy)
	assert.Empty(t, del.Message.Content)

	again, err := f.chat.SoftDelete(ctx, doomed.ID.Hex(), "alice")
	require.NoError(t, err)
	assert.False(t, again.Changed)

	_, err = f.chat.EditMessage(ctx, doomed.ID.Hex(), "alice", "resurrect")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.chat.ToggleReaction(ctx, doomed.ID.Hex(), "bob", "👍")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	page, err := f.chat.ListMessages(ctx, "bob", conv.ID.Hex(), 1, 50)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, first.ID, page.Data[0].ID)
	assert.Equal(t, doomed.ID, page.Data[1].ID)
	assert.True(t, page.Data[1].Deleted)
	assert.Empty(t, page.Data[1].Content)
	assert.Equal(t, "three", page.Data[2].Content)
}

func TestModeratorCanDelete(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	msg := f.send(t, conv, "alice", "spam")

	del, err := f.chat.SoftDelete(context.Background(), msg.ID.Hex(), "mod")
	require.NoError(t, err)
	assert.Equal(t, "mod", del.Message.DeletedBy)
}

func TestToggleReaction(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	msg := f.send(t, conv, "alice", "hello")
	ctx := context.Background()

	res, err := f.chat.ToggleReaction(ctx, msg.ID.Hex(), "bob", "👍")
	require.NoError(t, err)
	assert.Equal(t, "👍", res.Emoji)
	assert.Len(t, res.Message.Reactions, 1)

	res, err = f.chat.ToggleReaction(ctx, msg.ID.Hex(), "bob", "👍")
	require.NoError(t, err)
	assert.Empty(t, res.Emoji)
	assert.Empty(t, res.Message.Reactions)

	_, err = f.chat.ToggleReaction(ctx, msg.ID.Hex(), "bob", "👍")
	require.NoError(t, err)
	res, err = f.chat.ToggleReaction(ctx, msg.ID.Hex(), "bob", "🎉")
	require.NoError(t, err)
	require.Len(t, res.Message.Reactions, 1)
	assert.Equal(t, model.Reaction{UserID: "bob", Emoji: "🎉"}, res.Message.Reactions[0])

	_, err = f.chat.ToggleReaction(ctx, msg.ID.Hex(), "alice", "❤️")
	require.NoError(t, err)
	got, err := f.store.Messages().GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, got.Reactions, 2)
}

func TestSelfNotificationsAreSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.notes.SendLikeNotification(ctx, "alice", "alice", "p1")
	require.NoError(t, err)
	assert.Nil(t, n)
	n, err = f.notes.SendCommentNotification(ctx, "alice", "alice", "p1", "me")
	require.NoError(t, err)
	assert.Nil(t, n)
	n, err = f.notes.SendFollowNotification(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Nil(t, n)
	n, err = f.notes.SendMessageNotification(ctx, "alice", "alice", "c1", "hi")
	require.NoError(t, err)
	assert.Nil(t, n)

	page, err := f.notes.GetNotifications(ctx, "alice", 1, 20, "")
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, f.pub.events)
}

func TestNotificationTextAndPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	like, err := f.notes.SendLikeNotification(ctx, "alice", "bob", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell liked your post", like.Message)
	assert.Equal(t, "/post/p1", like.Link)
	require.NotNil(t, like.FromUser)
	assert.Equal(t, "alice", like.FromUser.UserID)

	comment, err := f.notes.SendCommentNotification(ctx, "alice", "bob", "p1", strings.Repeat("x", 60))
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell commented: "+strings.Repeat("x", 50)+"...", comment.Message)

	follow, err := f.notes.SendFollowNotification(ctx, "ghost", "bob")
	require.NoError(t, err)
	assert.Equal(t, "Someone started following you", follow.Message)
	assert.Equal(t, "/profile/ghost", follow.Link)
	assert.Nil(t, follow.FromUser)

	room := event.UserRoom("bob")
	assert.Len(t, f.pub.named(room, event.EventNewNotification), 3)
	counts := f.pub.named(room, event.EventNotificationCount)
	require.Len(t, counts, 3)
	var last event.CountEvent
	require.NoError(t, json.Unmarshal(counts[2].Data, &last))
	assert.EqualValues(t, 3, last.Count)
}

func TestCreateNotificationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.notes.CreateNotification(ctx, NotificationInput{UserID: "bob", Type: "BOGUS", Message: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.notes.CreateNotification(ctx, NotificationInput{UserID: "bob", Type: model.NotificationLike, Message: "x", FromUserID: "bob"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	general, err := f.notes.CreateNotification(ctx, NotificationInput{
		UserID: "bob", Type: model.NotificationGeneral, Message: "maintenance tonight", FromUserID: "bob",
	})
	require.NoError(t, err)
	assert.False(t, general.IsRead)
}

func TestGetNotificationsPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.notes.SendLikeNotification(ctx, "alice", "bob", "p")
		require.NoError(t, err)
	}
	_, err := f.notes.SendFollowNotification(ctx, "alice", "bob")
	require.NoError(t, err)

	page, err := f.notes.GetNotifications(ctx, "bob", 1, 4, "")
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 4)
	assert.EqualValues(t, 6, page.Total)
	assert.EqualValues(t, 6, page.UnreadCount)
	assert.EqualValues(t, 2, page.TotalPages)
	assert.True(t, page.HasMore)
	assert.Equal(t, model.NotificationFollow, page.Notifications[0].Type)

	page, err = f.notes.GetNotifications(ctx, "bob", 2, 4, "")
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)
	assert.False(t, page.HasMore)

	likes, err := f.notes.GetNotifications(ctx, "bob", 1, 20, "like")
	require.NoError(t, err)
	assert.EqualValues(t, 5, likes.Total)

	_, err = f.notes.GetNotifications(ctx, "bob", 1, 20, "poke")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNotificationReadState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		n, err := f.notes.SendLikeNotification(ctx, "alice", "bob", "p")
		require.NoError(t, err)
		ids = append(ids, n.ID.Hex())
	}

	count, err := f.notes.MarkAsRead(ctx, "bob", ids[0])
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	count, err = f.notes.MarkAsRead(ctx, "bob", ids[0])
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = f.notes.MarkAsRead(ctx, "alice", ids[1])
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.notes.DeleteNotification(ctx, "alice", ids[1])
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	count, err = f.notes.MarkAllAsRead(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = f.notes.MarkAllAsRead(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)

	page, err := f.notes.GetNotifications(ctx, "bob", 1, 20, "")
	require.NoError(t, err)
	require.Len(t, page.Notifications, 3)
	for _, n := range page.Notifications {
		assert.True(t, n.IsRead)
	}

	_, err = f.notes.SendFollowNotification(ctx, "alice", "bob")
	require.NoError(t, err)
	count, err = f.notes.DeleteNotification(ctx, "bob", ids[2])
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = f.notes.ClearAll(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = f.notes.ClearAll(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)

	unread, err := f.notes.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestStreamStartAndOrderUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.notes.SendStreamStartNotification(ctx, "alice", []string{"bob", "alice", "", "carol", "bob"}, "s1", "Friday cooking")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	page, err := f.notes.GetNotifications(ctx, "carol", 1, 20, "STREAM_START")
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, "Alice Liddell is live: Friday cooking", page.Notifications[0].Message)
	assert.Equal(t, "/live/s1", page.Notifications[0].Link)

	order, err := f.notes.SendOrderUpdateNotification(ctx, "bob", "o-42", "SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, "Your order o-42 is now shipped", order.Message)
	assert.Empty(t, order.FromUserID)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 50))
	assert.Equal(t, "ééé...", truncate("éééé", 3))
}

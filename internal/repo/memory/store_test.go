package memory

import (
	"context"
	"testing"
	"time"

	"Livestream/internal/apperr"
	"Livestream/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConversationPairIsUnique(t *testing.T) {
	ctx := context.Background()
	convs := NewStore().Conversations()

	a, created, err := convs.GetOrCreate(ctx, []string{"bob", "alice"})
	require.NoError(t, err)
	assert.True(t, created)

	b, created, err := convs.GetOrCreate(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)

	_, err = convs.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetLastMessageNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	convs := NewStore().Conversations()
	conv, _, err := convs.GetOrCreate(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = convs.SetLastMessage(ctx, conv.ID, model.LastMessage{Content: "second", Seq: 2, SentAt: now})
	require.NoError(t, err)
	got, err := convs.SetLastMessage(ctx, conv.ID, model.LastMessage{Content: "first", Seq: 1, SentAt: now.Add(-time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "second", got.LastMessage.Content)
}

func TestMessageMutations(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	msgs := store.Messages()
	msg := &model.Message{ConversationID: primitive.NewObjectID(), SenderID: "alice", Content: "hi", Seq: 1}
	require.NoError(t, msgs.Insert(ctx, msg))

	ok, err := msgs.AddReadReceipt(ctx, msg.ID, model.ReadReceipt{UserID: "bob", ReadAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = msgs.AddReadReceipt(ctx, msg.ID, model.ReadReceipt{UserID: "bob", ReadAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = msgs.SetReaction(ctx, msg.ID, model.Reaction{UserID: "bob", Emoji: "👍"})
	require.NoError(t, err)
	_, err = msgs.SetReaction(ctx, msg.ID, model.Reaction{UserID: "bob", Emoji: "🎉"})
	require.NoError(t, err)

	got, err := msgs.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, got.ReadBy, 1)
	assert.Equal(t, []model.Reaction{{UserID: "bob", Emoji: "🎉"}}, got.Reactions)

	ok, err = msgs.SoftDelete(ctx, msg.ID, "alice", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = msgs.UpdateContent(ctx, msg.ID, "edited", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = msgs.RemoveReaction(ctx, msg.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = msgs.SoftDelete(ctx, msg.ID, "alice", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListByConversationOrdersBySeq(t *testing.T) {
	ctx := context.Background()
	msgs := NewStore().Messages()
	convID := primitive.NewObjectID()
	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, msgs.Insert(ctx, &model.Message{ConversationID: convID, Seq: seq}))
	}
	require.NoError(t, msgs.Insert(ctx, &model.Message{ConversationID: primitive.NewObjectID(), Seq: 1}))

	page, err := msgs.ListByConversation(ctx, convID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Data, 2)
	assert.EqualValues(t, 1, page.Data[0].Seq)
	assert.EqualValues(t, 2, page.Data[1].Seq)

	page, err = msgs.ListByConversation(ctx, convID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.EqualValues(t, 3, page.Data[0].Seq)
	assert.False(t, page.HasMore)
}

func TestNotificationsAreScopedToRecipient(t *testing.T) {
	ctx := context.Background()
	notes := NewStore().Notifications()
	n := &model.Notification{UserID: "bob", Type: model.NotificationFollow, CreatedAt: time.Now()}
	require.NoError(t, notes.Insert(ctx, n))

	ok, err := notes.MarkRead(ctx, "alice", n.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	deleted, err := notes.Delete(ctx, "alice", n.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	count, err := notes.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	ok, err = notes.MarkRead(ctx, "bob", n.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	count, err = notes.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUsersLookup(t *testing.T) {
	store := NewStore()
	store.PutUser(model.User{UserID: "alice", Username: "alice"})

	u, err := store.Users().GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = store.Users().GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

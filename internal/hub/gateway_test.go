package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Livestream/internal/apperr"
	"Livestream/internal/auth"
	"Livestream/internal/event"
	"Livestream/internal/model"
	"Livestream/internal/presence"
	"Livestream/internal/repo/memory"
	"Livestream/internal/service"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	store    *memory.Store
	chat     service.ChatService
	notes    service.NotificationService
	tracker  *presence.MemoryTracker
	verifier *auth.Verifier
	gateway  *Gateway
	server   *httptest.Server
}

func newTestEnv(t *testing.T, tune func(*Config)) *testEnv {
	t.Helper()
	store := memory.NewStore()
	store.PutUser(model.User{UserID: "alice", Username: "alice", FirstName: "Alice"})
	store.PutUser(model.User{UserID: "bob", Username: "bob", FirstName: "Bob"})

	logger := zap.NewNop()
	registry := NewRegistry()
	hydrator := service.NewHydrator(store.Users(), logger)
	chat := service.NewChatService(store.Conversations(), store.Messages(), hydrator, service.ChatConfig{}, logger)
	notes := service.NewNotificationService(store.Notifications(), hydrator, registry, logger)
	tracker := presence.NewMemoryTracker()
	verifier := auth.NewVerifier("test-secret", 0)

	cfg := DefaultConfig()
	cfg.AuthTimeout = 2 * time.Second
	if tune != nil {
		tune(&cfg)
	}

	g := NewGateway(cfg, registry, tracker, chat, notes, verifier, logger)
	srv := httptest.NewServer(http.HandlerFunc(g.ServeWS))
	t.Cleanup(func() {
		g.Stop()
		srv.Close()
	})

	return &testEnv{
		store:    store,
		chat:     chat,
		notes:    notes,
		tracker:  tracker,
		verifier: verifier,
		gateway:  g,
		server:   srv,
	}
}

func (e *testEnv) url(query string) string {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.verifier.Issue(userID, time.Minute)
	require.NoError(t, err)
	return token
}

// connect dials as userID and waits for the initial unread count, which is
// the last step of attaching.
func (e *testEnv) connect(t *testing.T, userID string) (*websocket.Conn, int64) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.url("token="+e.token(t, userID)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var count event.CountEvent
	decodeData(t, readEvent(t, conn, event.EventNotificationCount), &count)
	return conn, count.Count
}

func (e *testEnv) conversation(t *testing.T, a, b string) *model.Conversation {
	t.Helper()
	conv, _, err := e.chat.GetOrCreateConversation(context.Background(), a, b)
	require.NoError(t, err)
	return conv
}

func send(t *testing.T, conn *websocket.Conn, name string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(event.MustNew(name, payload)))
}

// readEvent reads frames until one named name arrives.
func readEvent(t *testing.T, conn *websocket.Conn, name string) event.WsEvent {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var ev event.WsEvent
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %s", name)
		if ev.Event == name {
			return ev
		}
	}
}

func decodeData(t *testing.T, ev event.WsEvent, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ev.Data, v))
}

// A online, B online: B sees the message with its sender and one unread MESSAGE notification.
func TestSendMessageReachesOnlineMember(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	alice, _ := env.connect(t, "alice")
	bob, initial := env.connect(t, "bob")
	assert.Zero(t, initial)

	send(t, alice, event.EventSendMessage, event.SendMessagePayload{
		ConversationID: conv.ID.Hex(),
		Content:        "hello",
	})

	var msg model.Message
	decodeData(t, readEvent(t, bob, event.EventNewMessage), &msg)
	assert.Equal(t, "hello", msg.Content)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.UserID)

	var updated model.Conversation
	decodeData(t, readEvent(t, bob, event.EventConversationUpdated), &updated)
	require.NotNil(t, updated.LastMessage)
	assert.Equal(t, "hello", updated.LastMessage.Content)

	var n model.Notification
	decodeData(t, readEvent(t, bob, event.EventNewNotification), &n)
	assert.Equal(t, model.NotificationMessage, n.Type)
	assert.Equal(t, "Alice: hello", n.Message)

	var count event.CountEvent
	decodeData(t, readEvent(t, bob, event.EventNotificationCount), &count)
	assert.EqualValues(t, 1, count.Count)

	// the sender gets the echo through the room
	readEvent(t, alice, event.EventNewMessage)

	unread, err := env.notes.UnreadCount(context.Background(), "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}

// B offline: the message persists, and B's first count on connect includes it.
func TestOfflineMemberCatchesUpOnConnect(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	alice, _ := env.connect(t, "alice")

	send(t, alice, event.EventSendMessage, event.SendMessagePayload{
		ConversationID: conv.ID.Hex(),
		Content:        "are you there?",
	})
	readEvent(t, alice, event.EventNewMessage)

	require.Eventually(t, func() bool {
		n, err := env.notes.UnreadCount(context.Background(), "bob")
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, initial := env.connect(t, "bob")
	assert.EqualValues(t, 1, initial)

	page, err := env.chat.ListMessages(context.Background(), "bob", conv.ID.Hex(), 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "are you there?", page.Data[0].Content)
}

func TestConversationCreatedAfterConnectJoinsBothSides(t *testing.T) {
	env := newTestEnv(t, nil)
	alice, _ := env.connect(t, "alice")
	bob, _ := env.connect(t, "bob")

	conv := env.conversation(t, "alice", "bob")
	send(t, alice, event.EventSendMessage, event.SendMessagePayload{
		ConversationID: conv.ID.Hex(),
		Content:        "first",
	})

	var msg model.Message
	decodeData(t, readEvent(t, bob, event.EventNewMessage), &msg)
	assert.Equal(t, "first", msg.Content)
}

func TestNonMemberGetsErrorOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	mallory, _ := env.connect(t, "mallory")

	send(t, mallory, event.EventSendMessage, event.SendMessagePayload{
		ConversationID: conv.ID.Hex(),
		Content:        "spam",
	})

	var e event.ErrorEvent
	decodeData(t, readEvent(t, mallory, event.EventError), &e)
	assert.Equal(t, "not_member", e.Code)
	assert.Equal(t, event.EventSendMessage, e.Event)

	page, err := env.chat.ListMessages(context.Background(), "alice", conv.ID.Hex(), 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestTypingIsRelayedToOthersOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	alice, _ := env.connect(t, "alice")
	bob, _ := env.connect(t, "bob")

	send(t, alice, event.EventTypingStart, event.ConversationPayload{ConversationID: conv.ID.Hex()})
	var typing event.TypingEvent
	decodeData(t, readEvent(t, bob, event.EventUserTyping), &typing)
	assert.Equal(t, "alice", typing.UserID)

	// alice's next frame is the reply to her own request, not her typing echo
	send(t, alice, event.EventGetNotifications, event.GetNotificationsPayload{Page: 1, Limit: 5})
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev event.WsEvent
	for {
		require.NoError(t, alice.ReadJSON(&ev))
		if ev.Event != event.EventUserOnline {
			break
		}
	}
	assert.Equal(t, event.EventNotificationsList, ev.Event)
}

func TestNotificationEventsOverSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	like, err := env.notes.SendLikeNotification(ctx, "alice", "bob", "p1")
	require.NoError(t, err)
	_, err = env.notes.SendFollowNotification(ctx, "alice", "bob")
	require.NoError(t, err)

	bob, initial := env.connect(t, "bob")
	assert.EqualValues(t, 2, initial)

	send(t, bob, event.EventGetNotifications, event.GetNotificationsPayload{Page: 1, Limit: 10})
	var page model.NotificationPage
	decodeData(t, readEvent(t, bob, event.EventNotificationsList), &page)
	assert.Len(t, page.Notifications, 2)
	assert.EqualValues(t, 2, page.UnreadCount)

	send(t, bob, event.EventMarkNotificationRead, event.NotificationRefPayload{NotificationID: like.ID.Hex()})
	var count event.CountEvent
	decodeData(t, readEvent(t, bob, event.EventNotificationCount), &count)
	assert.EqualValues(t, 1, count.Count)
	var ref event.NotificationRefEvent
	decodeData(t, readEvent(t, bob, event.EventNotificationRead), &ref)
	assert.Equal(t, like.ID.Hex(), ref.NotificationID)

	send(t, bob, event.EventMarkAllNotificationsRead, nil)
	readEvent(t, bob, event.EventAllNotificationsRead)

	send(t, bob, event.EventClearAllNotifications, nil)
	readEvent(t, bob, event.EventAllNotificationsCleared)

	send(t, bob, event.EventDeleteNotification, event.NotificationRefPayload{NotificationID: like.ID.Hex()})
	var e event.ErrorEvent
	decodeData(t, readEvent(t, bob, event.EventError), &e)
	assert.Equal(t, "not_found", e.Code)
}

func TestUnknownEventsAreIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	bob, _ := env.connect(t, "bob")

	send(t, bob, "dance", map[string]string{"style": "tango"})
	send(t, bob, event.EventGetNotifications, nil)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev event.WsEvent
	require.NoError(t, bob.ReadJSON(&ev))
	assert.Equal(t, event.EventNotificationsList, ev.Event)
}

func TestRateLimitedEventsGetErrors(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})
	bob, _ := env.connect(t, "bob")

	send(t, bob, event.EventGetNotifications, nil)
	send(t, bob, event.EventGetNotifications, nil)

	readEvent(t, bob, event.EventNotificationsList)
	var e event.ErrorEvent
	decodeData(t, readEvent(t, bob, event.EventError), &e)
	assert.Equal(t, "rate_limited", e.Code)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	forged, err := auth.NewVerifier("other", 0).Issue("alice", time.Minute)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(env.url("token="+forged), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	_, online := env.tracker.Lookup("alice")
	assert.False(t, online)
}

func TestAuthFrame(t *testing.T) {
	env := newTestEnv(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(env.url(""), nil)
	require.NoError(t, err)
	defer conn.Close()

	send(t, conn, event.EventAuth, event.AuthPayload{Token: env.token(t, "carol")})
	readEvent(t, conn, event.EventNotificationCount)

	assert.True(t, env.tracker.Status("carol").Online)
}

func TestHandshakeTimeoutDropsSilentConnection(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.AuthTimeout = 100 * time.Millisecond })
	conn, _, err := websocket.DefaultDialer.Dial(env.url(""), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Empty(t, env.tracker.Online())
	assert.Empty(t, env.gateway.Registry().Snapshot())
}

func TestDisconnectMarksOfflineAndNotifiesRooms(t *testing.T) {
	env := newTestEnv(t, nil)
	env.conversation(t, "alice", "bob")
	alice, _ := env.connect(t, "alice")
	bob, _ := env.connect(t, "bob")

	var online event.PresenceEvent
	decodeData(t, readEvent(t, alice, event.EventUserOnline), &online)
	assert.Equal(t, "bob", online.UserID)

	require.NoError(t, bob.Close())

	var offline event.PresenceEvent
	decodeData(t, readEvent(t, alice, event.EventUserOffline), &offline)
	assert.Equal(t, "bob", offline.UserID)
	assert.NotZero(t, offline.LastSeen)

	require.Eventually(t, func() bool { return !env.tracker.Status("bob").Online }, 2*time.Second, 10*time.Millisecond)
	for _, room := range env.gateway.Registry().Snapshot() {
		for _, s := range room.Subscribers {
			assert.NotEqual(t, "bob", s.UserID())
		}
	}
}

func TestMonitorStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.conversation(t, "alice", "bob")
	env.connect(t, "alice")
	env.connect(t, "bob")

	stats := NewMonitorService(env.gateway).GetStats()
	assert.Equal(t, "healthy", stats.Status)
	assert.Equal(t, 2, stats.Connections.TotalConnections)
	assert.Equal(t, 2, stats.Connections.TotalOnlineUsers)
	assert.Equal(t, 1, stats.Rooms.ConversationRooms)
	assert.Equal(t, 2, stats.Rooms.UserRooms)
	require.Len(t, stats.Clients, 2)
	for _, c := range stats.Clients {
		assert.Equal(t, 2, c.JoinedRooms)
	}
}

// Handlers are exercised directly through their Outcome, without a socket.

func TestSendMessageOutcome(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	s := NewSession("alice", "conn-1")
	data, err := json.Marshal(event.SendMessagePayload{ConversationID: conv.ID.Hex(), Content: "hi"})
	require.NoError(t, err)

	out, err := env.gateway.handleSendMessage(context.Background(), s, data)
	require.NoError(t, err)

	room := event.ConversationRoom(conv.ID.Hex())
	assert.Equal(t, []string{room}, out.Joins)
	assert.Contains(t, out.MemberJoins, MemberJoin{UserID: "bob", RoomID: room})
	require.Len(t, out.Broadcasts, 2)
	assert.Equal(t, event.EventNewMessage, out.Broadcasts[0].Event.Event)
	assert.Equal(t, event.EventConversationUpdated, out.Broadcasts[1].Event.Event)

	unread, err := env.notes.UnreadCount(context.Background(), "bob")
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.Len(t, out.After, 1)
	out.After[0](context.Background())
	unread, err = env.notes.UnreadCount(context.Background(), "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}

func TestDeletedMessageHandlers(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	ctx := context.Background()
	res, err := env.chat.SendMessage(ctx, service.SendMessageInput{SenderID: "alice", ConversationID: conv.ID.Hex(), Content: "oops"})
	require.NoError(t, err)
	s := NewSession("alice", "conn-1")
	ref, _ := json.Marshal(event.MessageRefPayload{MessageID: res.Message.ID.Hex()})

	out, err := env.gateway.handleDeleteMessage(ctx, s, ref)
	require.NoError(t, err)
	require.Len(t, out.Broadcasts, 1)
	assert.Equal(t, event.EventMessageDeleted, out.Broadcasts[0].Event.Event)

	out, err = env.gateway.handleDeleteMessage(ctx, s, ref)
	require.NoError(t, err)
	assert.Empty(t, out.Broadcasts)
	assert.Len(t, out.Replies, 1)

	edit, _ := json.Marshal(event.EditMessagePayload{MessageID: res.Message.ID.Hex(), Content: "fixed"})
	_, err = env.gateway.handleEditMessage(ctx, s, edit)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	react, _ := json.Marshal(event.ToggleReactionPayload{MessageID: res.Message.ID.Hex(), Emoji: "👍"})
	_, err = env.gateway.handleToggleReaction(ctx, NewSession("bob", "conn-2"), react)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestMarkAsReadBroadcastsOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	ctx := context.Background()
	res, err := env.chat.SendMessage(ctx, service.SendMessageInput{SenderID: "alice", ConversationID: conv.ID.Hex(), Content: "read me"})
	require.NoError(t, err)
	s := NewSession("bob", "conn-2")
	data, _ := json.Marshal(event.MarkAsReadPayload{MessageID: res.Message.ID.Hex(), ConversationID: conv.ID.Hex()})

	out, err := env.gateway.handleMarkAsRead(ctx, s, data)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Len(t, out.Broadcasts, 1)
	assert.Equal(t, event.EventMessageRead, out.Broadcasts[0].Event.Event)

	out, err = env.gateway.handleMarkAsRead(ctx, s, data)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestJoinConversationRequiresMembership(t *testing.T) {
	env := newTestEnv(t, nil)
	conv := env.conversation(t, "alice", "bob")
	data, _ := json.Marshal(event.ConversationPayload{ConversationID: conv.ID.Hex()})

	_, err := env.gateway.handleJoinConversation(context.Background(), NewSession("mallory", "c"), data)
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	out, err := env.gateway.handleJoinConversation(context.Background(), NewSession("bob", "c"), data)
	require.NoError(t, err)
	assert.Equal(t, []string{event.ConversationRoom(conv.ID.Hex())}, out.Joins)

	_, err = env.gateway.handleJoinConversation(context.Background(), NewSession("bob", "c"), []byte(`{"conversationId":`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

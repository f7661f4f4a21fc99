package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"Livestream/internal/apperr"
	"Livestream/internal/auth"
	"Livestream/internal/event"
	"Livestream/internal/metrics"
	"Livestream/internal/presence"
	"Livestream/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier turns a credential into a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Config holds the gateway tunables.
type Config struct {
	AuthTimeout    time.Duration // window for the first auth frame
	HandlerTimeout time.Duration // bound on the store calls of one event
	WriteWait      time.Duration // time allowed to write a message to the peer
	PongWait       time.Duration // time allowed to read the next pong message from the peer
	MaxMessageSize int64         // max inbound frame size
	SendBufferSize int           // per-connection outbound buffer size
	RateLimit      float64       // inbound events per second, 0 disables
	RateBurst      int
	AllowedOrigins []string // empty allows any origin
}

func (c Config) pingInterval() time.Duration {
	return (c.PongWait * 9) / 10
}

// DefaultConfig mirrors the defaults of the configuration file.
func DefaultConfig() Config {
	return Config{
		AuthTimeout:    10 * time.Second,
		HandlerTimeout: 15 * time.Second,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 256,
		RateLimit:      20,
		RateBurst:      40,
	}
}

// Gateway terminates sockets, authenticates them, wires them to presence and
// rooms, and dispatches inbound events through its handler table.
type Gateway struct {
	cfg           Config
	registry      *Registry
	presence      presence.Tracker
	chat          service.ChatService
	notifications service.NotificationService
	verifier      TokenVerifier
	logger        *zap.Logger
	handlers      map[string]Handler
	upgrader      websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[string]*Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGateway(
	cfg Config,
	registry *Registry,
	tracker presence.Tracker,
	chat service.ChatService,
	notifications service.NotificationService,
	verifier TokenVerifier,
	logger *zap.Logger,
) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		cfg:           cfg,
		registry:      registry,
		presence:      tracker,
		chat:          chat,
		notifications: notifications,
		verifier:      verifier,
		logger:        logger,
		clients:       make(map[string]*Client),
		ctx:           ctx,
		cancel:        cancel,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	g.handlers = map[string]Handler{
		event.EventJoinConversation:         g.handleJoinConversation,
		event.EventLeaveConversation:        g.handleLeaveConversation,
		event.EventSendMessage:              g.handleSendMessage,
		event.EventMarkAsRead:               g.handleMarkAsRead,
		event.EventTypingStart:              g.typingHandler(event.EventUserTyping),
		event.EventTypingStop:               g.typingHandler(event.EventUserStopTyping),
		event.EventEditMessage:              g.handleEditMessage,
		event.EventDeleteMessage:            g.handleDeleteMessage,
		event.EventToggleReaction:           g.handleToggleReaction,
		event.EventMarkNotificationRead:     g.handleMarkNotificationRead,
		event.EventMarkAllNotificationsRead: g.handleMarkAllNotificationsRead,
		event.EventGetNotifications:         g.handleGetNotifications,
		event.EventDeleteNotification:       g.handleDeleteNotification,
		event.EventClearAllNotifications:    g.handleClearAllNotifications,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range g.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Registry exposes the room registry for publishers and monitoring.
func (g *Gateway) Registry() *Registry { return g.registry }

// ServeWS upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-g.ctx.Done():
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	token := auth.TokenFromRequest(r)
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.serve(conn, token)
	}()
}

func (g *Gateway) serve(conn *websocket.Conn, token string) {
	userID, err := g.authenticate(conn, token)
	if err != nil {
		metrics.AuthFailures.Inc()
		g.logger.Info("websocket authentication failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(g.cfg.WriteWait))
		_ = conn.Close()
		return
	}

	c := newClient(userID, conn, g)
	g.attach(c)
	go c.writeMessages()
	c.readMessages()
	g.detach(c)
}

// authenticate validates the handshake credential, or waits up to
// AuthTimeout for an auth frame when the handshake carried none.
func (g *Gateway) authenticate(conn *websocket.Conn, token string) (string, error) {
	if token == "" {
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.AuthTimeout))

		var ev event.WsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return "", apperr.Wrap(apperr.KindAuth, "no credential before timeout", err)
		}
		if ev.Event != event.EventAuth {
			return "", apperr.Auth("first frame must be auth")
		}
		var p event.AuthPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", apperr.Wrap(apperr.KindAuth, "malformed auth frame", err)
		}
		token = p.Token
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		return "", apperr.Wrap(apperr.KindAuth, "invalid credential", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return userID, nil
}

// attach registers presence, joins the personal room and every conversation
// room of the user, and pushes the initial unread count.
func (g *Gateway) attach(c *Client) {
	g.clientsMu.Lock()
	g.clients[c.id] = c
	g.clientsMu.Unlock()
	metrics.ConnectedClients.Inc()

	ctx, cancel := context.WithTimeout(g.ctx, g.cfg.HandlerTimeout)
	defer cancel()

	g.presence.Connect(c.userID, c.id, time.Now())
	g.join(c, event.UserRoom(c.userID))

	conversations, err := g.chat.ListConversations(ctx, c.userID)
	if err != nil {
		c.logger.Warn("Failed to load conversations on connect", zap.Error(err))
	}
	for _, conv := range conversations {
		g.join(c, event.ConversationRoom(conv.ID.Hex()))
	}

	if count, err := g.notifications.UnreadCount(ctx, c.userID); err != nil {
		c.logger.Warn("Failed to load unread count on connect", zap.Error(err))
	} else {
		c.TrySend(event.MustNew(event.EventNotificationCount, event.CountEvent{Count: count}))
	}

	online := event.MustNew(event.EventUserOnline, event.PresenceEvent{UserID: c.userID})
	for _, room := range c.session.Rooms() {
		if event.IsConversationRoom(room) {
			g.registry.BroadcastExcept(room, c.id, online)
		}
	}

	c.logger.Info("client connected", zap.Int("rooms", len(conversations)+1))
}

// detach tears down presence and room membership. Committed writes are untouched.
func (g *Gateway) detach(c *Client) {
	c.Close()
	rooms := g.registry.LeaveAll(c)

	g.clientsMu.Lock()
	delete(g.clients, c.id)
	g.clientsMu.Unlock()
	metrics.ConnectedClients.Dec()

	now := time.Now()
	if g.presence.Disconnect(c.userID, c.id, now) {
		offline := event.MustNew(event.EventUserOffline, event.PresenceEvent{UserID: c.userID, LastSeen: now.UnixMilli()})
		for _, room := range rooms {
			if event.IsConversationRoom(room) {
				g.registry.Broadcast(room, offline)
			}
		}
	}

	c.logger.Info("client disconnected")
}

func (g *Gateway) join(c *Client, roomID string) {
	g.registry.Join(c, roomID)
	c.session.addRoom(roomID)
}

// dispatch runs one inbound event through the handler table and applies its outcome.
func (g *Gateway) dispatch(c *Client, ev event.WsEvent) {
	h, ok := g.handlers[ev.Event]
	if !ok {
		c.logger.Debug("ignoring unknown event", zap.String("event", ev.Event))
		metrics.InboundEvents.WithLabelValues("unknown", "ignored").Inc()
		return
	}

	if !c.limiter.Allow() {
		metrics.InboundEvents.WithLabelValues(ev.Event, "rate_limited").Inc()
		c.TrySend(event.MustNew(event.EventError, event.ErrorEvent{
			Message: "too many events",
			Code:    "rate_limited",
			Event:   ev.Event,
		}))
		return
	}

	// Handler work is bound to the gateway, not the socket, so a disconnect
	// mid-event does not abort a write that is already underway.
	ctx, cancel := context.WithTimeout(g.ctx, g.cfg.HandlerTimeout)
	defer cancel()

	out, err := h(ctx, c.session, ev.Data)
	if err != nil {
		metrics.InboundEvents.WithLabelValues(ev.Event, "error").Inc()
		if apperr.KindOf(err) == apperr.KindServer {
			c.logger.Error("event handler failed", zap.String("event", ev.Event), zap.Error(err))
		} else {
			c.logger.Debug("event rejected", zap.String("event", ev.Event), zap.Error(err))
		}
		c.sendError(ev.Event, err)
		return
	}

	metrics.InboundEvents.WithLabelValues(ev.Event, "ok").Inc()
	g.apply(ctx, c, out)
}

func (g *Gateway) apply(ctx context.Context, c *Client, out *Outcome) {
	if out == nil {
		return
	}
	for _, room := range out.Joins {
		g.join(c, room)
	}
	for _, mj := range out.MemberJoins {
		g.registry.JoinUser(mj.UserID, mj.RoomID)
	}
	for _, room := range out.Leaves {
		g.registry.Leave(c, room)
		c.session.removeRoom(room)
	}
	for _, ev := range out.Replies {
		c.TrySend(ev)
	}
	for _, d := range out.Broadcasts {
		g.registry.BroadcastExcept(d.RoomID, d.ExceptConn, d.Event)
	}
	for _, fn := range out.After {
		fn(ctx)
	}
}

// Clients snapshots the attached connections.
func (g *Gateway) Clients() []*Client {
	g.clientsMu.RLock()
	defer g.clientsMu.RUnlock()
	out := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		out = append(out, c)
	}
	return out
}

// Presence exposes the tracker to the pull API and monitoring.
func (g *Gateway) Presence() presence.Tracker { return g.presence }

// Stop closes every connection and waits for their goroutines to finish.
func (g *Gateway) Stop() {
	g.cancel()
	for _, c := range g.Clients() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		g.logger.Warn("gateway stop timed out waiting for connections")
	}
}

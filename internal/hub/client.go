package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"Livestream/internal/apperr"
	"Livestream/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is one authenticated socket. The read pump dispatches inbound events
// one at a time in arrival order; the write pump drains egress.
type Client struct {
	id      string
	userID  string
	conn    *websocket.Conn
	gateway *Gateway
	egress  chan event.WsEvent
	session *Session
	limiter *rate.Limiter
	logger  *zap.Logger

	// cancel or stop goroutine
	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool         // tracks if client is closed
	closedMu       sync.RWMutex // protects closed flag and egress close
}

func newClient(userID string, conn *websocket.Conn, g *Gateway) *Client {
	ctx, cancel := context.WithCancel(g.ctx)
	clientID := uuid.New().String()

	limit := rate.Inf
	if g.cfg.RateLimit > 0 {
		limit = rate.Limit(g.cfg.RateLimit)
	}

	return &Client{
		id:         clientID,
		userID:     userID,
		conn:       conn,
		gateway:    g,
		egress:     make(chan event.WsEvent, g.cfg.SendBufferSize),
		session:    NewSession(userID, clientID),
		limiter:    rate.NewLimiter(limit, g.cfg.RateBurst),
		logger:     g.logger.With(zap.String("clientID", clientID), zap.String("userID", userID)),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// TrySend enqueues ev without blocking. A full or closed egress drops the event.
func (c *Client) TrySend(ev event.WsEvent) bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.egress <- ev:
		return true
	default:
		c.logger.Debug("egress full, dropping event", zap.String("event", ev.Event))
		return false
	}
}

func (c *Client) sendError(eventName string, err error) {
	c.TrySend(event.MustNew(event.EventError, event.ErrorEvent{
		Message: apperr.PublicMessage(err),
		Code:    apperr.KindOf(err).String(),
		Event:   eventName,
	}))
}

func (c *Client) readMessages() {
	cfg := c.gateway.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Debug("client disconnected")
				return
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.logger.Info("client timed out, closing connection")
				return
			}

			if websocket.IsUnexpectedCloseError(err) {
				c.logger.Info("unexpected close", zap.Error(err))
				return
			}

			// For other errors, log and exit (cleanup happens in the gateway)
			c.logger.Debug("read failed", zap.Error(err))
			return
		}

		var ev event.WsEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Event == "" {
			c.sendError("", apperr.Validation("malformed frame"))
			continue
		}

		c.gateway.dispatch(c, ev)
	}
}

func (c *Client) writeMessages() {
	cfg := c.gateway.cfg
	ticker := time.NewTicker(cfg.pingInterval())

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case ev, ok := <-c.egress:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(cfg.WriteWait))
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteWait)); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.PongWait))
}

// Close stops both pumps. The write pump flushes a close frame and closes
// the socket; a stuck writer is cut off after a grace period.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.cancel()
		close(c.egress)
		c.closedMu.Unlock()

		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				c.logger.Warn("safety timeout: force closed connection")
			}
		}()
	})
}

// Closed reports whether the client has been closed.
func (c *Client) Closed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

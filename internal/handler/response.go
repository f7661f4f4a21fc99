package handler

import (
	"net/http"
	"strconv"

	"Livestream/internal/apperr"
	"Livestream/internal/event"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Broadcaster mirrors pull API mutations onto the sockets of a room.
type Broadcaster interface {
	Broadcast(roomID string, ev event.WsEvent) int
	JoinUser(userID, roomID string) int
}

func respond(c *gin.Context, status int, body interface{}, message string) {
	c.JSON(status, gin.H{
		"HttpStatusCode": status,
		"ResponseBody":   body,
		"IsSuccess":      status < http.StatusBadRequest,
		"Message":        message,
	})
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindServer {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	respond(c, kind.HTTPStatus(), nil, apperr.PublicMessage(err))
}

// queryInt64 reads a positive integer query parameter.
func queryInt64(c *gin.Context, name string, def int64) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, apperr.Validation("invalid " + name)
	}
	return v, nil
}

func broadcast(b Broadcaster, logger *zap.Logger, roomID, name string, payload interface{}) {
	ev, err := event.New(name, payload)
	if err != nil {
		logger.Error("Failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}
	b.Broadcast(roomID, ev)
}

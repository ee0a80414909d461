package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/noTilt3/SMARKETECH/internal/auth"
	"github.com/noTilt3/SMARKETECH/internal/chat"
	"go.uber.org/zap"
)

// pingInterval keeps idle SSE connections alive through proxies and load
// balancers that cut connections with no traffic. The events carry a
// timestamp and nothing else.
const pingInterval = 25 * time.Second

// StreamHandler serves GET /api/chat/stream: the long-lived server-sent
// event channel that delivers message:new pushes.
//
// This is the documented exception to header-based auth: the browser
// EventSource API cannot attach an Authorization header, so the same JWT
// arrives as a `token` query parameter. Treat it as sensitive — nothing
// here logs the query string.
type StreamHandler struct {
	registry  *chat.Registry
	jwtSecret string
	logger    *zap.Logger
}

func NewStreamHandler(registry *chat.Registry, jwtSecret string, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{registry: registry, jwtSecret: jwtSecret, logger: logger}
}

type readyPayload struct {
	OK bool  `json:"ok"`
	TS int64 `json:"ts"`
}

type pingPayload struct {
	TS int64 `json:"ts"`
}

// Stream runs one connection for its whole life: authenticate, register,
// emit stream:ready, then relay pushed events and periodic pings until
// the client goes away. Disconnect is the only exit; it unregisters the
// connection and returns the goroutine to gin.
func (h *StreamHandler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims, err := auth.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	// Switch the response into unbuffered event-stream mode before the
	// first byte goes out. X-Accel-Buffering turns off response
	// buffering in nginx, which would otherwise hold events back.
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	connID, events := h.registry.Register(userID)
	defer h.registry.Unregister(userID, connID)

	h.logger.Info("stream opened", zap.Int64("user_id", userID))
	defer h.logger.Info("stream closed", zap.Int64("user_id", userID))

	c.SSEvent("stream:ready", readyPayload{OK: true, TS: time.Now().UnixMilli()})
	c.Writer.Flush()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	// The request context is done when the client disconnects or the
	// server shuts down; either way this connection is over.
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			// Event data is pre-serialized JSON; passing a string makes
			// gin write it raw instead of marshaling it again.
			c.SSEvent(ev.Name, ev.Data)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", pingPayload{TS: time.Now().UnixMilli()})
			c.Writer.Flush()
		}
	}
}

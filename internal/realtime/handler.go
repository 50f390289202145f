package realtime

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/util"
	"go.uber.org/zap"
)

// UnreadCounter reports a user's unread notification count for the greeting.
type UnreadCounter func(ctx context.Context, userID string) (int64, error)

// Handler upgrades authenticated requests to notification sockets.
type Handler struct {
	hub            *Hub
	originPatterns []string
	unread         UnreadCounter
}

// NewHandler creates a websocket handler. originPatterns are host patterns
// accepted for cross-origin upgrades; unread may be nil.
func NewHandler(hub *Hub, originPatterns []string, unread UnreadCounter) *Handler {
	return &Handler{hub: hub, originPatterns: originPatterns, unread: unread}
}

// Serve handles GET /notifications/ws. It must run behind AuthRequired, which
// also accepts ?token= on upgrade requests.
func (h *Handler) Serve(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("Websocket upgrade failed", logger.WithUserID(userID), zap.Error(err))
		return
	}

	client := NewClient(c.Request.Context(), h.hub, conn, userID)
	client.RemoteAddr = c.ClientIP()

	h.greet(client)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump()
}

func (h *Handler) greet(client *Client) {
	client.write(NewMessage(MessageTypeSystem, SystemPayload{
		Event: "connected",
		Data: map[string]interface{}{
			"userId":     client.UserID,
			"serverTime": time.Now().UTC().UnixMilli(),
		},
	}))

	if h.unread == nil {
		return
	}
	count, err := h.unread(client.ctx, client.UserID)
	if err != nil {
		logger.Log.Warn("Failed to count unread notifications", logger.WithUserID(client.UserID), zap.Error(err))
		return
	}
	client.write(NewMessage(MessageTypeNotificationCount, CountPayload{Unread: count}))
}

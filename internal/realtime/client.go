package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/zfogg/vidshare/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum inbound frame. Clients only send pings.
	maxMessageSize = 4 * 1024

	sendBufferSize = 64

	// Inbound messages per second with a small burst
	inboundRate  = 5
	inboundBurst = 10
)

// Client is one websocket connection of a user.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	UserID      string
	ConnectedAt time.Time
	RemoteAddr  string

	// Written only by the hub's Run goroutine, which also closes it.
	send chan *Message

	limiter *rate.Limiter

	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new Client bound to ctx.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(ctx)
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		conn:        conn,
		hub:         hub,
		UserID:      userID,
		ConnectedAt: time.Now(),
		send:        make(chan *Message, sendBufferSize),
		limiter:     rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ReadPump reads client frames until the connection drops. Blocks.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var msg Message
		if err := wsjson.Read(c.ctx, c.conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && c.ctx.Err() == nil {
				logger.Log.Debug("Realtime read ended", logger.WithUserID(c.UserID), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.write(NewErrorMessage("rate_limited", "too many messages"))
			continue
		}
		c.handleMessage(&msg)
	}
}

// WritePump drains the send channel and keeps the connection alive. Blocks.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close(websocket.StatusNormalClosure, "closing")
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(msg); err != nil {
				logger.Log.Debug("Realtime write failed", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				logger.Log.Debug("Realtime ping failed", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePing:
		var ping PingPayload
		_ = msg.ParsePayload(&ping)
		c.write(NewReply(msg, MessageTypePong, PongPayload{
			ClientTime: ping.ClientTime,
			ServerTime: time.Now().UnixMilli(),
		}))
	default:
		c.write(NewErrorMessage("unknown_type", "unsupported message type: "+msg.Type))
	}
}

// write sends one frame directly. coder/websocket allows concurrent writers.
func (c *Client) write(msg *Message) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeWait)
	defer cancel()
	return wsjson.Write(ctx, c.conn, msg)
}

// Close tears the connection down once.
func (c *Client) Close(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close(status, reason)
	})
}

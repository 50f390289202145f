// Package realtime pushes notifications to connected users over websockets.
// Uses github.com/coder/websocket with wsjson framing.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"go.uber.org/zap"
)

// Pusher is what producers of live events depend on.
type Pusher interface {
	SendToUser(userID string, message *Message)
	IsUserOnline(userID string) bool
}

// unicastMessage is a message targeted at a specific user
type unicastMessage struct {
	userID  string
	message *Message
}

// Hub tracks the open connections of every user. All map mutations and all
// sends on client channels happen on the Run goroutine.
type Hub struct {
	// Registered clients by user ID for targeted messaging
	clients map[string]map[*Client]struct{}
	count   int

	register   chan *Client
	unregister chan *Client
	unicast    chan *unicastMessage

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Pusher = (*Hub)(nil)

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		unicast:    make(chan *unicastMessage, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's event loop and blocks until Shutdown.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	logger.Log.Info("Realtime hub starting")
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case u := <-h.unicast:
			h.sendToUser(u.userID, u.message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	h.count++
	metrics.Get().WebsocketConnections.Inc()

	logger.Log.Debug("Realtime client connected",
		logger.WithUserID(client.UserID),
		zap.Int("active", h.count),
	)
}

// unregisterClient is idempotent so the read pump and a full send buffer can
// both request removal.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.send)
	h.count--
	metrics.Get().WebsocketConnections.Dec()

	logger.Log.Debug("Realtime client disconnected",
		logger.WithUserID(client.UserID),
		zap.Int("active", h.count),
	)
}

// sendToUser fans a message out to every connection of one user
func (h *Hub) sendToUser(userID string, message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- message:
			metrics.Get().NotificationsPushedTotal.WithLabelValues(message.Type).Inc()
		default:
			// Buffer full: the client is not keeping up, drop it.
			go func(c *Client) {
				h.Unregister(c)
			}(client)
		}
	}
}

// SendToUser queues a message for all connections of userID. Offline users
// are skipped silently.
func (h *Hub) SendToUser(userID string, message *Message) {
	select {
	case h.unicast <- &unicastMessage{userID: userID, message: message}:
	case <-h.ctx.Done():
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// IsUserOnline checks if a user has any active connections
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount returns the number of open connections across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Shutdown stops the event loop and closes every connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("Realtime hub shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	bye := NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"})
	closed := 0
	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- bye:
			default:
			}
			close(client.send)
			closed++
		}
	}
	metrics.Get().WebsocketConnections.Sub(float64(h.count))
	h.clients = make(map[string]map[*Client]struct{})
	h.count = 0

	logger.Log.Info("Realtime hub closed connections", zap.Int("count", closed))
}

// Done is closed once the hub stops accepting work.
func (h *Hub) Done() <-chan struct{} {
	return h.ctx.Done()
}

// pingPeriod is a var so tests can shorten it.
var pingPeriod = 30 * time.Second

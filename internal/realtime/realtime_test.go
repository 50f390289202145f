package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/vidshare/internal/util"
)

func newTestServer(t *testing.T, hub *Hub, unread UnreadCounter) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(util.ContextUserID, id)
		}
		c.Next()
	})
	r.GET("/ws", NewHandler(hub, nil, unread).Serve)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-ID": []string{userID}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var msg Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func startHub(t *testing.T) *Hub {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

func TestHubDeliversToConnectedUser(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub, func(ctx context.Context, userID string) (int64, error) {
		return 3, nil
	})

	conn := dial(t, srv, "user-1")

	hello := readMessage(t, conn)
	assert.Equal(t, MessageTypeSystem, hello.Type)

	count := readMessage(t, conn)
	require.Equal(t, MessageTypeNotificationCount, count.Type)
	var payload CountPayload
	require.NoError(t, count.ParsePayload(&payload))
	assert.Equal(t, int64(3), payload.Unread)

	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, 2*time.Second, 10*time.Millisecond)

	hub.SendToUser("user-1", NewMessage(MessageTypeNotification, map[string]string{"type": "like"}))
	got := readMessage(t, conn)
	assert.Equal(t, MessageTypeNotification, got.Type)
}

func TestHubSkipsOtherUsers(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub, nil)

	conn := dial(t, srv, "user-1")
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, 2*time.Second, 10*time.Millisecond)

	hub.SendToUser("user-2", NewMessage(MessageTypeNotification, nil))
	hub.SendToUser("user-1", NewMessage(MessageTypeNotificationCount, CountPayload{Unread: 1}))

	// user-2 has no connection, so the next frame user-1 sees is its own.
	got := readMessage(t, conn)
	assert.Equal(t, MessageTypeNotificationCount, got.Type)
	assert.False(t, hub.IsUserOnline("user-2"))
}

func TestPingGetsPong(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub, nil)

	conn := dial(t, srv, "user-1")
	readMessage(t, conn)

	ping := NewMessage(MessageTypePing, PingPayload{ClientTime: 42})
	ping.ID = "p1"
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, ping))

	pong := readMessage(t, conn)
	assert.Equal(t, MessageTypePong, pong.Type)
	assert.Equal(t, "p1", pong.ReplyTo)
	var payload PongPayload
	require.NoError(t, pong.ParsePayload(&payload))
	assert.Equal(t, int64(42), payload.ClientTime)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub, nil)

	conn := dial(t, srv, "user-1")
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return !hub.IsUserOnline("user-1") }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestUpgradeRequiresUser(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub, nil)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMessageParsePayload(t *testing.T) {
	msg := NewMessage(MessageTypePing, map[string]interface{}{"clientTime": float64(1234567890)})

	var ping PingPayload
	require.NoError(t, msg.ParsePayload(&ping))
	assert.Equal(t, int64(1234567890), ping.ClientTime)

	assert.Error(t, NewMessage(MessageTypePing, nil).ParsePayload(&ping))
}

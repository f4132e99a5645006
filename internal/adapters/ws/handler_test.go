package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/protocol"
)

type echoFrames struct {
	mu           sync.Mutex
	remotes      []string
	disconnected int
}

func (e *echoFrames) OnFrame(_ context.Context, c *core.Client, line string) bool {
	e.mu.Lock()
	e.remotes = append(e.remotes, c.Conn.RemoteAddr().String())
	e.mu.Unlock()
	if line == "LOGOUT" {
		return false
	}
	_ = c.Send(protocol.Encode("ECHO", line))
	return true
}

func (e *echoFrames) OnDisconnect(context.Context, *core.Client) {
	e.mu.Lock()
	e.disconnected++
	e.mu.Unlock()
}

func startWS(t *testing.T) (*echoFrames, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	frames := &echoFrames{}
	h := &Handler{Frames: frames, MaxFrame: 32}

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws/control", func(c *gin.Context) { h.HandleControl(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/control"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return frames, conn
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	mt, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func TestWSMessageCarriesSeveralLines(t *testing.T) {
	frames, c := startWS(t)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("PING\nMSG|bob|x|y\n")))
	assert.Equal(t, "ECHO|PING", readText(t, c))
	assert.Equal(t, "ECHO|MSG|bob|x|y", readText(t, c))

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("CALL_END|alice|bob")))
	assert.Equal(t, "ECHO|CALL_END|alice|bob", readText(t, c))

	frames.mu.Lock()
	assert.Equal(t, "127.0.0.1", frames.remotes[0])
	frames.mu.Unlock()
}

func TestWSOversizedLineIsDropped(t *testing.T) {
	_, c := startWS(t)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("z", 64))))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("PING")))
	assert.Equal(t, "ECHO|PING", readText(t, c))
}

func TestWSLogoutCloses(t *testing.T) {
	frames, c := startWS(t)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("LOGOUT")))

	_, _, err := c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Eventually(t, func() bool {
		frames.mu.Lock()
		defer frames.mu.Unlock()
		return frames.disconnected == 1
	}, 2*time.Second, 10*time.Millisecond)
}

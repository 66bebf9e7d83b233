package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/defense_backend_v1/internal/middleware"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

func newServer(t *testing.T, claims *middleware.Claims) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("claims", claims)
		c.Next()
	}, Handler(hub))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) DefenseEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev DefenseEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestAdminReceivesEvents(t *testing.T) {
	hub, url := newServer(t, &middleware.Claims{Role: middleware.RoleAdmin})
	conn := dial(t, url)

	// Give the hub a moment to register the client.
	time.Sleep(100 * time.Millisecond)
	hub.Publish(DefenseEvent{Type: RoomCompleted, DefenseID: "d1", RoomID: "r1", EvaluationType: stage.Mid, At: time.Now()})

	ev := readEvent(t, conn)
	assert.Equal(t, RoomCompleted, ev.Type)
	assert.Equal(t, "r1", ev.RoomID)
	assert.Equal(t, stage.Mid, ev.EvaluationType)
}

func TestEvaluatorOnlySeesOwnDefense(t *testing.T) {
	hub, url := newServer(t, &middleware.Claims{Role: middleware.RoleEvaluator, EvaluatorID: "e1", DefenseID: "d2"})
	conn := dial(t, url)

	time.Sleep(100 * time.Millisecond)
	hub.Publish(DefenseEvent{Type: DefenseCompleted, DefenseID: "other"})
	hub.Publish(DefenseEvent{Type: DefenseCompleted, DefenseID: "d2"})

	ev := readEvent(t, conn)
	assert.Equal(t, "d2", ev.DefenseID)
}

func TestEvaluatorCannotWatchForeignDefense(t *testing.T) {
	_, url := newServer(t, &middleware.Claims{Role: middleware.RoleEvaluator, DefenseID: "d2"})
	_, resp, err := websocket.DefaultDialer.Dial(url+"?defense_id=d3", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPublishOnNilHub(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.Publish(DefenseEvent{Type: RoomCompleted}) })
}

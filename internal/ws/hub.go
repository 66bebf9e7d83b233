// Package ws fans completion events out to dashboard websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zaqqye/defense_backend_v1/internal/logutils"
	"github.com/zaqqye/defense_backend_v1/internal/metrics"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

type EventType string

const (
	RoomCompleted    EventType = "room_completed"
	DefenseCompleted EventType = "defense_completed"
)

// DefenseEvent is published once a completion transition has committed.
type DefenseEvent struct {
	Type           EventType  `json:"type"`
	DefenseID      string     `json:"defenseId"`
	RoomID         string     `json:"roomId,omitempty"`
	EvaluationType stage.Type `json:"evaluationType"`
	At             time.Time  `json:"at"`
}

type message struct {
	defenseID string
	payload   []byte
}

// Hub tracks dashboard clients, optionally scoped to one defense.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan message
	clients    map[*client]struct{}
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, sendBufferSize),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.WebsocketClients.Inc()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if c.defenseID != "" && c.defenseID != msg.defenseID {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
	metrics.WebsocketClients.Dec()
}

// Publish never blocks the caller; events are dropped when the hub is
// saturated.
func (h *Hub) Publish(ev DefenseEvent) {
	if h == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logutils.Log.WithError(err).Warn("ws: marshal event")
		return
	}
	select {
	case h.broadcast <- message{defenseID: ev.DefenseID, payload: data}:
	default:
		logutils.Log.WithField("defense_id", ev.DefenseID).Warnf("ws: dropped %s event", ev.Type)
	}
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	defenseID string
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

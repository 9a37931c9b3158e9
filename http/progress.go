package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"textclass/logging"
)

// ProgressMessage is one training progress event pushed to subscribers.
type ProgressMessage struct {
	Type      string    `json:"type"`
	Strategy  string    `json:"strategy"`
	Epoch     int       `json:"epoch"`
	Loss      float64   `json:"loss"`
	Timestamp time.Time `json:"timestamp"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans training progress out to websocket subscribers.
type Hub struct {
	clients    map[*hubClient]bool
	broadcast  chan []byte
	register   chan *hubClient
	unregister chan *hubClient
	upgrader   websocket.Upgrader
}

// NewHub creates an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run dispatches registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.conn.Close()
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it.
					delete(h.clients, client)
					close(client.send)
					client.conn.Close()
				}
			}
		}
	}
}

// BroadcastEpoch publishes one epoch's mean loss.
func (h *Hub) BroadcastEpoch(strategy string, epoch int, loss float64) {
	payload, err := json.Marshal(ProgressMessage{
		Type:      "training_progress",
		Strategy:  strategy,
		Epoch:     epoch,
		Loss:      loss,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// HandleWS upgrades the request and subscribes it to progress events.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, 16)}
	h.register <- client

	go client.writeLoop()
	go client.readLoop(h)
}

func (c *hubClient) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *hubClient) readLoop(h *Hub) {
	defer func() { h.unregister <- c }()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.L().Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

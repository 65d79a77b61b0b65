package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/daddyholnes/podplay-claude-sub001/internal/events"
	"github.com/daddyholnes/podplay-claude-sub001/internal/metrics"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS middleware config upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand is a client-to-server room command.
type wsCommand struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// wsClient is one connected WebSocket consumer.
type wsClient struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
	mu    sync.Mutex
}

func (c *wsClient) inRoom(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[sessionID]
}

// Hub fans session events out to WebSocket clients. Clients join per-session
// rooms and only receive events for sessions they joined; events with no
// session id go to everyone.
type Hub struct {
	bus     events.Bus
	metrics *metrics.Metrics

	clients map[*wsClient]bool
	mu      sync.RWMutex
}

// NewHub creates a WebSocket hub over the event bus.
func NewHub(bus events.Bus, m *metrics.Metrics) *Hub {
	return &Hub{
		bus:     bus,
		metrics: m,
		clients: make(map[*wsClient]bool),
	}
}

// Run pumps bus events to connected clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	sub := h.bus.Subscribe()
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WebSocket] Failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if event.SessionID != "" && !client.inRoom(event.SessionID) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the event, not the connection.
		}
	}
}

// HandleWebSocket handles GET /ws/computer-use
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn:  conn,
		send:  make(chan []byte, 64),
		rooms: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
	log.Printf("[WebSocket] Client connected from %s", r.RemoteAddr)

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(client *wsClient) {
	defer h.removeClient(client)

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Read error: %v", err)
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.sendJSON(client, map[string]string{"error": "invalid command"})
			continue
		}

		switch cmd.Action {
		case "join_session":
			if cmd.SessionID == "" {
				h.sendJSON(client, map[string]string{"error": "session_id required"})
				continue
			}
			client.mu.Lock()
			client.rooms[cmd.SessionID] = true
			client.mu.Unlock()
			if h.metrics != nil {
				h.metrics.WSRoomMembers.WithLabelValues(cmd.SessionID).Inc()
			}
			h.sendJSON(client, map[string]string{"status": "joined", "session_id": cmd.SessionID})

		case "leave_session":
			client.mu.Lock()
			joined := client.rooms[cmd.SessionID]
			delete(client.rooms, cmd.SessionID)
			client.mu.Unlock()
			if joined && h.metrics != nil {
				h.metrics.WSRoomMembers.WithLabelValues(cmd.SessionID).Dec()
			}
			h.sendJSON(client, map[string]string{"status": "left", "session_id": cmd.SessionID})

		default:
			h.sendJSON(client, map[string]string{"error": "unknown action: " + cmd.Action})
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) sendJSON(client *wsClient, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) removeClient(client *wsClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if !present {
		return
	}

	client.mu.Lock()
	for room := range client.rooms {
		if h.metrics != nil {
			h.metrics.WSRoomMembers.WithLabelValues(room).Dec()
		}
	}
	client.rooms = make(map[string]bool)
	client.mu.Unlock()

	close(client.send)
	client.conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
	log.Printf("[WebSocket] Client disconnected")
}

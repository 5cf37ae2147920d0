package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StateHub manages WebSocket clients and broadcasts dashboard state updates.
type StateHub struct {
	clients    map[*stateClient]bool
	broadcast  chan models.DashboardEvent
	register   chan *stateClient
	unregister chan *stateClient
	done       chan struct{}
	mu         sync.RWMutex
	logger     *common.Logger
}

// stateClient represents a connected WebSocket client. An empty domain set
// means the client receives every event.
type stateClient struct {
	hub     *StateHub
	conn    *websocket.Conn
	send    chan []byte
	domains map[models.Domain]bool
}

func (c *stateClient) wants(d models.Domain) bool {
	if len(c.domains) == 0 {
		return true
	}
	return c.domains[d]
}

// NewStateHub creates a new WebSocket hub.
func NewStateHub(logger *common.Logger) *StateHub {
	return &StateHub{
		clients:    make(map[*stateClient]bool),
		broadcast:  make(chan models.DashboardEvent, 256),
		register:   make(chan *stateClient),
		unregister: make(chan *stateClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Should be called as a goroutine.
func (h *StateHub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug().Int("clients", h.ClientCount()).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug().Int("clients", h.ClientCount()).Msg("WebSocket client disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to marshal dashboard event")
				continue
			}

			h.mu.RLock()
			var slow []*stateClient
			for client := range h.clients {
				if !client.wants(event.Domain) {
					continue
				}
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Stop signals the hub's event loop to exit.
func (h *StateHub) Stop() {
	select {
	case <-h.done:
		// Already stopped
	default:
		close(h.done)
	}
}

// Broadcast sends a dashboard event to all connected clients.
func (h *StateHub) Broadcast(event models.DashboardEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Msg("WebSocket broadcast channel full, dropping event")
	}
}

// ServeWS upgrades an HTTP connection to WebSocket and registers the client.
// An optional domains query parameter (comma-separated, e.g.
// "market,chart") subscribes the client to a subset of the event stream.
func (h *StateHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &stateClient{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		domains: parseDomainFilter(r.URL.Query().Get("domains")),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// parseDomainFilter builds the subscription set from the comma-separated
// query value. Unknown names are ignored; an empty or all-unknown value
// subscribes to everything.
func parseDomainFilter(raw string) map[models.Domain]bool {
	if raw == "" {
		return nil
	}
	known := make(map[models.Domain]bool, len(models.Domains))
	for _, d := range models.Domains {
		known[d] = true
	}
	filter := make(map[models.Domain]bool)
	for _, part := range strings.Split(raw, ",") {
		d := models.Domain(strings.TrimSpace(part))
		if known[d] {
			filter[d] = true
		}
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// ClientCount returns the number of connected clients.
func (h *StateHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump sends messages from the send channel to the WebSocket connection.
func (c *stateClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection (mainly to detect close).
func (c *stateClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

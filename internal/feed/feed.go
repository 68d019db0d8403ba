package feed

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/scythe504/ninjahunt-backend/internal"
	"github.com/scythe504/ninjahunt-backend/internal/utils"
)

// =============================================================================
// SPECTATOR FEED
// =============================================================================
// Read-only websocket feed of game state changes, round summaries and
// leaderboard updates, for dashboards. Clients never influence the game.

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// safeWriteJSON serializes concurrent writers on one connection.
func (c *client) safeWriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// peer goes away. Anything the peer sends is discarded.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Feed] Upgrade failed: %v", err)
		return
	}

	c := &client{id: utils.GenerateID(8), conn: conn}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("[Feed] Client %s connected (%d total)", c.id, h.ClientCount())

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		c.conn.Close()
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		log.Printf("[Feed] Client %s disconnected", c.id)
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends one envelope to every connected client. Connections are
// snapshotted first so a slow writer never blocks registration.
func (h *Hub) Publish(msgType string, data any) {
	h.mu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	msg := internal.Message[any]{Type: msgType, Data: data}
	sent := 0
	for _, c := range snapshot {
		if err := c.safeWriteJSON(msg); err != nil {
			log.Printf("[Feed] Failed to send to client %s: %v", c.id, err)
			continue
		}
		sent++
	}
	log.Printf("[Feed] Published %s to %d/%d clients", msgType, sent, len(snapshot))
}

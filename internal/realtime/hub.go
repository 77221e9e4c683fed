// Package realtime is the Room Broadcast Fabric: a per-process hub of connected
// clients grouped into rooms, and fabrics that fan a room broadcast out to every
// process.
package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Hub manages the clients connected to this process and their room membership.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[*Client]struct{}
	log     *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a client and returns a cleanup function that unregisters it.
// The cleanup is safe to call more than once.
func (h *Hub) Register(c *Client) func() {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.log.Debug("client registered",
		zap.String("client_id", c.ID),
		zap.String("channel", c.Channel),
		zap.String("session_id", c.SessionID),
		zap.String("user_id", c.UserID))

	var once sync.Once
	return func() { once.Do(func() { h.unregister(c) }) }
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.ID)
	for _, room := range c.close() {
		h.leaveLocked(c, room)
	}
	h.log.Debug("client unregistered",
		zap.String("client_id", c.ID),
		zap.String("channel", c.Channel),
		zap.String("session_id", c.SessionID))
}

// Join adds c to room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// Leave removes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if m, ok := h.rooms[room]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Deliver sends frame to every local client in room except the client with id except.
func (h *Hub) Deliver(room string, frame []byte, except string) int {
	h.mu.RLock()
	m := h.rooms[room]
	targets := make([]*Client, 0, len(m))
	for c := range m {
		if c.ID != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.enqueue(frame) {
			n++
			continue
		}
		h.log.Warn("client send buffer full",
			zap.String("client_id", c.ID),
			zap.String("user_id", c.UserID),
			zap.String("room", room))
	}
	return n
}

// Kick delivers frame to the room then force-closes every local connection in it.
func (h *Hub) Kick(room string, frame []byte) {
	h.mu.RLock()
	m := h.rooms[room]
	targets := make([]*Client, 0, len(m))
	for c := range m {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if frame != nil {
			c.enqueue(frame)
		}
		c.kickConn()
	}
}

// RoomSize returns the number of local clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of local clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CountUser returns how many local clients of userID are in room.
func (h *Hub) CountUser(room, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.rooms[room] {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pfcontrol/stripsync/internal/model"
)

// SendBuffer is the per-client outbound queue length.
const SendBuffer = 256

// Client is one authenticated connection on one channel. Identity and role are
// resolved once at connect time and never re-derived.
type Client struct {
	ID              string
	Channel         string
	SessionID       string
	UserID          string
	Username        string
	Avatar          string
	Role            model.Role
	EventController bool

	mu     sync.Mutex
	send   chan []byte
	closed bool
	rooms  map[string]struct{}
	kick   func()
}

// NewClient creates a client with a fresh connection id.
func NewClient(channel, sessionID, userID string, role model.Role) *Client {
	return &Client{
		ID:        uuid.New().String(),
		Channel:   channel,
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		send:      make(chan []byte, SendBuffer),
		rooms:     make(map[string]struct{}),
	}
}

// IsController reports whether the client may mutate flights and session settings.
func (c *Client) IsController() bool {
	return c.Role == model.RoleController
}

// OnKick sets the function that force-closes the underlying connection.
func (c *Client) OnKick(fn func()) {
	c.mu.Lock()
	c.kick = fn
	c.mu.Unlock()
}

// Send is the outbound frame queue drained by the connection writer.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Emit queues event directly to this client. It reports false when the client is
// closed or its buffer is full.
func (c *Client) Emit(event string, data any) bool {
	frame, err := Frame(event, data)
	if err != nil {
		return false
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close closes the send queue once. Returns the rooms the client was in.
func (c *Client) close() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.rooms = nil
	return rooms
}

func (c *Client) kickConn() {
	c.mu.Lock()
	fn := c.kick
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Frame encodes an envelope.
func Frame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(model.Envelope{Event: event, Data: raw})
}

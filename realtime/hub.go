package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event types pushed to subscribers
const (
	EventTabUpdated = "tab_updated"
	EventError      = "error"
)

// Outbound buffer per client. A subscriber that falls this far behind is
// dropped rather than allowed to block the group.
const sendBuffer = 32

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is one subscribed websocket connection. Writes go through a
// buffered channel drained by a single write pump, so per-group publish
// order is preserved on the wire.
type Client struct {
	hub    *Hub
	code   string
	conn   *websocket.Conn
	send   chan []byte
	closed bool // guarded by hub.mu
}

// Hub keeps the live subscriber groups keyed by access code. It never
// mutates tab state, it only fans out snapshots produced by the tab service.
type Hub struct {
	mu     sync.Mutex
	groups map[string]map[*Client]bool
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]bool),
		logger: logger,
	}
}

// Subscribe adds the connection to the group of the access code, creating
// the group lazily, and starts the client's write pump.
func (h *Hub) Subscribe(code string, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  h,
		code: code,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	group, ok := h.groups[code]
	if !ok {
		group = make(map[*Client]bool)
		h.groups[code] = group
	}
	group[client] = true
	h.mu.Unlock()

	go client.writePump()
	return client
}

// Unsubscribe removes the client from its group and closes the connection.
// Safe to call more than once; an empty group is discarded.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	h.dropLocked(client)
	h.mu.Unlock()
}

// Publish delivers the event to every current subscriber of the access code.
// A failing subscriber is dropped and logged, delivery to the others goes on.
func (h *Hub) Publish(code string, data interface{}) {
	payload, err := json.Marshal(Message{Type: EventTabUpdated, Data: data})
	if err != nil {
		h.logger.Errorf("realtime: marshal event for %s: %v", code, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.groups[code] {
		h.enqueueLocked(client, payload)
	}
}

// Send delivers a message to this client only (initial snapshots, errors).
func (c *Client) Send(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Errorf("realtime: marshal message for %s: %v", c.code, err)
		return
	}
	c.hub.mu.Lock()
	c.hub.enqueueLocked(c, payload)
	c.hub.mu.Unlock()
}

// GroupSize reports the number of live subscribers for an access code.
func (h *Hub) GroupSize(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[code])
}

// enqueueLocked queues the payload without blocking. Caller holds h.mu.
func (h *Hub) enqueueLocked(client *Client, payload []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.Warnf("realtime: dropping slow subscriber of %s", client.code)
		h.dropLocked(client)
	}
}

// dropLocked detaches the client and closes its channel. Caller holds h.mu.
func (h *Hub) dropLocked(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	if group, ok := h.groups[client.code]; ok {
		delete(group, client)
		if len(group) == 0 {
			delete(h.groups, client.code)
		}
	}
	close(client.send)
	client.conn.Close()
}

// writePump drains the send channel onto the wire in FIFO order.
func (c *Client) writePump() {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.hub.logger.Warnf("realtime: write to subscriber of %s failed: %v", c.code, err)
			c.hub.Unsubscribe(c)
			// drain whatever was queued before the channel closed
			for range c.send {
			}
			return
		}
	}
}

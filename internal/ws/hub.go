package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Client is one WebSocket subscriber with user context.
type Client struct {
	UserID uint
	Send   chan []byte
	Hub    *Hub
	mu     sync.Mutex
	closed bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
}

// trySend queues a frame unless the client is closed or its buffer is
// full. The closed check holds c.mu so a concurrent Close cannot close
// the channel mid-send.
func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// ChangeEvent is the raw change-feed frame: entity kind, change type
// and the row payload. EventID lets clients observe (and shrug off)
// duplicate delivery.
type ChangeEvent struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub tracks connected clients and broadcasts change events. The feed
// is best-effort: a slow client's buffer overflowing drops frames for
// that client, and the client-side reconciler recovers via its full
// reload path.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// one user can hold several connections (phone + laptop)
	byUser map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[uint]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// PublishChange broadcasts one entity mutation to every connected
// client.
func (h *Hub) PublishChange(kind, changeType string, payload any) {
	h.broadcast(ChangeEvent{
		EventID: uuid.NewString(),
		Kind:    kind,
		Type:    changeType,
		Payload: payload,
	})
}

// NotifyUser pushes an in-app frame (new notification, badge poke) to
// one user's connections only.
func (h *Hub) NotifyUser(userID uint, payload any) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	m := h.byUser[userID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *Hub) broadcast(ev ChangeEvent) {
	data, _ := json.Marshal(ev)
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

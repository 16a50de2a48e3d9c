package sse

import (
	"path"
	"sync"
	"sync/atomic"

	"github.com/kbukum/streamkit/logger"
)

const (
	clientBuffer = 256
	hubBuffer    = 256
)

// Message is one event sent to clients.
type Message struct {
	// Event is the SSE event name.
	Event string
	// StreamID scopes the message; empty reaches every client.
	StreamID string
	Data     []byte
}

// Client is a connected SSE subscriber.
type Client struct {
	id      string
	filter  string
	events  chan Message
	dropped atomic.Uint64
}

// NewClient creates a client. filter is a path.Match glob on stream ids;
// empty or "*" accepts every stream.
func NewClient(id, filter string) *Client {
	return &Client{
		id:     id,
		filter: filter,
		events: make(chan Message, clientBuffer),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) Filter() string { return c.filter }

// Events returns the channel the client reads from. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Events() <-chan Message {
	return c.events
}

// Dropped returns how many messages the client missed because it was slow.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Send queues msg without blocking. It returns false when the client's
// buffer is full.
func (c *Client) Send(msg Message) bool {
	select {
	case c.events <- msg:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *Client) matches(streamID string) bool {
	if streamID == "" || c.filter == "" || c.filter == "*" {
		return true
	}
	ok, err := path.Match(c.filter, streamID)
	return err == nil && ok
}

func (c *Client) close() {
	close(c.events)
}

// Hub owns the client set and fans messages out from a single goroutine.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}

	mu      sync.RWMutex
	stopped bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, hubBuffer),
		done:       make(chan struct{}),
	}
}

// Run is the hub loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.id]; ok {
				old.close()
			}
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("sse client registered", logger.Fields("client_id", client.id, "filter", client.filter, "clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.id]; ok && cur == client {
				delete(h.clients, client.id)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("sse client unregistered", logger.Fields("client_id", client.id, "clients", total))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop makes Run return. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

// Register adds client. It returns false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client and closes its channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues msg for delivery without blocking. It returns false when
// the hub is stopped or its queue is full.
func (h *Hub) Publish(msg Message) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- msg:
		h.published.Add(1)
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Published and Dropped count messages accepted and refused by Publish.
func (h *Hub) Published() uint64 { return h.published.Load() }
func (h *Hub) Dropped() uint64   { return h.dropped.Load() }

func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.matches(msg.StreamID) && !client.Send(msg) {
			logger.Warn("sse client too slow, message dropped", logger.Fields(
				"client_id", client.id,
				logger.FieldStreamID, msg.StreamID,
			))
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.close()
		delete(h.clients, id)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	CLIENT_BUFFER_SIZE = 256
	WRITE_TIMEOUT      = 10 * time.Second
)

// Broadcaster is the outbound side the round engines depend on.
type Broadcaster interface {
	Publish(event string, payload interface{})
	Send(connID string, event string, payload interface{})
}

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	id       string
	conn     Conn
	outbound chan []byte
	done     chan struct{}
	stopped  chan struct{}
}

// Hub fans events out to connections. Each client has one writer goroutine
// fed by a FIFO queue, so events to one connection keep emission order.
// A client whose queue is full loses the event.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(id string, conn Conn) {
	client := &Client{
		id:       id,
		conn:     conn,
		outbound: make(chan []byte, CLIENT_BUFFER_SIZE),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		old.shutdown()
	}
	h.clients[id] = client
	total := len(h.clients)
	h.mu.Unlock()

	go client.writePump()
	log.Printf("[WS] Client connected: %s (Total: %d)", id, total)
}

// Unregister stops the client's writer and closes its connection. It
// returns once the writer has exited.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	client.shutdown()
	<-client.stopped
	client.conn.Close()
	log.Printf("[WS] Client disconnected: %s (Total: %d)", id, total)
}

func (h *Hub) Publish(event string, payload interface{}) {
	data, err := encode(event, payload)
	if err != nil {
		log.Printf("[WS] Marshal error for %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.enqueue(data)
	}
}

func (h *Hub) Send(connID string, event string, payload interface{}) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := encode(event, payload)
	if err != nil {
		log.Printf("[WS] Marshal error for %s: %v", event, err)
		return
	}
	client.enqueue(data)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(WSMessage{Type: event, Data: payload})
}

func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.outbound <- data:
	default:
		log.Printf("[WS] Send buffer full for %s, dropping message", c.id)
	}
}

func (c *Client) shutdown() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Client) writePump() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[WS] Write error for %s: %v", c.id, err)
			}
		}
	}
}

// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	Type        string          `json:"type"` // events, printer
	Port        *string         `json:"port,omitempty"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	// subscriptions limits delivered event types; empty means all
	subscriptions map[string]bool
	subMu         sync.RWMutex
}

// Subscribe adds an event type to the client's filter
func (c *Client) Subscribe(topic string) {
	c.subMu.Lock()
	if c.subscriptions == nil {
		c.subscriptions = make(map[string]bool)
	}
	c.subscriptions[topic] = true
	c.subMu.Unlock()
}

// Unsubscribe removes an event type from the client's filter
func (c *Client) Unsubscribe(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// Wants reports whether the client should receive an event type
func (c *Client) Wants(eventType string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ConnectionManager manages WebSocket connections
type ConnectionManager struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	cm.clients[client.ID] = client
	cm.mutex.Unlock()
}

// Unregister unregisters a client and closes its send channel
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.mutex.Lock()
	if _, ok := cm.clients[client.ID]; ok {
		delete(cm.clients, client.ID)
		close(client.Send)
	}
	cm.mutex.Unlock()
}

// Deliver queues a message for every client selected by match. Clients
// whose send buffer is full are skipped and returned.
func (cm *ConnectionManager) Deliver(message []byte, match func(*Client) bool) (skipped []*Client) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, client := range cm.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			skipped = append(skipped, client)
		}
	}
	return skipped
}

// Send queues a message for one client, reporting false if it is gone or full
func (cm *ConnectionManager) Send(client *Client, message []byte) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if _, ok := cm.clients[client.ID]; !ok {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		ByType:           make(map[string]int),
		Clients:          make([]*Client, 0, len(cm.clients)),
	}

	for _, client := range cm.clients {
		stats.ByType[client.Type]++
		stats.Clients = append(stats.Clients, client)
	}

	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByType           map[string]int `json:"by_type"`
	Clients          []*Client      `json:"clients"`
}

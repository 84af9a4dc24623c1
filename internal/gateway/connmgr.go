package gateway

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Conn represents a single WebSocket connection. Frames are queued and
// written by the connection's own writer goroutine so a slow reader never
// blocks a broadcaster.
type Conn struct {
	ID          string
	Role        string
	WS          *websocket.Conn
	ConnectedAt time.Time

	out       chan Frame
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

func NewConn(id, role string, ws *websocket.Conn) *Conn {
	return &Conn{
		ID:          id,
		Role:        role,
		WS:          ws,
		ConnectedAt: time.Now(),
		out:         make(chan Frame, sendBuffer),
		done:        make(chan struct{}),
	}
}

// Send queues a frame. It never blocks; when the queue is full the frame is
// dropped and false is returned.
func (c *Conn) Send(frame Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// writeLoop drains the queue until Close. Run it in its own goroutine.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.out:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.WS.WriteJSON(frame); err != nil {
				slog.Debug("websocket write failed", "conn", c.ID, "error", err)
				c.Close()
				return
			}
		}
	}
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.WS.Close()
	})
}

// ConnManager tracks all active WebSocket connections.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*Conn // connID → conn
	seq   atomic.Int64
}

func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]*Conn)}
}

// Add registers a new connection.
func (m *ConnManager) Add(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn
}

// Remove unregisters a connection.
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connID)
}

// BroadcastToRole sends an event only to connections with a specific role.
func (m *ConnManager) BroadcastToRole(role, event string, payload any) {
	frame := EventFrame(event, m.seq.Add(1), payload)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.conns {
		if conn.Role == role && !conn.Send(frame) {
			slog.Warn("broadcast dropped", "conn", conn.ID, "event", event)
		}
	}
}

// Count returns the number of connections with role, or all if role is "".
func (m *ConnManager) Count(role string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if role == "" {
		return len(m.conns)
	}
	count := 0
	for _, conn := range m.conns {
		if conn.Role == role {
			count++
		}
	}
	return count
}

// CloseAll closes every connection.
func (m *ConnManager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.conns {
		conn.Close()
	}
}

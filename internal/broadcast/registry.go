// Package broadcast fans live attack events out to subscriber connections.
package broadcast

import (
	"sync"

	"github.com/strikemap-systems/strikemap/internal/metrics"
)

// Envelope is the frame delivered to subscribers.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Conn is one live subscriber connection. Send must be safe for use by a
// single broadcaster goroutine; implementations serialize their own writes.
type Conn interface {
	Send(env Envelope) error
	Close() error
}

// Registry tracks active subscriber connections. Register and Unregister
// are O(1); Broadcast works on a snapshot so a slow or dead consumer never
// blocks delivery to the rest.
type Registry struct {
	mu    sync.Mutex
	conns map[Conn]struct{}
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[Conn]struct{})}
}

// Register adds a connection.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	n := len(r.conns)
	r.mu.Unlock()
	metrics.ConnectedClients.Set(float64(n))
}

// Unregister removes a connection. Unknown connections are a no-op.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	n := len(r.conns)
	r.mu.Unlock()
	metrics.ConnectedClients.Set(float64(n))
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Broadcast delivers env to every registered connection. Connections whose
// delivery fails are closed and unregistered; the failure does not stop
// delivery to the others. Returns the number of removed connections.
func (r *Registry) Broadcast(env Envelope) int {
	r.mu.Lock()
	snapshot := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	var dead []Conn
	for _, c := range snapshot {
		if err := c.Send(env); err != nil {
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		_ = c.Close()
		r.Unregister(c)
	}

	if len(snapshot) > 0 {
		metrics.BroadcastsTotal.Inc()
	}
	return len(dead)
}

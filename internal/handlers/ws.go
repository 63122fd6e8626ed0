package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strikemap-systems/strikemap/internal/broadcast"
	"github.com/strikemap-systems/strikemap/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsConn adapts one WebSocket client to the broadcast registry. Writes
// are serialized: the fan-out goroutine and the ping loop share the
// socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(env broadcast.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(env)
}

// sendLocked writes a frame. Caller holds c.mu.
func (c *wsConn) sendLocked(env broadcast.Envelope) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WSHandler upgrades GET /ws/attacks connections and feeds them live events.
type WSHandler struct {
	store    store.Store
	registry *broadcast.Registry
	upgrader websocket.Upgrader
	handler  *Handler
}

// NewWSHandler creates the WebSocket endpoint. Origin checking is left to
// the CORS middleware in front of the router; the upgrader accepts any
// origin that made it through.
func NewWSHandler(st store.Store, registry *broadcast.Registry, h *Handler) *WSHandler {
	return &WSHandler{
		store:    st,
		registry: registry,
		handler:  h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws/attacks
func (ws *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		ws.handler.logger.WithContext(r.Context()).Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	conn := &wsConn{conn: raw}

	// Register before reading the snapshot, holding the write lock so
	// live frames queued by the fan-out wait behind the batch frame. An
	// event published between registration and the snapshot read can
	// arrive both in the batch and as a live frame; clients de-duplicate
	// by event ID. Registering after the snapshot would instead lose any
	// event published in that window.
	conn.mu.Lock()
	ws.registry.Register(conn)
	recent, err := ws.store.GetRecent(r.Context(), store.MaxRecent)
	if err != nil {
		ws.handler.logger.WithContext(r.Context()).Error("recent window read failed", "error", err.Error())
		recent = nil
	}
	sendErr := conn.sendLocked(broadcast.Envelope{Type: "recent", Data: recent})
	conn.mu.Unlock()
	if sendErr != nil {
		ws.registry.Unregister(conn)
		conn.Close()
		return
	}

	defer func() {
		ws.registry.Unregister(conn)
		conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.readLoop(raw)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames to drive pong handling and detect close.
// Inbound data is ignored; the channel is server-to-client only.
func (ws *WSHandler) readLoop(raw *websocket.Conn) {
	raw.SetReadLimit(1024)
	raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			return
		}
	}
}

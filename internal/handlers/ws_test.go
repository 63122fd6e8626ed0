package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikemap-systems/strikemap/internal/broadcast"
	"github.com/strikemap-systems/strikemap/internal/models"
)

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/attacks"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env wsEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocketInitialBatchThenLive(t *testing.T) {
	st := &fakeStore{recent: []models.AttackEvent{{ID: "old-2"}, {ID: "old-1"}}}
	registry := broadcast.NewRegistry()
	h := testHandler(t, st, nil)
	ws := NewWSHandler(st, registry, h)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/attacks", ws)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialWS(t, srv)

	// First frame is the recent snapshot, newest first.
	env := readEnvelope(t, conn)
	require.Equal(t, "recent", env.Type)
	var recent []models.AttackEvent
	require.NoError(t, json.Unmarshal(env.Data, &recent))
	require.Len(t, recent, 2)
	assert.Equal(t, "old-2", recent[0].ID)

	// The connection is registered by the time the snapshot arrives.
	require.Eventually(t, func() bool { return registry.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	// Live events flow through the registry.
	registry.Broadcast(broadcast.Envelope{Type: "attack",
		Data: models.AttackEvent{ID: "live-1"}})

	env = readEnvelope(t, conn)
	require.Equal(t, "attack", env.Type)
	var live models.AttackEvent
	require.NoError(t, json.Unmarshal(env.Data, &live))
	assert.Equal(t, "live-1", live.ID)
}

// gatedStore blocks GetRecent until released, exposing the window between
// connection registration and the snapshot send.
type gatedStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetRecent(ctx context.Context, limit int) ([]models.AttackEvent, error) {
	close(g.entered)
	<-g.release
	return g.fakeStore.GetRecent(ctx, limit)
}

func TestWebSocketEventDuringJoinWindowNotLost(t *testing.T) {
	gs := &gatedStore{
		fakeStore: &fakeStore{recent: []models.AttackEvent{{ID: "old-1"}}},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	registry := broadcast.NewRegistry()
	h := testHandler(t, gs, nil)
	ws := NewWSHandler(gs, registry, h)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/attacks", ws)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialWS(t, srv)

	// The connection must already be registered while the snapshot is
	// still being assembled; an event broadcast now has a delivery path.
	select {
	case <-gs.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot read never started")
	}
	assert.Equal(t, 1, registry.Count())

	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		registry.Broadcast(broadcast.Envelope{Type: "attack",
			Data: models.AttackEvent{ID: "window-1"}})
	}()
	close(gs.release)

	// The batch frame arrives first, then the event from the join window.
	env := readEnvelope(t, conn)
	require.Equal(t, "recent", env.Type)

	env = readEnvelope(t, conn)
	require.Equal(t, "attack", env.Type)
	var live models.AttackEvent
	require.NoError(t, json.Unmarshal(env.Data, &live))
	assert.Equal(t, "window-1", live.ID)

	select {
	case <-broadcastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast did not complete")
	}
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	st := &fakeStore{}
	registry := broadcast.NewRegistry()
	h := testHandler(t, st, nil)
	ws := NewWSHandler(st, registry, h)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/attacks", ws)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialWS(t, srv)
	readEnvelope(t, conn) // snapshot
	require.Eventually(t, func() bool { return registry.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return registry.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsPlainGET(t *testing.T) {
	st := &fakeStore{}
	h := testHandler(t, st, nil)
	ws := NewWSHandler(st, broadcast.NewRegistry(), h)

	rec := httptest.NewRecorder()
	ws.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/attacks", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

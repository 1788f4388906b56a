package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBroadcaster_BroadcastTypedAddsSequence(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry()
	registry.Add(&Client{
		ID:            "client-1",
		Conn:          serverConn,
		Authenticated: true,
	})

	broadcaster := NewEventBroadcaster(registry, zerolog.Nop())
	broadcaster.BroadcastTyped(EventMessage{
		Event:     "xr.event",
		Stream:    StreamTypeSession,
		SessionID: 3,
		Data:      map[string]interface{}{"kind": "visibility-change"},
		TraceID:   "trace-1",
	})
	broadcaster.BroadcastTyped(EventMessage{
		Event:     "xr.event",
		Stream:    StreamTypeSession,
		SessionID: 3,
		Data:      map[string]interface{}{"kind": "session-end"},
		TraceID:   "trace-1",
	})

	var first EventMessage
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, clientConn.ReadJSON(&first))

	var second EventMessage
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, clientConn.ReadJSON(&second))

	assert.Equal(t, "event", first.Type)
	assert.Equal(t, "xr.event", first.Event)
	assert.Equal(t, StreamTypeSession, first.Stream)
	assert.Equal(t, uint32(3), first.SessionID)
	assert.NotZero(t, first.Seq)
	assert.Equal(t, "trace-1", first.TraceID)

	assert.Equal(t, "event", second.Type)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestEventBroadcaster_BroadcastAssignsTypeAndSequence(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry()
	registry.Add(&Client{
		ID:            "client-1",
		Conn:          serverConn,
		Authenticated: true,
	})

	broadcaster := NewEventBroadcaster(registry, zerolog.Nop())
	broadcaster.Broadcast("server.shutdown", map[string]interface{}{"ok": true})

	var event EventMessage
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, clientConn.ReadJSON(&event))

	assert.Equal(t, "event", event.Type)
	assert.Equal(t, "server.shutdown", event.Event)
	assert.NotZero(t, event.Seq)
	assert.NotZero(t, event.Timestamp)
}

func TestEventBroadcaster_SendToClient(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry()
	registry.Add(&Client{
		ID:            "client-1",
		Conn:          serverConn,
		Authenticated: true,
	})

	broadcaster := NewEventBroadcaster(registry, zerolog.Nop())
	broadcaster.SendToClient("client-1", EventMessage{
		Event:     "frame",
		Stream:    StreamTypeFrame,
		SessionID: 1,
		Data:      map[string]interface{}{"timeNs": 16000000},
	})

	// Unknown clients are dropped without panicking.
	broadcaster.SendToClient("client-unknown", EventMessage{Event: "frame"})

	var event EventMessage
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, clientConn.ReadJSON(&event))

	assert.Equal(t, "frame", event.Event)
	assert.Equal(t, StreamTypeFrame, event.Stream)
	assert.Equal(t, uint32(1), event.SessionID)
}

func TestEventBroadcaster_ConcurrentSendsToOneClient(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewClientRegistry()
	registry.Add(&Client{
		ID:            "client-1",
		Conn:          serverConn,
		Authenticated: true,
	})

	broadcaster := NewEventBroadcaster(registry, zerolog.Nop())

	// Writes race between broadcast and targeted send goroutines; the
	// per-client write lock must keep every message intact.
	const perSender = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			broadcaster.Broadcast("xr.event", map[string]interface{}{"n": i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			broadcaster.SendToClient("client-1", EventMessage{Event: "frame", SessionID: 1})
		}
	}()

	received := 0
	for received < 2*perSender {
		var event EventMessage
		require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, clientConn.ReadJSON(&event))
		assert.Contains(t, []string{"xr.event", "frame"}, event.Event)
		received++
	}
	wg.Wait()
}

func websocketConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		serverConnCh <- conn
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConnCh:
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server websocket connection")
	}

	cleanup := func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
		srv.Close()
	}

	return serverConn, clientConn, cleanup
}

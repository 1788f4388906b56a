package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type ctxKey string

const clientIDKey ctxKey = "clientID"

// withClientID tags a request context with the WebSocket client it arrived
// on. HTTP RPC requests carry no client ID.
func withClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

func clientIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(clientIDKey).(string); ok {
		return value
	}
	return ""
}

// Client represents a connected WebSocket client. The underlying gorilla
// connection permits one concurrent writer, so every write goes through
// WriteJSON or WriteMessage, which serialize on writeMu. Reads stay on the
// per-client reader goroutine and need no locking.
type Client struct {
	ID            string
	Conn          *websocket.Conn
	Authenticated bool
	Challenge     string
	ConnectedAt   time.Time
	LastActivity  time.Time
	IPAddress     string
	AuthAttempts  int
	RateLimiter   *ClientRateLimiter
	State         ClientState

	writeMu sync.Mutex

	// subMu guards the session subscriptions this client holds. Each entry
	// is the cancel set for one watched session's frame and event feeds.
	subMu sync.Mutex
	subs  map[uint32][]func()
}

// WriteJSON marshals v and writes it to the connection.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// WriteMessage writes a preencoded message to the connection.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// AddSubscription records a cancel function for a session feed this client
// is watching.
func (c *Client) AddSubscription(sessionID uint32, cancel func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subs == nil {
		c.subs = make(map[uint32][]func())
	}
	c.subs[sessionID] = append(c.subs[sessionID], cancel)
}

// CancelSubscriptions tears down every feed this client holds for one
// session. Unknown sessions are a no-op.
func (c *Client) CancelSubscriptions(sessionID uint32) {
	c.subMu.Lock()
	cancels := c.subs[sessionID]
	delete(c.subs, sessionID)
	c.subMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// CancelAllSubscriptions tears down every feed this client holds. Called
// when the client disconnects.
func (c *Client) CancelAllSubscriptions() {
	c.subMu.Lock()
	subs := c.subs
	c.subs = nil
	c.subMu.Unlock()

	for _, cancels := range subs {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// WatchedSessions returns the session IDs this client currently subscribes
// to.
func (c *Client) WatchedSessions() []uint32 {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]uint32, 0, len(c.subs))
	for id := range c.subs {
		out = append(out, id)
	}
	return out
}

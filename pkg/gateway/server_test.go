package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// wsMessage is loose enough to hold both RPC responses and pushed events.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`

	Type      string          `json:"type,omitempty"`
	Event     string          `json:"event,omitempty"`
	SessionID uint32          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// dialGateway connects to a server's WebSocket handler and completes the
// auth handshake.
func dialGateway(t *testing.T, srv *Server) (*websocket.Conn, func()) {
	t.Helper()

	httpSrv := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var challenge AuthChallenge
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&challenge))
	require.Equal(t, "auth.challenge", challenge.Event)

	require.NoError(t, conn.WriteJSON(AuthResponse{
		Method:    "auth.response",
		Signature: SignChallenge(challenge.Challenge, "test-secret"),
	}))

	var result AuthResult
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&result))
	require.True(t, result.Success)

	return conn, func() {
		conn.Close()
		httpSrv.Close()
	}
}

// readUntil reads messages until pred matches, skipping interleaved traffic.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(wsMessage) bool) wsMessage {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var msg wsMessage
		require.NoError(t, conn.SetReadDeadline(deadline))
		require.NoError(t, conn.ReadJSON(&msg))
		if pred(msg) {
			return msg
		}
	}
	t.Fatal("timed out waiting for message")
	return wsMessage{}
}

func TestServer_AuthHandshake(t *testing.T) {
	t.Run("should authenticate with the shared secret", func(t *testing.T) {
		srv := newTestServer(t, newFakeRuntime())
		_, cleanup := dialGateway(t, srv)
		defer cleanup()
	})

	t.Run("should reject a bad signature", func(t *testing.T) {
		srv := newTestServer(t, newFakeRuntime())
		httpSrv := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
		defer httpSrv.Close()

		wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		var challenge AuthChallenge
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&challenge))

		require.NoError(t, conn.WriteJSON(AuthResponse{
			Method:    "auth.response",
			Signature: "not-a-signature",
		}))

		var result AuthResult
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&result))
		assert.False(t, result.Success)
	})

	t.Run("should reject RPC before authentication", func(t *testing.T) {
		srv := newTestServer(t, newFakeRuntime())
		httpSrv := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
		defer httpSrv.Close()

		wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		var challenge AuthChallenge
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&challenge))

		require.NoError(t, conn.WriteJSON(RPCRequest{
			ID:     "1",
			Method: "runtime.status",
		}))

		var resp RPCResponse
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, AuthenticationRequired, resp.Error.Code)
	})
}

func TestServer_SessionLifecycleOverWebSocket(t *testing.T) {
	rt := newFakeRuntime()
	srv := newTestServer(t, rt)
	conn, cleanup := dialGateway(t, srv)
	defer cleanup()

	// Request a session; the response carries the descriptor and the client
	// is subscribed to the session's streams.
	require.NoError(t, conn.WriteJSON(RPCRequest{
		ID:     "req-1",
		Method: "xr.request_session",
		Params: map[string]interface{}{
			"mode": "immersive-vr",
			"init": map[string]interface{}{
				"requiredFeatures": []string{"local-floor"},
			},
		},
	}))

	resp := readUntil(t, conn, func(m wsMessage) bool { return m.ID == "req-1" })
	require.Nil(t, resp.Error)

	var descriptor SessionDescriptor
	require.NoError(t, json.Unmarshal(resp.Result, &descriptor))
	assert.Equal(t, uint32(1), descriptor.ID)
	assert.Equal(t, []string{"local-floor"}, descriptor.GrantedFeatures)

	// A frame published by the runtime reaches the subscribed client.
	rt.frames <- xr.Frame{SessionID: 1, TimeNS: 16_000_000}

	frameMsg := readUntil(t, conn, func(m wsMessage) bool { return m.Event == "frame" })
	assert.Equal(t, uint32(1), frameMsg.SessionID)

	var frame xr.Frame
	require.NoError(t, json.Unmarshal(frameMsg.Data, &frame))
	assert.Equal(t, int64(16_000_000), frame.TimeNS)

	// Device events reach the client too.
	rt.events <- xr.Event{Kind: xr.EventVisibilityChange, Visibility: xr.VisibilityHidden}

	eventMsg := readUntil(t, conn, func(m wsMessage) bool { return m.Event == "xr.event" })
	var event xr.Event
	require.NoError(t, json.Unmarshal(eventMsg.Data, &event))
	assert.Equal(t, xr.EventVisibilityChange, event.Kind)
	assert.Equal(t, xr.VisibilityHidden, event.Visibility)

	// Session end tears the feeds down after the final event is forwarded.
	rt.events <- xr.Event{Kind: xr.EventSessionEnd}
	endMsg := readUntil(t, conn, func(m wsMessage) bool { return m.Event == "xr.event" })
	require.NoError(t, json.Unmarshal(endMsg.Data, &event))
	assert.Equal(t, xr.EventSessionEnd, event.Kind)
}

func TestServer_HandleRPCOverHTTP(t *testing.T) {
	rt := newFakeRuntime()
	srv := newTestServer(t, rt)

	httpSrv := httptest.NewServer(http.HandlerFunc(srv.handleRPC))
	defer httpSrv.Close()

	t.Run("should answer with the shared secret header", func(t *testing.T) {
		body, err := json.Marshal(RPCRequest{
			ID:     "1",
			Method: "runtime.status",
		})
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, httpSrv.URL, bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(secretHeader, "test-secret")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rpcResp RPCResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
		require.Nil(t, rpcResp.Error)

		status := rpcResp.Result.(map[string]interface{})
		assert.Equal(t, true, status["running"])
	})

	t.Run("should reject a wrong secret", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, httpSrv.URL, strings.NewReader(`{"id":"1","method":"runtime.status"}`))
		require.NoError(t, err)
		req.Header.Set(secretHeader, "wrong")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should reject non-POST requests", func(t *testing.T) {
		resp, err := http.Get(httpSrv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

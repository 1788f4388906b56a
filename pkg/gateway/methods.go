package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kestrel-xr/kestrel/pkg/layers"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// registerBuiltinMethods registers all built-in RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod("xr.supports_session", s.handleSupportsSession)
	_ = s.RegisterMethod("xr.request_session", s.handleRequestSession)
	_ = s.RegisterMethod("xr.simulate_device_connection", s.handleSimulateDeviceConnection)
	_ = s.RegisterMethod("xr.disconnect_device", s.handleDisconnectDevice)
	_ = s.RegisterMethod("mock.message", s.handleMockMessage)
	_ = s.RegisterMethod("session.start_render_loop", s.handleStartRenderLoop)
	_ = s.RegisterMethod("session.render_frame", s.handleRenderFrame)
	_ = s.RegisterMethod("session.update_clip_planes", s.handleUpdateClipPlanes)
	_ = s.RegisterMethod("session.create_layer", s.handleCreateLayer)
	_ = s.RegisterMethod("session.destroy_layer", s.handleDestroyLayer)
	_ = s.RegisterMethod("session.set_layers", s.handleSetLayers)
	_ = s.RegisterMethod("session.set_event_dest", s.handleSetEventDest)
	_ = s.RegisterMethod("session.watch", s.handleWatchSession)
	_ = s.RegisterMethod("session.info", s.handleSessionInfo)
	_ = s.RegisterMethod("session.end", s.handleEndSession)
	_ = s.RegisterMethod("runtime.status", s.handleRuntimeStatus)
	_ = s.RegisterMethod("runtime.clients", s.handleRuntimeClients)
}

// handleSupportsSession handles xr.supports_session RPC method
func (s *Server) handleSupportsSession(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	mode, err := paramSessionMode(params)
	if err != nil {
		return nil, err
	}

	supported, err := s.runtime.SupportsSession(ctx, mode)
	if err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"mode":      mode,
		"supported": supported,
	}, nil
}

// handleRequestSession handles xr.request_session RPC method. WebSocket
// callers are subscribed to the new session's frame and event streams; HTTP
// callers only get the descriptor back.
func (s *Server) handleRequestSession(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	mode, err := paramSessionMode(params)
	if err != nil {
		return nil, err
	}

	var init xr.SessionInit
	if raw, ok := params["init"]; ok {
		if err := decodeParam(raw, &init); err != nil {
			return nil, invalidParams("init", err)
		}
	}

	descriptor, err := s.runtime.RequestSession(ctx, mode, init)
	if err != nil {
		return nil, wireError(err)
	}

	if clientID := clientIDFromContext(ctx); clientID != "" {
		s.watchFrames(clientID, xr.SessionID(descriptor.ID))
		s.watchEvents(clientID, xr.SessionID(descriptor.ID))
	}

	return descriptor, nil
}

// handleSimulateDeviceConnection handles xr.simulate_device_connection RPC method
func (s *Server) handleSimulateDeviceConnection(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var init xr.MockDeviceInit
	raw, ok := params["device"]
	if !ok {
		return nil, invalidParams("device", errors.New("missing"))
	}
	if err := decodeParam(raw, &init); err != nil {
		return nil, invalidParams("device", err)
	}

	if err := s.runtime.ConnectDevice(ctx, init); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"connected": true,
		"device":    init.Name,
	}, nil
}

// handleDisconnectDevice handles xr.disconnect_device RPC method
func (s *Server) handleDisconnectDevice(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := paramString(params, "device")
	if err != nil {
		return nil, err
	}

	if err := s.runtime.DisconnectDevice(ctx, name); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"disconnected": true,
		"device":       name,
	}, nil
}

// handleMockMessage handles mock.message RPC method
func (s *Server) handleMockMessage(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	name, err := paramString(params, "device")
	if err != nil {
		return nil, err
	}

	var msg xr.MockDeviceMsg
	raw, ok := params["message"]
	if !ok {
		return nil, invalidParams("message", errors.New("missing"))
	}
	if err := decodeParam(raw, &msg); err != nil {
		return nil, invalidParams("message", err)
	}
	if msg.Kind == "" {
		return nil, invalidParams("message", errors.New("missing kind"))
	}

	if err := s.runtime.SendDeviceMessage(ctx, name, msg); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"delivered": true,
	}, nil
}

// handleStartRenderLoop handles session.start_render_loop RPC method
func (s *Server) handleStartRenderLoop(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	if err := s.runtime.StartRenderLoop(ctx, id); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"started": true,
	}, nil
}

// handleRenderFrame handles session.render_frame RPC method
func (s *Server) handleRenderFrame(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	if err := s.runtime.RenderFrame(ctx, id); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"rendered": true,
	}, nil
}

// handleUpdateClipPlanes handles session.update_clip_planes RPC method
func (s *Server) handleUpdateClipPlanes(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	near, err := paramFloat(params, "near")
	if err != nil {
		return nil, err
	}
	far, err := paramFloat(params, "far")
	if err != nil {
		return nil, err
	}
	if near <= 0 || far <= near {
		return nil, invalidParams("near/far", fmt.Errorf("require 0 < near < far, got %v and %v", near, far))
	}

	if err := s.runtime.UpdateClipPlanes(ctx, id, float32(near), float32(far)); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"updated": true,
	}, nil
}

// handleCreateLayer handles session.create_layer RPC method
func (s *Server) handleCreateLayer(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	var init layers.LayerInit
	if raw, ok := params["init"]; ok {
		if err := decodeParam(raw, &init); err != nil {
			return nil, invalidParams("init", err)
		}
	}

	layerID, err := s.runtime.CreateLayer(ctx, id, init)
	if err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"layerId": layerID,
	}, nil
}

// handleDestroyLayer handles session.destroy_layer RPC method
func (s *Server) handleDestroyLayer(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	layerID, err := paramString(params, "layerId")
	if err != nil {
		return nil, err
	}

	if err := s.runtime.DestroyLayer(ctx, id, xr.LayerID(layerID)); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"destroyed": true,
	}, nil
}

// handleSetLayers handles session.set_layers RPC method
func (s *Server) handleSetLayers(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	var layerIDs []xr.LayerID
	if raw, ok := params["layers"]; ok {
		if err := decodeParam(raw, &layerIDs); err != nil {
			return nil, invalidParams("layers", err)
		}
	}

	if err := s.runtime.SetLayers(ctx, id, layerIDs); err != nil {
		return nil, wireError(err)
	}

	return map[string]interface{}{
		"layers": len(layerIDs),
	}, nil
}

// handleSetEventDest handles session.set_event_dest RPC method. It
// subscribes the calling WebSocket client to the session's event stream.
func (s *Server) handleSetEventDest(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	clientID := clientIDFromContext(ctx)
	if clientID == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "session.set_event_dest requires a WebSocket connection",
		}
	}

	if _, err := s.runtime.SessionInfo(ctx, id); err != nil {
		return nil, wireError(err)
	}

	s.watchEvents(clientID, id)
	return map[string]interface{}{
		"subscribed": true,
	}, nil
}

// handleWatchSession handles session.watch RPC method. It subscribes the
// calling WebSocket client to both the frame and event streams, for
// observers that did not create the session.
func (s *Server) handleWatchSession(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	clientID := clientIDFromContext(ctx)
	if clientID == "" {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: "session.watch requires a WebSocket connection",
		}
	}

	descriptor, err := s.runtime.SessionInfo(ctx, id)
	if err != nil {
		return nil, wireError(err)
	}

	s.watchFrames(clientID, id)
	s.watchEvents(clientID, id)
	return descriptor, nil
}

// handleSessionInfo handles session.info RPC method
func (s *Server) handleSessionInfo(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	descriptor, err := s.runtime.SessionInfo(ctx, id)
	if err != nil {
		return nil, wireError(err)
	}
	return descriptor, nil
}

// handleEndSession handles session.end RPC method
func (s *Server) handleEndSession(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := paramSessionID(params)
	if err != nil {
		return nil, err
	}

	if err := s.runtime.EndSession(ctx, id); err != nil {
		return nil, wireError(err)
	}

	if clientID := clientIDFromContext(ctx); clientID != "" {
		if client, ok := s.clients.Get(clientID); ok {
			client.CancelSubscriptions(uint32(id))
		}
	}

	return map[string]interface{}{
		"ended": true,
	}, nil
}

// handleRuntimeStatus handles runtime.status RPC method
func (s *Server) handleRuntimeStatus(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return s.runtime.Status(ctx), nil
}

// handleRuntimeClients handles runtime.clients RPC method
func (s *Server) handleRuntimeClients(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"clients": s.clients.GetConnectedClients(),
	}, nil
}

// wireError maps runtime errors onto stable RPC codes. Errors without a
// mapping pass through and surface as internal errors.
func wireError(err error) error {
	if err == nil {
		return nil
	}

	var unsupported *xr.UnsupportedFeatureError
	switch {
	case errors.Is(err, xr.ErrNoMatchingDevice):
		return &RPCError{Code: NoMatchingDevice, Message: err.Error()}
	case errors.As(err, &unsupported):
		return &RPCError{Code: FeatureUnsupported, Message: unsupported.Error()}
	case errors.Is(err, ErrSessionNotFound):
		return &RPCError{Code: SessionNotFound, Message: err.Error()}
	case errors.Is(err, ErrDeviceNotFound):
		return &RPCError{Code: DeviceNotFound, Message: err.Error()}
	}
	return err
}

// decodeParam converts a loosely typed params value into a concrete wire
// struct by round-tripping through JSON.
func decodeParam(raw interface{}, v interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func invalidParams(field string, err error) *RPCError {
	return &RPCError{
		Code:    InvalidParams,
		Message: fmt.Sprintf("invalid %s parameter: %v", field, err),
	}
}

func paramString(params map[string]interface{}, key string) (string, error) {
	value, ok := params[key].(string)
	if !ok || value == "" {
		return "", invalidParams(key, errors.New("required string"))
	}
	return value, nil
}

func paramFloat(params map[string]interface{}, key string) (float64, error) {
	value, ok := params[key].(float64)
	if !ok {
		return 0, invalidParams(key, errors.New("required number"))
	}
	return value, nil
}

func paramSessionMode(params map[string]interface{}) (xr.SessionMode, error) {
	raw, err := paramString(params, "mode")
	if err != nil {
		return "", err
	}
	mode, err := xr.ParseSessionMode(raw)
	if err != nil {
		return "", invalidParams("mode", err)
	}
	return mode, nil
}

func paramSessionID(params map[string]interface{}) (xr.SessionID, error) {
	value, ok := params["sessionId"].(float64)
	if !ok || value < 1 || value != float64(uint32(value)) {
		return 0, invalidParams("sessionId", errors.New("required positive integer"))
	}
	return xr.SessionID(uint32(value)), nil
}

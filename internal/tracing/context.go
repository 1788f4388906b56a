package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// ClientIDKey is the context key for the gateway client ID
	ClientIDKey ContextKey = "client_id"
	// RequestIDKey is the context key for request ID (for idempotency)
	RequestIDKey ContextKey = "request_id"
	// SessionIDKey is the context key for the XR session ID
	SessionIDKey ContextKey = "session_id"
	// DeviceNameKey is the context key for the simulated device name
	DeviceNameKey ContextKey = "device_name"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID    string
	ClientID   string
	RequestID  string
	SessionID  uint32
	DeviceName string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithClientID adds a gateway client ID to the context
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

// WithRequestID adds a request ID to the context for idempotency
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithSessionID adds an XR session ID to the context
func WithSessionID(ctx context.Context, sessionID uint32) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithDeviceName adds a simulated device name to the context
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, DeviceNameKey, name)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetClientID retrieves the gateway client ID from the context
func GetClientID(ctx context.Context) string {
	if clientID, ok := ctx.Value(ClientIDKey).(string); ok {
		return clientID
	}
	return ""
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSessionID retrieves the XR session ID from the context. Zero means
// no session is attached; session IDs start at one.
func GetSessionID(ctx context.Context) uint32 {
	if sessionID, ok := ctx.Value(SessionIDKey).(uint32); ok {
		return sessionID
	}
	return 0
}

// GetDeviceName retrieves the simulated device name from the context
func GetDeviceName(ctx context.Context) string {
	if name, ok := ctx.Value(DeviceNameKey).(string); ok {
		return name
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:    GetTraceID(ctx),
		ClientID:   GetClientID(ctx),
		RequestID:  GetRequestID(ctx),
		SessionID:  GetSessionID(ctx),
		DeviceName: GetDeviceName(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.ClientID != "" {
		ctx = WithClientID(ctx, tc.ClientID)
	}
	if tc.RequestID != "" {
		ctx = WithRequestID(ctx, tc.RequestID)
	}
	if tc.SessionID != 0 {
		ctx = WithSessionID(ctx, tc.SessionID)
	}
	if tc.DeviceName != "" {
		ctx = WithDeviceName(ctx, tc.DeviceName)
	}
	return ctx
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	traceID := NewTraceID()
	return WithTraceID(ctx, traceID)
}

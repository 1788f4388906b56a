package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithTraceID(t *testing.T) {
	ctx := context.Background()
	traceID := "test-trace-id"

	ctx = WithTraceID(ctx, traceID)

	retrieved := GetTraceID(ctx)
	if retrieved != traceID {
		t.Errorf("Expected trace ID %s, got %s", traceID, retrieved)
	}
}

func TestWithClientID(t *testing.T) {
	ctx := context.Background()
	clientID := "client-abc123"

	ctx = WithClientID(ctx, clientID)

	retrieved := GetClientID(ctx)
	if retrieved != clientID {
		t.Errorf("Expected client ID %s, got %s", clientID, retrieved)
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "req-42"

	ctx = WithRequestID(ctx, requestID)

	retrieved := GetRequestID(ctx)
	if retrieved != requestID {
		t.Errorf("Expected request ID %s, got %s", requestID, retrieved)
	}
}

func TestWithSessionID(t *testing.T) {
	ctx := context.Background()

	ctx = WithSessionID(ctx, 7)

	if got := GetSessionID(ctx); got != 7 {
		t.Errorf("Expected session ID 7, got %d", got)
	}
}

func TestWithDeviceName(t *testing.T) {
	ctx := context.Background()

	ctx = WithDeviceName(ctx, "sim-hmd")

	if got := GetDeviceName(ctx); got != "sim-hmd" {
		t.Errorf("Expected device name sim-hmd, got %s", got)
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" {
		t.Error("Expected empty trace ID")
	}
	if GetClientID(ctx) != "" {
		t.Error("Expected empty client ID")
	}
	if GetRequestID(ctx) != "" {
		t.Error("Expected empty request ID")
	}
	if GetSessionID(ctx) != 0 {
		t.Error("Expected zero session ID")
	}
	if GetDeviceName(ctx) != "" {
		t.Error("Expected empty device name")
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithClientID(ctx, "client-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, 3)
	ctx = WithDeviceName(ctx, "sim-hmd")

	tc := FromContext(ctx)

	if tc.TraceID != "trace-1" {
		t.Errorf("Expected trace-1, got %s", tc.TraceID)
	}
	if tc.ClientID != "client-1" {
		t.Errorf("Expected client-1, got %s", tc.ClientID)
	}
	if tc.RequestID != "req-1" {
		t.Errorf("Expected req-1, got %s", tc.RequestID)
	}
	if tc.SessionID != 3 {
		t.Errorf("Expected session 3, got %d", tc.SessionID)
	}
	if tc.DeviceName != "sim-hmd" {
		t.Errorf("Expected sim-hmd, got %s", tc.DeviceName)
	}
}

func TestNewContext(t *testing.T) {
	tc := &TraceContext{
		TraceID:   "trace-2",
		ClientID:  "client-2",
		SessionID: 9,
	}

	ctx := NewContext(context.Background(), tc)

	if GetTraceID(ctx) != "trace-2" {
		t.Error("trace ID not carried")
	}
	if GetClientID(ctx) != "client-2" {
		t.Error("client ID not carried")
	}
	if GetSessionID(ctx) != 9 {
		t.Error("session ID not carried")
	}
	if GetDeviceName(ctx) != "" {
		t.Error("device name should be absent")
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())

	if GetTraceID(ctx) == "" {
		t.Error("Expected a fresh trace ID")
	}
}

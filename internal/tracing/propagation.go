package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("traceId", tc.TraceID).Logger()
	}
	if tc.ClientID != "" {
		logger = logger.With().Str("clientId", tc.ClientID).Logger()
	}
	if tc.SessionID != 0 {
		logger = logger.With().Uint32("sessionId", tc.SessionID).Logger()
	}
	if tc.DeviceName != "" {
		logger = logger.With().Str("device", tc.DeviceName).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// CloneContext carries tracing information into a fresh background context.
// Use when handing work to a goroutine that must outlive the request's
// cancellation, such as a spawned session worker.
func CloneContext(ctx context.Context) context.Context {
	tc := FromContext(ctx)
	return NewContext(context.Background(), tc)
}

// MergeContext merges tracing information from source context into target
// context without overwriting values the target already carries
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.ClientID != "" && GetClientID(target) == "" {
		target = WithClientID(target, tc.ClientID)
	}
	if tc.RequestID != "" && GetRequestID(target) == "" {
		target = WithRequestID(target, tc.RequestID)
	}
	if tc.SessionID != 0 && GetSessionID(target) == 0 {
		target = WithSessionID(target, tc.SessionID)
	}
	if tc.DeviceName != "" && GetDeviceName(target) == "" {
		target = WithDeviceName(target, tc.DeviceName)
	}

	return target
}

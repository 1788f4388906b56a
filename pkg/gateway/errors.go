package gateway

import "errors"

// Sentinel errors a Runtime implementation returns so handlers can map them
// to stable wire codes.
var (
	// ErrSessionNotFound reports an operation against a session ID the
	// runtime does not know, or one whose session already ended.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDeviceNotFound reports a control message for a simulated device
	// name that is not connected.
	ErrDeviceNotFound = errors.New("device not found")
)

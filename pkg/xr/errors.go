package xr

import (
	"errors"
	"fmt"
)

// ErrNoMatchingDevice is returned when no registered discovery can satisfy a
// support query, session request, or simulated connection.
var ErrNoMatchingDevice = errors.New("no matching device")

// ErrCommunication is returned when a channel setup or round trip fails.
var ErrCommunication = errors.New("communication error")

// UnsupportedFeatureError reports the first required feature a backend could
// not grant during negotiation.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature %q", e.Feature)
}

// BackendError carries an opaque failure reported by a device backend.
type BackendError struct {
	Detail string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: %s", e.Detail)
}

package gateway

import (
	"context"
	"time"

	"github.com/kestrel-xr/kestrel/pkg/layers"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// Runtime is the daemon surface the gateway exposes to clients. Every call
// is safe for concurrent use; calls that go through the registry resolve on
// its next tick, so implementations honor ctx cancellation while waiting.
type Runtime interface {
	// SupportsSession reports whether any connected device can host a
	// session in the given mode.
	SupportsSession(ctx context.Context, mode xr.SessionMode) (bool, error)

	// RequestSession negotiates a new session and returns its descriptor.
	RequestSession(ctx context.Context, mode xr.SessionMode, init xr.SessionInit) (SessionDescriptor, error)

	// ConnectDevice plugs a simulated device into the runtime.
	ConnectDevice(ctx context.Context, init xr.MockDeviceInit) error

	// DisconnectDevice detaches a simulated device by name.
	DisconnectDevice(ctx context.Context, name string) error

	// SendDeviceMessage delivers a control message to a named simulated
	// device.
	SendDeviceMessage(ctx context.Context, name string, msg xr.MockDeviceMsg) error

	// StartRenderLoop asks a session to deliver its first animation frame.
	StartRenderLoop(ctx context.Context, id xr.SessionID) error

	// RenderFrame presents the frame content just finished and requests the
	// next one.
	RenderFrame(ctx context.Context, id xr.SessionID) error

	// UpdateClipPlanes forwards new near and far clip distances.
	UpdateClipPlanes(ctx context.Context, id xr.SessionID, near, far float32) error

	// CreateLayer allocates a presentation layer for a session.
	CreateLayer(ctx context.Context, id xr.SessionID, init layers.LayerInit) (xr.LayerID, error)

	// DestroyLayer releases a presentation layer.
	DestroyLayer(ctx context.Context, id xr.SessionID, layer xr.LayerID) error

	// SetLayers installs the layers a session presents, front to back.
	SetLayers(ctx context.Context, id xr.SessionID, layerIDs []xr.LayerID) error

	// EndSession terminates a session.
	EndSession(ctx context.Context, id xr.SessionID) error

	// SessionInfo returns the descriptor of a live session.
	SessionInfo(ctx context.Context, id xr.SessionID) (SessionDescriptor, error)

	// SubscribeFrames attaches a buffered feed of a session's animation
	// frames. The returned cancel releases the feed and closes the channel.
	SubscribeFrames(id xr.SessionID, buffer int) (<-chan xr.Frame, func(), error)

	// SubscribeEvents attaches a buffered feed of a session's device events.
	SubscribeEvents(id xr.SessionID, buffer int) (<-chan xr.Event, func(), error)

	// Status reports runtime health and counters.
	Status(ctx context.Context) RuntimeStatus
}

// SessionDescriptor is the wire snapshot of one session handed to gateway
// clients.
type SessionDescriptor struct {
	ID                   uint32             `json:"sessionId"`
	Mode                 xr.SessionMode     `json:"mode"`
	Device               string             `json:"device,omitempty"`
	GrantedFeatures      []string           `json:"grantedFeatures"`
	EnvironmentBlendMode string             `json:"environmentBlendMode"`
	FloorTransform       *xr.RigidTransform `json:"floorTransform,omitempty"`
	Views                xr.Views           `json:"views"`
	FramebufferSize      *xr.Size           `json:"framebufferSize,omitempty"`
	InitialInputs        []xr.InputSource   `json:"initialInputs,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
}

// RuntimeStatus is the wire snapshot of daemon health.
type RuntimeStatus struct {
	Running         bool      `json:"running"`
	StartedAt       time.Time `json:"startedAt"`
	Uptime          string    `json:"uptime"`
	TickInterval    string    `json:"tickInterval"`
	ActiveSessions  int       `json:"activeSessions"`
	Devices         []string  `json:"devices"`
	FramesDelivered uint64    `json:"framesDelivered"`
	FramesDropped   uint64    `json:"framesDropped"`
	EventsForwarded uint64    `json:"eventsForwarded"`
}

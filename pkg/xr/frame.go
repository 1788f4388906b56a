package xr

// FrameUpdateKind discriminates frame-update events.
type FrameUpdateKind string

const (
	FrameUpdateViews          FrameUpdateKind = "views"
	FrameUpdateFloorTransform FrameUpdateKind = "floor-transform"
)

// FrameUpdateEvent replaces rarely-changing session state. Updates arrive
// attached to a Frame and are applied to the Session snapshot with
// Session.ApplyEvent.
type FrameUpdateEvent struct {
	Kind  FrameUpdateKind `json:"kind"`
	Views Views           `json:"views,omitempty"`
	// Floor is the new native-to-floor transform. Nil clears it.
	Floor *RigidTransform `json:"floor,omitempty"`
}

// Frame is one render-ready animation-frame payload produced by a device.
type Frame struct {
	SessionID SessionID `json:"sessionId"`
	// TimeNS is the device's predicted display time in nanoseconds.
	TimeNS int64 `json:"timeNs"`
	// Pose is the viewer pose, nil while tracking is lost.
	Pose    *RigidTransform    `json:"pose,omitempty"`
	Inputs  []InputFrame       `json:"inputs,omitempty"`
	Updates []FrameUpdateEvent `json:"updates,omitempty"`
	// SentNS is stamped when the session thread forwards the frame.
	SentNS int64 `json:"sentNs"`
}

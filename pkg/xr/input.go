package xr

// InputID identifies one input source within a session.
type InputID uint32

// Handedness follows the XRHandedness enum.
type Handedness string

const (
	HandNone  Handedness = "none"
	HandLeft  Handedness = "left"
	HandRight Handedness = "right"
)

// TargetRayMode follows the XRTargetRayMode enum.
type TargetRayMode string

const (
	TargetRayGaze           TargetRayMode = "gaze"
	TargetRayTrackedPointer TargetRayMode = "tracked-pointer"
	TargetRayScreen         TargetRayMode = "screen"
)

// InputSource describes one tracked input device.
type InputSource struct {
	ID            InputID         `json:"id"`
	Handedness    Handedness      `json:"handedness"`
	TargetRayMode TargetRayMode   `json:"targetRayMode"`
	Pointer       *RigidTransform `json:"pointer,omitempty"`
	Grip          *RigidTransform `json:"grip,omitempty"`
}

// InputFrame is the per-frame snapshot of one input source. Absent poses
// mean the input was not tracked this frame.
type InputFrame struct {
	ID        InputID         `json:"id"`
	TargetRay *RigidTransform `json:"targetRay,omitempty"`
	Grip      *RigidTransform `json:"grip,omitempty"`
	Pressed   bool            `json:"pressed"`
	Squeezed  bool            `json:"squeezed"`
}

package xr

// The geometry types below are opaque payloads as far as session
// orchestration is concerned. The core never interprets them beyond
// passing whole values between devices and content.

// Vector3 is a position or direction in meters.
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quaternion is a rotation, x/y/z/w component order.
type Quaternion struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// IdentityQuaternion returns the no-rotation quaternion.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// RigidTransform is a position plus orientation with no scale or shear.
type RigidTransform struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// IdentityTransform returns the identity rigid transform.
func IdentityTransform() RigidTransform {
	return RigidTransform{Orientation: IdentityQuaternion()}
}

// Projection is a column-major 4x4 projection matrix.
type Projection [16]float32

// IdentityProjection returns the identity matrix.
func IdentityProjection() Projection {
	return Projection{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Rect is a viewport rectangle in framebuffer pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size is a framebuffer extent in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

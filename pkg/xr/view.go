package xr

// Eye labels which eye a view serves.
type Eye string

const (
	EyeNone  Eye = "none"
	EyeLeft  Eye = "left"
	EyeRight Eye = "right"
)

// View carries the transform, projection, and viewport for one eye.
type View struct {
	Eye        Eye            `json:"eye"`
	Transform  RigidTransform `json:"transform"`
	Projection Projection     `json:"projection"`
	Viewport   Rect           `json:"viewport"`
}

// Views is a session's view configuration: one entry for monocular output,
// two entries (left then right) for stereo. It is always replaced as a whole
// unit, never patched in place.
type Views []View

// MonoViews returns a single-view configuration.
func MonoViews(v View) Views {
	v.Eye = EyeNone
	return Views{v}
}

// StereoViews returns a left/right pair.
func StereoViews(left, right View) Views {
	left.Eye = EyeLeft
	right.Eye = EyeRight
	return Views{left, right}
}

// IsStereo reports whether the configuration is a stereo pair.
func (v Views) IsStereo() bool {
	return len(v) == 2
}

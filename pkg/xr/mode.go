package xr

import "fmt"

// SessionMode identifies how a session presents content.
// Values follow the XRSessionMode enum.
// https://www.w3.org/TR/webxr/#xrsessionmode-enum
type SessionMode string

const (
	ModeInline      SessionMode = "inline"
	ModeImmersiveVR SessionMode = "immersive-vr"
	ModeImmersiveAR SessionMode = "immersive-ar"
)

// IsImmersive reports whether the mode takes exclusive control of a device
// display rather than rendering into an element.
func (m SessionMode) IsImmersive() bool {
	return m == ModeImmersiveVR || m == ModeImmersiveAR
}

// ParseSessionMode converts a wire-format mode string, rejecting anything
// outside the XRSessionMode enum.
func ParseSessionMode(s string) (SessionMode, error) {
	switch mode := SessionMode(s); mode {
	case ModeInline, ModeImmersiveVR, ModeImmersiveAR:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown session mode %q", s)
	}
}

// EnvironmentBlendMode describes how rendered content is composited with the
// user's surroundings.
// https://immersive-web.github.io/webxr-ar-module/#xrenvironmentblendmode-enum
type EnvironmentBlendMode string

const (
	BlendOpaque     EnvironmentBlendMode = "opaque"
	BlendAlphaBlend EnvironmentBlendMode = "alpha-blend"
	BlendAdditive   EnvironmentBlendMode = "additive"
)

// Visibility is the presentation state of a session's output.
type Visibility string

const (
	VisibilityVisible        Visibility = "visible"
	VisibilityVisibleBlurred Visibility = "visible-blurred"
	VisibilityHidden         Visibility = "hidden"
)

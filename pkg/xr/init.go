package xr

// Feature names granted by default.
// https://immersive-web.github.io/webxr/#default-features
const (
	FeatureViewer = "viewer"
	FeatureLocal  = "local"
)

// SessionInit carries the feature lists a session was requested with. It is
// consumed once during negotiation and never mutated afterwards.
// https://immersive-web.github.io/webxr/#dictdef-xrsessioninit
type SessionInit struct {
	RequiredFeatures []string `json:"requiredFeatures,omitempty"`
	OptionalFeatures []string `json:"optionalFeatures,omitempty"`
}

// Validate negotiates the requested features against a backend's supported
// list for the given mode. It fails with UnsupportedFeatureError on the
// first required feature that is neither default-granted nor supported.
// The granted list is the required features verbatim, followed by each
// optional feature that is default-granted or supported, both in input
// order.
//
// Validate is pure. It is the sole negotiation authority: every backend
// must grant exactly what it returns so granted-feature semantics stay
// identical across devices.
func (i SessionInit) Validate(mode SessionMode, supported []string) ([]string, error) {
	for _, f := range i.RequiredFeatures {
		if isDefaultFeature(f, mode) {
			continue
		}
		if !containsFeature(supported, f) {
			return nil, &UnsupportedFeatureError{Feature: f}
		}
	}

	granted := make([]string, 0, len(i.RequiredFeatures)+len(i.OptionalFeatures))
	granted = append(granted, i.RequiredFeatures...)
	for _, f := range i.OptionalFeatures {
		if isDefaultFeature(f, mode) || containsFeature(supported, f) {
			granted = append(granted, f)
		}
	}
	return granted, nil
}

// "viewer" is always granted; "local" only outside inline sessions.
func isDefaultFeature(feature string, mode SessionMode) bool {
	return feature == FeatureViewer || (feature == FeatureLocal && mode != ModeInline)
}

func containsFeature(features []string, name string) bool {
	for _, f := range features {
		if f == name {
			return true
		}
	}
	return false
}

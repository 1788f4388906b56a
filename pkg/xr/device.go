package xr

// Device is implemented by backends to drive one session. All methods are
// called from the session's own goroutine; implementations do not need to
// be safe for concurrent use by the core.
type Device interface {
	// FloorTransform returns the native-to-floor transform, or nil when the
	// session has no floor reference.
	FloorTransform() *RigidTransform

	// Views returns the current view configuration.
	Views() Views

	// RecommendedFramebufferResolution returns the preferred framebuffer
	// size. ok is false for inline sessions, which never construct one.
	RecommendedFramebufferResolution() (size Size, ok bool)

	// InitialInputs returns the input sources present at session start.
	InitialInputs() []InputSource

	// EnvironmentBlendMode returns how rendered content is composited with
	// the user's surroundings.
	EnvironmentBlendMode() EnvironmentBlendMode

	// GrantedFeatures returns the feature list negotiated for this session.
	GrantedFeatures() []string

	// WaitForAnimationFrame blocks until the next frame is due and returns
	// its payload. ok is false once the device can no longer produce
	// frames, which ends the session cleanly.
	WaitForAnimationFrame() (frame Frame, ok bool)

	// RenderAnimationFrame presents the currently held frame.
	RenderAnimationFrame()

	// UpdateClipPlanes installs new near and far clip distances in meters.
	UpdateClipPlanes(near, far float32)

	// SetEventDest installs the channel future device events are sent to.
	SetEventDest(dest chan<- Event)

	// SetQuitter hands the device a handle it may use to end its own
	// session, for example when the platform runtime shuts down.
	SetQuitter(quitter Quitter)

	// SetLayers installs the layers to present, front to back.
	SetLayers(layers []LayerID)

	// Quit tells the device the session is ending.
	Quit()
}

// Discovery is a backend's entry point for session negotiation.
type Discovery interface {
	// SupportsSession reports whether the backend can create a session in
	// the given mode. Must be pure.
	SupportsSession(mode SessionMode) bool

	// RequestSession attempts to create a session through the supplied
	// builder. Negotiation must go through SessionInit.Validate. A failure
	// makes the registry try the next discovery.
	RequestSession(mode SessionMode, init SessionInit, builder *SessionBuilder) (*Session, error)
}

// MockDiscovery produces simulated devices for tests and development rigs.
type MockDiscovery interface {
	// SimulateDeviceConnection builds a Discovery around a simulated device
	// configured by init and driven at runtime through control.
	SimulateDeviceConnection(init MockDeviceInit, control <-chan MockDeviceMsg) (Discovery, error)
}

// MockDeviceInit is the initial state of a simulated device.
type MockDeviceInit struct {
	Name              string          `json:"name"`
	SupportedFeatures []string        `json:"supportedFeatures,omitempty"`
	SupportsInline    bool            `json:"supportsInline"`
	SupportsVR        bool            `json:"supportsVr"`
	SupportsAR        bool            `json:"supportsAr"`
	ViewerOrigin      *RigidTransform `json:"viewerOrigin,omitempty"`
	FloorOrigin       *RigidTransform `json:"floorOrigin,omitempty"`
	Views             Views           `json:"views,omitempty"`
}

// MockDeviceMsgKind discriminates control messages for a simulated device.
type MockDeviceMsgKind string

const (
	MockMsgSetViews          MockDeviceMsgKind = "set-views"
	MockMsgSetViewerOrigin   MockDeviceMsgKind = "set-viewer-origin"
	MockMsgSetFloorOrigin    MockDeviceMsgKind = "set-floor-origin"
	MockMsgVisibilityChange  MockDeviceMsgKind = "visibility-change"
	MockMsgAddInputSource    MockDeviceMsgKind = "add-input-source"
	MockMsgRemoveInputSource MockDeviceMsgKind = "remove-input-source"
	MockMsgTriggerSelect     MockDeviceMsgKind = "trigger-select"
	MockMsgDisconnect        MockDeviceMsgKind = "disconnect"
)

// MockDeviceMsg mutates a simulated device while its session runs. Kind
// decides which fields apply.
type MockDeviceMsg struct {
	Kind         MockDeviceMsgKind `json:"kind"`
	Views        Views             `json:"views,omitempty"`
	ViewerOrigin *RigidTransform   `json:"viewerOrigin,omitempty"`
	// FloorOrigin replaces the floor transform; nil clears it.
	FloorOrigin *RigidTransform `json:"floorOrigin,omitempty"`
	Visibility  Visibility      `json:"visibility,omitempty"`
	Input       *InputSource    `json:"input,omitempty"`
	InputID     InputID         `json:"inputId,omitempty"`
	SelectKind  SelectKind      `json:"selectKind,omitempty"`
	SelectPhase SelectPhase     `json:"selectPhase,omitempty"`
	// Disconnected, when non-nil on a disconnect message, is closed once
	// the device has stopped producing frames.
	Disconnected chan<- struct{} `json:"-"`
}

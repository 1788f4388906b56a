package xr

import "time"

// SessionID identifies one session, unique for the process lifetime.
type SessionID uint32

type sessionMsgKind int

const (
	msgSetEventDest sessionMsgKind = iota
	msgSetLayers
	msgUpdateClipPlanes
	msgStartRenderLoop
	msgRenderAnimationFrame
	msgQuit
)

// sessionMsg is one control message bound for a session thread.
type sessionMsg struct {
	kind      sessionMsgKind
	eventDest chan<- Event
	layers    []LayerID
	near, far float32
	// requested is when content asked for the animation frame, used for
	// pump latency observation.
	requested time.Time
}

// sessionSender delivers control messages to one session thread. Once the
// thread has exited, sends are dropped instead of blocking forever.
type sessionSender struct {
	ch   chan sessionMsg
	done chan struct{}
}

func (s sessionSender) send(msg sessionMsg) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.ch <- msg:
	case <-s.done:
	}
}

// Quitter requests termination of one session. It is a weak control handle:
// copies are cheap, any goroutine may use it, and quitting a session that
// has already ended is a no-op.
type Quitter struct {
	sender sessionSender
}

// Quit asks the session to terminate. Fire and forget.
func (q Quitter) Quit() {
	q.sender.send(sessionMsg{kind: msgQuit})
}

// Session is the content-facing handle to one running session.
//
// Most fields are a snapshot taken once at creation. Views and the floor
// transform may be replaced afterwards by frame-update events, which the
// holder applies via ApplyEvent. A Session is not safe for concurrent use.
// https://www.w3.org/TR/webxr/#xrsession-interface
type Session struct {
	id              SessionID
	floorTransform  *RigidTransform
	views           Views
	resolution      Size
	hasResolution   bool
	blendMode       EnvironmentBlendMode
	initialInputs   []InputSource
	grantedFeatures []string
	sender          sessionSender
}

// ID returns the session identifier.
func (s *Session) ID() SessionID {
	return s.id
}

// FloorTransform returns the native-to-floor transform, or nil when the
// session has no floor reference.
func (s *Session) FloorTransform() *RigidTransform {
	return s.floorTransform
}

// Views returns the current view configuration.
func (s *Session) Views() Views {
	return s.views
}

// RecommendedFramebufferResolution returns the device's preferred
// framebuffer size. ok is false for inline sessions.
func (s *Session) RecommendedFramebufferResolution() (Size, bool) {
	return s.resolution, s.hasResolution
}

// EnvironmentBlendMode returns the session's compositing mode.
func (s *Session) EnvironmentBlendMode() EnvironmentBlendMode {
	return s.blendMode
}

// InitialInputs returns the input sources present at session creation.
func (s *Session) InitialInputs() []InputSource {
	return s.initialInputs
}

// GrantedFeatures returns the negotiated feature list.
func (s *Session) GrantedFeatures() []string {
	return s.grantedFeatures
}

// SetEventDest installs the channel future device events are forwarded to.
func (s *Session) SetEventDest(dest chan<- Event) {
	s.sender.send(sessionMsg{kind: msgSetEventDest, eventDest: dest})
}

// SetLayers installs the layers the device should present, front to back.
func (s *Session) SetLayers(layers []LayerID) {
	s.sender.send(sessionMsg{kind: msgSetLayers, layers: layers})
}

// UpdateClipPlanes forwards new near/far clip distances to the device.
func (s *Session) UpdateClipPlanes(near, far float32) {
	s.sender.send(sessionMsg{kind: msgUpdateClipPlanes, near: near, far: far})
}

// StartRenderLoop asks the session thread to wait for the first animation
// frame and deliver it.
func (s *Session) StartRenderLoop() {
	s.sender.send(sessionMsg{kind: msgStartRenderLoop})
}

// RenderAnimationFrame asks the session thread to present the frame content
// just finished and wait for the next one.
func (s *Session) RenderAnimationFrame() {
	s.sender.send(sessionMsg{kind: msgRenderAnimationFrame, requested: time.Now()})
}

// End requests session termination, equivalent to Quitter.Quit.
func (s *Session) End() {
	s.sender.send(sessionMsg{kind: msgQuit})
}

// Ended reports whether the session thread has exited, either through End or
// because its device stopped producing frames. Unlike the snapshot accessors
// it is safe to call from any goroutine.
func (s *Session) Ended() bool {
	select {
	case <-s.sender.done:
		return true
	default:
		return false
	}
}

// ApplyEvent folds a frame-update event into the cached snapshot.
func (s *Session) ApplyEvent(event FrameUpdateEvent) {
	switch event.Kind {
	case FrameUpdateViews:
		s.views = event.Views
	case FrameUpdateFloorTransform:
		s.floorTransform = event.Floor
	}
}

package headless

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// simulator is the shared state of one simulated device. Sessions attach
// device handles to it; the control loop mutates it. State access is
// mutexed, but events and frame updates are fanned out only after the lock
// is released so device handles never nest under the simulator lock.
type simulator struct {
	name       string
	frameDelay time.Duration

	mu           sync.Mutex
	supported    []string
	inline       bool
	vr           bool
	ar           bool
	viewerOrigin *xr.RigidTransform
	floor        *xr.RigidTransform
	views        xr.Views
	visibility   xr.Visibility
	inputs       []xr.InputSource
	disconnected bool
	devices      []*device
}

func newSimulator(init xr.MockDeviceInit, frameDelay time.Duration) *simulator {
	views := init.Views
	if len(views) == 0 {
		views = defaultViews()
	}
	return &simulator{
		name:         init.Name,
		frameDelay:   frameDelay,
		supported:    append([]string(nil), init.SupportedFeatures...),
		inline:       init.SupportsInline,
		vr:           init.SupportsVR,
		ar:           init.SupportsAR,
		viewerOrigin: init.ViewerOrigin,
		floor:        init.FloorOrigin,
		views:        views,
		visibility:   xr.VisibilityVisible,
	}
}

// defaultViews is a plain stereo rig used when the init carries none.
func defaultViews() xr.Views {
	left := xr.View{
		Transform:  xr.RigidTransform{Position: xr.Vector3{X: -0.032}, Orientation: xr.IdentityQuaternion()},
		Projection: xr.IdentityProjection(),
		Viewport:   xr.Rect{Width: 960, Height: 1080},
	}
	right := xr.View{
		Transform:  xr.RigidTransform{Position: xr.Vector3{X: 0.032}, Orientation: xr.IdentityQuaternion()},
		Projection: xr.IdentityProjection(),
		Viewport:   xr.Rect{X: 960, Width: 960, Height: 1080},
	}
	return xr.StereoViews(left, right)
}

// run consumes control messages until the channel closes.
func (s *simulator) run(control <-chan xr.MockDeviceMsg) {
	for msg := range control {
		s.apply(msg)
	}
	log.Debug().Str("device", s.name).Msg("Mock control channel closed")
}

func (s *simulator) apply(msg xr.MockDeviceMsg) {
	switch msg.Kind {
	case xr.MockMsgSetViews:
		s.mu.Lock()
		s.views = msg.Views
		devices := s.attachedLocked()
		s.mu.Unlock()
		for _, d := range devices {
			d.queueUpdate(xr.FrameUpdateEvent{Kind: xr.FrameUpdateViews, Views: msg.Views})
		}

	case xr.MockMsgSetViewerOrigin:
		s.mu.Lock()
		s.viewerOrigin = msg.ViewerOrigin
		s.mu.Unlock()

	case xr.MockMsgSetFloorOrigin:
		s.mu.Lock()
		s.floor = msg.FloorOrigin
		devices := s.attachedLocked()
		s.mu.Unlock()
		for _, d := range devices {
			d.queueUpdate(xr.FrameUpdateEvent{Kind: xr.FrameUpdateFloorTransform, Floor: msg.FloorOrigin})
		}

	case xr.MockMsgVisibilityChange:
		s.mu.Lock()
		s.visibility = msg.Visibility
		devices := s.attachedLocked()
		s.mu.Unlock()
		println("ZZPROBE: apply visibility, attached devices:", len(devices)) // ZZPROBE
		for _, d := range devices {
			d.sendEvent(xr.Event{Kind: xr.EventVisibilityChange, Visibility: msg.Visibility})
		}

	case xr.MockMsgAddInputSource:
		if msg.Input == nil {
			log.Warn().Str("device", s.name).Msg("Add input message without input source")
			return
		}
		s.mu.Lock()
		s.inputs = append(s.inputs, *msg.Input)
		devices := s.attachedLocked()
		s.mu.Unlock()
		for _, d := range devices {
			d.sendEvent(xr.Event{Kind: xr.EventInputAdded, Input: msg.Input})
		}

	case xr.MockMsgRemoveInputSource:
		s.mu.Lock()
		kept := s.inputs[:0]
		for _, input := range s.inputs {
			if input.ID != msg.InputID {
				kept = append(kept, input)
			}
		}
		s.inputs = kept
		devices := s.attachedLocked()
		s.mu.Unlock()
		for _, d := range devices {
			d.sendEvent(xr.Event{Kind: xr.EventInputRemoved, InputID: msg.InputID})
		}

	case xr.MockMsgTriggerSelect:
		s.mu.Lock()
		devices := s.attachedLocked()
		s.mu.Unlock()
		for _, d := range devices {
			frame := d.synthesizeFrame()
			d.sendEvent(xr.Event{
				Kind:        xr.EventSelect,
				InputID:     msg.InputID,
				SelectKind:  msg.SelectKind,
				SelectPhase: msg.SelectPhase,
				Frame:       &frame,
			})
		}

	case xr.MockMsgDisconnect:
		s.mu.Lock()
		already := s.disconnected
		s.disconnected = true
		s.mu.Unlock()
		if !already {
			log.Info().Str("device", s.name).Msg("Simulated device disconnected")
		}
		if msg.Disconnected != nil {
			close(msg.Disconnected)
		}

	default:
		log.Warn().Str("device", s.name).Str("kind", string(msg.Kind)).Msg("Unknown mock control message")
	}
}

func (s *simulator) attachedLocked() []*device {
	return append([]*device(nil), s.devices...)
}

func (s *simulator) supportsMode(mode xr.SessionMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch mode {
	case xr.ModeInline:
		return s.inline
	case xr.ModeImmersiveVR:
		return s.vr
	case xr.ModeImmersiveAR:
		return s.ar
	}
	return false
}

func (s *simulator) supportedFeatures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.supported...)
}

func (s *simulator) isDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// snapshot returns the state one frame is built from.
func (s *simulator) snapshot() (pose *xr.RigidTransform, inputs []xr.InputSource, views xr.Views, disconnected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewerOrigin, append([]xr.InputSource(nil), s.inputs...), s.views, s.disconnected
}

// newDevice attaches a session-facing device handle.
func (s *simulator) newDevice(mode xr.SessionMode, granted []string) *device {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &device{
		sim:     s,
		mode:    mode,
		granted: granted,
		blend:   blendForMode(mode),
	}
	s.devices = append(s.devices, d)
	return d
}

func blendForMode(mode xr.SessionMode) xr.EnvironmentBlendMode {
	if mode == xr.ModeImmersiveAR {
		return xr.BlendAlphaBlend
	}
	return xr.BlendOpaque
}

package headless

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// device is the per-session handle onto one simulator. The session thread
// drives it; the simulator's control loop feeds it events and frame
// updates.
type device struct {
	sim     *simulator
	mode    xr.SessionMode
	granted []string
	blend   xr.EnvironmentBlendMode

	mu        sync.Mutex
	eventDest chan<- xr.Event
	pending   []xr.FrameUpdateEvent
	ended     bool
	layers    []xr.LayerID
	near, far float32
	rendered  int
}

func (d *device) FloorTransform() *xr.RigidTransform {
	d.sim.mu.Lock()
	defer d.sim.mu.Unlock()
	return d.sim.floor
}

func (d *device) Views() xr.Views {
	d.sim.mu.Lock()
	defer d.sim.mu.Unlock()
	return d.sim.views
}

// RecommendedFramebufferResolution is the union extent of all viewports.
// Inline sessions render into the page and report none.
func (d *device) RecommendedFramebufferResolution() (xr.Size, bool) {
	if d.mode == xr.ModeInline {
		return xr.Size{}, false
	}
	var size xr.Size
	for _, view := range d.Views() {
		if edge := view.Viewport.X + view.Viewport.Width; edge > size.Width {
			size.Width = edge
		}
		if edge := view.Viewport.Y + view.Viewport.Height; edge > size.Height {
			size.Height = edge
		}
	}
	return size, true
}

func (d *device) InitialInputs() []xr.InputSource {
	_, inputs, _, _ := d.sim.snapshot()
	return inputs
}

func (d *device) EnvironmentBlendMode() xr.EnvironmentBlendMode {
	return d.blend
}

func (d *device) GrantedFeatures() []string {
	return d.granted
}

// WaitForAnimationFrame synthesizes the next frame from simulator state.
// It reports false once the simulated device has disconnected or the
// session has quit, ending the session loop cleanly.
func (d *device) WaitForAnimationFrame() (xr.Frame, bool) {
	if d.sim.frameDelay > 0 {
		time.Sleep(d.sim.frameDelay)
	}

	d.mu.Lock()
	ended := d.ended
	updates := d.pending
	d.pending = nil
	d.mu.Unlock()

	_, _, _, disconnected := d.sim.snapshot()
	if ended || disconnected {
		return xr.Frame{}, false
	}

	frame := d.synthesizeFrame()
	frame.Updates = updates
	return frame, true
}

func (d *device) RenderAnimationFrame() {
	d.mu.Lock()
	d.rendered++
	d.mu.Unlock()
}

func (d *device) UpdateClipPlanes(near, far float32) {
	d.mu.Lock()
	d.near, d.far = near, far
	d.mu.Unlock()
}

func (d *device) SetEventDest(dest chan<- xr.Event) {
	d.mu.Lock()
	d.eventDest = dest
	d.mu.Unlock()
}

func (d *device) SetQuitter(quitter xr.Quitter) {
	// The simulator ends sessions through disconnection, not the quitter.
}

func (d *device) SetLayers(layers []xr.LayerID) {
	d.mu.Lock()
	d.layers = append([]xr.LayerID(nil), layers...)
	d.mu.Unlock()
}

func (d *device) Quit() {
	d.mu.Lock()
	d.ended = true
	dest := d.eventDest
	d.mu.Unlock()
	if dest != nil {
		d.deliverEvent(dest, xr.Event{Kind: xr.EventSessionEnd})
	}
}

// synthesizeFrame builds a frame from current simulator state without
// consuming pending updates.
func (d *device) synthesizeFrame() xr.Frame {
	pose, inputs, _, _ := d.sim.snapshot()
	frames := make([]xr.InputFrame, 0, len(inputs))
	for _, input := range inputs {
		frames = append(frames, xr.InputFrame{
			ID:        input.ID,
			TargetRay: input.Pointer,
			Grip:      input.Grip,
		})
	}
	return xr.Frame{
		TimeNS: time.Now().UnixNano(),
		Pose:   pose,
		Inputs: frames,
	}
}

// queueUpdate schedules a frame-update event for delivery with the next
// synthesized frame.
func (d *device) queueUpdate(update xr.FrameUpdateEvent) {
	d.mu.Lock()
	d.pending = append(d.pending, update)
	d.mu.Unlock()
}

// sendEvent forwards one event to the session's event destination, if any.
func (d *device) sendEvent(event xr.Event) {
	d.mu.Lock()
	dest := d.eventDest
	ended := d.ended
	d.mu.Unlock()
	if dest == nil || ended {
		return
	}
	d.deliverEvent(dest, event)
}

// deliverEvent is a non-blocking send. A full destination drops the event
// rather than stalling the simulator control loop.
func (d *device) deliverEvent(dest chan<- xr.Event, event xr.Event) {
	select {
	case dest <- event:
	default:
		log.Warn().
			Str("device", d.sim.name).
			Str("kind", string(event.Kind)).
			Msg("Event destination full, dropping event")
	}
}

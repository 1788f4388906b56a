package xr

import (
	"time"

	"github.com/rs/zerolog/log"
)

// How long a main-thread-stepped session waits on its control channel per
// receive before yielding the registry tick.
const frameWait = 5 * time.Millisecond

// Control messages queued ahead of the session thread draining them.
const sessionBacklog = 32

// PumpState is the frame pump's current stage, exposed for auditing and
// instrumentation.
type PumpState string

const (
	// PumpIdle: between frames, waiting for a control message.
	PumpIdle PumpState = "idle"
	// PumpRendering: the device is presenting the current frame.
	PumpRendering PumpState = "rendering"
	// PumpWaitingFrame: blocked on the device's next animation frame.
	PumpWaitingFrame PumpState = "waiting-frame"
	// PumpQuit: the loop has terminated. Terminal.
	PumpQuit PumpState = "quit"
)

// PumpObserver receives frame pump signals. Every field is optional.
// Callbacks run on the session goroutine between device calls and must not
// block.
type PumpObserver struct {
	// OnTransmit fires when a render request is dequeued, with the time it
	// spent queued.
	OnTransmit func(id SessionID, queued time.Duration)
	// OnRender fires after the device presented a frame.
	OnRender func(id SessionID, d time.Duration)
	// OnWait fires after the device produced the next frame.
	OnWait func(id SessionID, d time.Duration)
	// OnState fires on every pump state transition.
	OnState func(id SessionID, state PumpState)
}

// SessionThread owns one device and runs its per-frame protocol. It is
// created through a SessionBuilder; backends that keep their own threads
// construct one directly and call Run.
type SessionThread struct {
	id         SessionID
	device     Device
	receiver   chan sessionMsg
	sender     sessionSender
	frames     chan<- Frame
	frameCount uint64
	running    bool
	state      PumpState
	observer   PumpObserver
}

// NewSessionThread wires a device into a session loop. The device receives
// its Quitter here. Frames are delivered on frames, which the consumer must
// service.
func NewSessionThread(device Device, frames chan<- Frame, id SessionID) *SessionThread {
	ch := make(chan sessionMsg, sessionBacklog)
	sender := sessionSender{ch: ch, done: make(chan struct{})}
	st := &SessionThread{
		id:       id,
		device:   device,
		receiver: ch,
		sender:   sender,
		frames:   frames,
		running:  true,
		state:    PumpIdle,
	}
	device.SetQuitter(Quitter{sender: sender})
	return st
}

// SetObserver installs a pump observer. Call before the loop starts.
func (st *SessionThread) SetObserver(observer PumpObserver) {
	st.observer = observer
}

// NewSession snapshots the device state into a content-facing handle. Call
// exactly once, before the loop starts consuming messages that could mutate
// device-exposed state.
func (st *SessionThread) NewSession() *Session {
	resolution, hasResolution := st.device.RecommendedFramebufferResolution()
	return &Session{
		id:              st.id,
		floorTransform:  st.device.FloorTransform(),
		views:           st.device.Views(),
		resolution:      resolution,
		hasResolution:   hasResolution,
		blendMode:       st.device.EnvironmentBlendMode(),
		initialInputs:   st.device.InitialInputs(),
		grantedFeatures: st.device.GrantedFeatures(),
		sender:          st.sender,
	}
}

// FrameCount returns how many render requests the thread has handled.
func (st *SessionThread) FrameCount() uint64 {
	return st.frameCount
}

// State returns the pump's current stage.
func (st *SessionThread) State() PumpState {
	return st.state
}

// Run processes control messages until the session terminates. It blocks
// and is intended to be the body of a dedicated goroutine.
func (st *SessionThread) Run() {
	for st.running {
		if !st.handleMsg(<-st.receiver) {
			st.running = false
		}
	}
	st.terminate()
}

// RunOneFrame steps the session from the registry tick: it processes
// messages until the frame count advances, the session terminates, or a
// bounded receive times out. One call advances at most one animation frame
// and never stalls the registry on an idle session.
func (st *SessionThread) RunOneFrame() {
	start := st.frameCount
	for st.frameCount == start && st.running {
		msg, ok := st.recvTimeout(frameWait)
		if !ok {
			return
		}
		if !st.handleMsg(msg) {
			st.running = false
			st.terminate()
		}
	}
}

// Running reports whether the loop will continue.
func (st *SessionThread) Running() bool {
	return st.running
}

func (st *SessionThread) recvTimeout(d time.Duration) (sessionMsg, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case msg := <-st.receiver:
		return msg, true
	case <-timer.C:
		return sessionMsg{}, false
	}
}

// handleMsg processes one control message and reports whether the loop
// should keep running.
func (st *SessionThread) handleMsg(msg sessionMsg) bool {
	switch msg.kind {
	case msgSetEventDest:
		st.device.SetEventDest(msg.eventDest)

	case msgSetLayers:
		st.device.SetLayers(msg.layers)

	case msgUpdateClipPlanes:
		st.device.UpdateClipPlanes(msg.near, msg.far)

	case msgStartRenderLoop:
		st.setState(PumpWaitingFrame)
		frame, ok := st.device.WaitForAnimationFrame()
		if !ok {
			log.Warn().Uint32("sessionId", uint32(st.id)).Msg("Device stopped providing frames, exiting")
			return false
		}
		st.setState(PumpIdle)
		st.deliver(frame)

	case msgRenderAnimationFrame:
		st.frameCount++
		if st.observer.OnTransmit != nil && !msg.requested.IsZero() {
			st.observer.OnTransmit(st.id, time.Since(msg.requested))
		}

		st.setState(PumpRendering)
		renderStart := time.Now()
		st.device.RenderAnimationFrame()
		if st.observer.OnRender != nil {
			st.observer.OnRender(st.id, time.Since(renderStart))
		}

		st.setState(PumpWaitingFrame)
		waitStart := time.Now()
		frame, ok := st.device.WaitForAnimationFrame()
		if !ok {
			log.Warn().Uint32("sessionId", uint32(st.id)).Msg("Device stopped providing frames, exiting")
			return false
		}
		if st.observer.OnWait != nil {
			st.observer.OnWait(st.id, time.Since(waitStart))
		}
		st.setState(PumpIdle)
		st.deliver(frame)

	case msgQuit:
		st.device.Quit()
		return false
	}
	return true
}

// deliver stamps and forwards one frame to the consumer.
func (st *SessionThread) deliver(frame Frame) {
	frame.SessionID = st.id
	frame.SentNS = time.Now().UnixNano()
	st.frames <- frame
}

// terminate closes the control channel's done signal so later sends become
// no-ops. Safe to call more than once; only the first transition acts.
func (st *SessionThread) terminate() {
	if st.state == PumpQuit {
		return
	}
	st.setState(PumpQuit)
	close(st.sender.done)
	log.Debug().Uint32("sessionId", uint32(st.id)).Uint64("frames", st.frameCount).Msg("Session thread exited")
}

func (st *SessionThread) setState(state PumpState) {
	if st.state == state {
		return
	}
	st.state = state
	if st.observer.OnState != nil {
		st.observer.OnState(st.id, state)
	}
}

// MainThreadSession is a session stepped once per registry tick instead of
// running its own goroutine.
type MainThreadSession interface {
	RunOneFrame()
	Running() bool
}

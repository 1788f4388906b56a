package xr

import (
	"github.com/rs/zerolog/log"
)

// Requests queued ahead of the registry draining them.
const requestBacklog = 64

// Control messages queued ahead of a simulated device draining them.
const mockControlBacklog = 32

type registryMsgKind int

const (
	msgSupportsSession registryMsgKind = iota
	msgRequestSession
	msgSimulateDeviceConnection
)

// registryMsg is one queued cross-goroutine request.
type registryMsg struct {
	kind       registryMsgKind
	mode       SessionMode
	init       SessionInit
	mockInit   MockDeviceInit
	supportsCB func(error)
	requestCB  func(*Session, error)
	mockCB     func(chan<- MockDeviceMsg, error)
}

// Registry is the cross-goroutine front door to a MainThreadRegistry.
// Copies are cheap and share the same request queue. Results arrive only
// through the supplied callbacks, which run on the registry goroutine
// during RunOneFrame and must not block.
type Registry struct {
	requests chan<- registryMsg
}

// SupportsSession asks whether any registered discovery supports the mode.
// The callback receives nil on the first match, ErrNoMatchingDevice
// otherwise.
func (r Registry) SupportsSession(mode SessionMode, callback func(error)) {
	r.requests <- registryMsg{kind: msgSupportsSession, mode: mode, supportsCB: callback}
}

// RequestSession asks the registry to create a session. Discoveries are
// tried in registration order; the callback receives the first success, or
// ErrNoMatchingDevice once every discovery has declined.
func (r Registry) RequestSession(mode SessionMode, init SessionInit, callback func(*Session, error)) {
	r.requests <- registryMsg{kind: msgRequestSession, mode: mode, init: init, requestCB: callback}
}

// SimulateDeviceConnection asks the registry to plug in a simulated device.
// On success the callback receives the send end of the device's control
// channel.
func (r Registry) SimulateDeviceConnection(init MockDeviceInit, callback func(chan<- MockDeviceMsg, error)) {
	r.requests <- registryMsg{kind: msgSimulateDeviceConnection, mockInit: init, mockCB: callback}
}

// MainThreadRegistry owns the authoritative discovery, session, and mock
// lists. All list state is confined to the goroutine that calls
// RunOneFrame; other goroutines interact only through Registry handles, so
// no locking is needed anywhere in the registry.
type MainThreadRegistry struct {
	discoveries []Discovery
	sessions    []MainThreadSession
	mocks       []MockDiscovery
	requests    chan registryMsg
	frames      chan<- Frame
	observer    PumpObserver
	nextSession SessionID
}

// NewMainThreadRegistry creates an empty registry. Every frame produced by
// sessions it builds is delivered on frames, stamped with its SessionID;
// the caller must keep the channel serviced.
func NewMainThreadRegistry(frames chan<- Frame) *MainThreadRegistry {
	return &MainThreadRegistry{
		requests: make(chan registryMsg, requestBacklog),
		frames:   frames,
	}
}

// Registry returns a cross-goroutine handle to this registry.
func (r *MainThreadRegistry) Registry() Registry {
	return Registry{requests: r.requests}
}

// Register appends a discovery. Later SupportsSession and RequestSession
// dispatches try discoveries in registration order.
func (r *MainThreadRegistry) Register(discovery Discovery) {
	r.discoveries = append(r.discoveries, discovery)
}

// RegisterMock appends a mock discovery used by SimulateDeviceConnection.
func (r *MainThreadRegistry) RegisterMock(mock MockDiscovery) {
	r.mocks = append(r.mocks, mock)
}

// RunOnMainThread registers a session for per-tick stepping.
func (r *MainThreadRegistry) RunOnMainThread(session MainThreadSession) {
	r.sessions = append(r.sessions, session)
}

// SetPumpObserver installs the observer handed to every session this
// registry builds from now on.
func (r *MainThreadRegistry) SetPumpObserver(observer PumpObserver) {
	r.observer = observer
}

// RunOneFrame is the registry tick: drain every pending request in arrival
// order, dispatch each synchronously, step every resident session once, and
// drop sessions that are no longer running.
func (r *MainThreadRegistry) RunOneFrame() {
drain:
	for {
		select {
		case msg := <-r.requests:
			r.handleMsg(msg)
		default:
			break drain
		}
	}

	for _, session := range r.sessions {
		session.RunOneFrame()
	}

	live := r.sessions[:0]
	for _, session := range r.sessions {
		if session.Running() {
			live = append(live, session)
		}
	}
	if removed := len(r.sessions) - len(live); removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", len(live)).Msg("Dropped finished sessions")
	}
	r.sessions = live
}

// Running reports whether any stepped session is still live.
func (r *MainThreadRegistry) Running() bool {
	for _, session := range r.sessions {
		if session.Running() {
			return true
		}
	}
	return false
}

// SessionCount returns how many stepped sessions are resident.
func (r *MainThreadRegistry) SessionCount() int {
	return len(r.sessions)
}

// DiscoveryCount returns how many discoveries are registered, mock-backed
// ones included.
func (r *MainThreadRegistry) DiscoveryCount() int {
	return len(r.discoveries)
}

func (r *MainThreadRegistry) handleMsg(msg registryMsg) {
	switch msg.kind {
	case msgSupportsSession:
		err := r.supportsSession(msg.mode)
		if msg.supportsCB != nil {
			msg.supportsCB(err)
		}
	case msgRequestSession:
		session, err := r.requestSession(msg.mode, msg.init)
		if msg.requestCB != nil {
			msg.requestCB(session, err)
		}
	case msgSimulateDeviceConnection:
		control, err := r.simulateDeviceConnection(msg.mockInit)
		if msg.mockCB != nil {
			msg.mockCB(control, err)
		}
	}
}

func (r *MainThreadRegistry) supportsSession(mode SessionMode) error {
	for _, discovery := range r.discoveries {
		if discovery.SupportsSession(mode) {
			return nil
		}
	}
	return ErrNoMatchingDevice
}

func (r *MainThreadRegistry) requestSession(mode SessionMode, init SessionInit) (*Session, error) {
	for _, discovery := range r.discoveries {
		builder := newSessionBuilder(&r.sessions, r.frames, r.allocateSessionID(), r.observer)
		session, err := discovery.RequestSession(mode, init, builder)
		if err != nil {
			// A declining discovery is not fatal, try the next one.
			log.Debug().Str("mode", string(mode)).Err(err).Msg("Discovery declined session request")
			continue
		}
		log.Info().
			Str("mode", string(mode)).
			Uint32("sessionId", uint32(session.ID())).
			Strs("grantedFeatures", session.GrantedFeatures()).
			Msg("Session created")
		return session, nil
	}
	return nil, ErrNoMatchingDevice
}

func (r *MainThreadRegistry) simulateDeviceConnection(init MockDeviceInit) (chan<- MockDeviceMsg, error) {
	for _, mock := range r.mocks {
		control := make(chan MockDeviceMsg, mockControlBacklog)
		discovery, err := mock.SimulateDeviceConnection(init, control)
		if err != nil {
			log.Debug().Str("device", init.Name).Err(err).Msg("Mock discovery declined connection")
			continue
		}
		// Simulated devices take priority over previously registered ones.
		r.discoveries = append([]Discovery{discovery}, r.discoveries...)
		log.Info().Str("device", init.Name).Int("discoveries", len(r.discoveries)).Msg("Simulated device connected")
		return control, nil
	}
	return nil, ErrNoMatchingDevice
}

func (r *MainThreadRegistry) allocateSessionID() SessionID {
	r.nextSession++
	return r.nextSession
}

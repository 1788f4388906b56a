package xr

// DeviceFactory constructs the backend device for one session attempt. It
// may fail, for example when the platform runtime refuses the mode.
type DeviceFactory func() (Device, error)

// SessionBuilder turns a device factory into a running session. The
// registry hands a fresh builder, carrying a newly allocated SessionID, to
// each discovery it tries; a builder is consumed by at most one of Spawn or
// RunOnMainThread.
type SessionBuilder struct {
	sessions *[]MainThreadSession
	frames   chan<- Frame
	id       SessionID
	observer PumpObserver
}

func newSessionBuilder(sessions *[]MainThreadSession, frames chan<- Frame, id SessionID, observer PumpObserver) *SessionBuilder {
	return &SessionBuilder{
		sessions: sessions,
		frames:   frames,
		id:       id,
		observer: observer,
	}
}

// ID returns the session identifier this builder will assign.
func (b *SessionBuilder) ID() SessionID {
	return b.id
}

type spawnResult struct {
	session *Session
	err     error
}

// Spawn runs the factory on a new goroutine, builds the session loop there,
// and hands thread management to it. Spawn blocks until the worker reports
// either the constructed Session or the construction error. For backends
// that want their own thread without exposing it to the registry.
func (b *SessionBuilder) Spawn(factory DeviceFactory) (*Session, error) {
	ack := make(chan spawnResult, 1)
	frames := b.frames
	id := b.id
	observer := b.observer
	go func() {
		device, err := factory()
		if err != nil {
			ack <- spawnResult{err: err}
			return
		}
		thread := NewSessionThread(device, frames, id)
		thread.SetObserver(observer)
		ack <- spawnResult{session: thread.NewSession()}
		thread.Run()
	}()

	result, ok := <-ack
	if !ok {
		return nil, ErrCommunication
	}
	return result.session, result.err
}

// RunOnMainThread builds the device on the calling goroutine and registers
// the session for per-tick stepping. For devices that must be driven from
// the registry's own thread, typically because they are bound to a graphics
// context.
func (b *SessionBuilder) RunOnMainThread(factory DeviceFactory) (*Session, error) {
	device, err := factory()
	if err != nil {
		return nil, err
	}
	thread := NewSessionThread(device, b.frames, b.id)
	thread.SetObserver(b.observer)
	session := thread.NewSession()
	*b.sessions = append(*b.sessions, thread)
	return session, nil
}

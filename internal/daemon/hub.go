package daemon

import (
	"sync"
	"sync/atomic"

	"github.com/kestrel-xr/kestrel/internal/observability"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// sessionHub fans frames and device events out to per-session subscribers.
// The session owner paces frame production through render_frame, so a
// subscriber that keeps up never loses anything; a lagging observer loses
// the oldest frames rather than stalling the pump.
type sessionHub struct {
	mu        sync.RWMutex
	frameSubs map[xr.SessionID]map[uint64]chan xr.Frame
	eventSubs map[xr.SessionID]map[uint64]chan xr.Event
	nextID    uint64

	framesDelivered uint64
	framesDropped   uint64
	eventsForwarded uint64
}

func newSessionHub() *sessionHub {
	return &sessionHub{
		frameSubs: make(map[xr.SessionID]map[uint64]chan xr.Frame),
		eventSubs: make(map[xr.SessionID]map[uint64]chan xr.Event),
	}
}

// SubscribeFrames attaches a buffered frame feed for one session. The
// returned cancel closes the feed; it is safe to call after CloseSession
// already tore the subscription down.
func (h *sessionHub) SubscribeFrames(id xr.SessionID, buffer int) (<-chan xr.Frame, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan xr.Frame, buffer)

	h.mu.Lock()
	h.nextID++
	subID := h.nextID
	if _, exists := h.frameSubs[id]; !exists {
		h.frameSubs[id] = make(map[uint64]chan xr.Frame)
	}
	h.frameSubs[id][subID] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.frameSubs[id]
		if !ok {
			return
		}
		sub, exists := subs[subID]
		if !exists {
			return
		}
		delete(subs, subID)
		if len(subs) == 0 {
			delete(h.frameSubs, id)
		}
		close(sub)
	}

	return ch, cancel
}

// SubscribeEvents attaches a buffered event feed for one session.
func (h *sessionHub) SubscribeEvents(id xr.SessionID, buffer int) (<-chan xr.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan xr.Event, buffer)

	h.mu.Lock()
	h.nextID++
	subID := h.nextID
	if _, exists := h.eventSubs[id]; !exists {
		h.eventSubs[id] = make(map[uint64]chan xr.Event)
	}
	h.eventSubs[id][subID] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.eventSubs[id]
		if !ok {
			return
		}
		sub, exists := subs[subID]
		if !exists {
			return
		}
		delete(subs, subID)
		if len(subs) == 0 {
			delete(h.eventSubs, id)
		}
		close(sub)
	}

	return ch, cancel
}

// PublishFrame delivers a frame to every subscriber of its session without
// blocking. A full subscriber buffer counts as a drop.
func (h *sessionHub) PublishFrame(frame xr.Frame) {
	h.mu.RLock()
	subs := h.frameSubs[frame.SessionID]
	for _, sub := range subs {
		select {
		case sub <- frame:
			atomic.AddUint64(&h.framesDelivered, 1)
		default:
			atomic.AddUint64(&h.framesDropped, 1)
			observability.RecordFrameDropped()
		}
	}
	h.mu.RUnlock()
}

// PublishEvent delivers a device event to every subscriber of its session.
// Events are small and per-session ordered, so a full buffer still counts
// each delivery attempt as forwarded work.
func (h *sessionHub) PublishEvent(id xr.SessionID, evt xr.Event) {
	observability.RecordEventForwarded(string(evt.Kind))

	h.mu.RLock()
	subs := h.eventSubs[id]
	for _, sub := range subs {
		select {
		case sub <- evt:
			atomic.AddUint64(&h.eventsForwarded, 1)
		default:
		}
	}
	h.mu.RUnlock()
}

// CloseSession tears down every subscription of one session, closing the
// subscriber channels. Outstanding cancel funcs become no-ops.
func (h *sessionHub) CloseSession(id xr.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for subID, sub := range h.frameSubs[id] {
		delete(h.frameSubs[id], subID)
		close(sub)
	}
	delete(h.frameSubs, id)

	for subID, sub := range h.eventSubs[id] {
		delete(h.eventSubs[id], subID)
		close(sub)
	}
	delete(h.eventSubs, id)
}

// Counters returns the lifetime delivery counters.
func (h *sessionHub) Counters() (delivered, dropped, forwarded uint64) {
	return atomic.LoadUint64(&h.framesDelivered),
		atomic.LoadUint64(&h.framesDropped),
		atomic.LoadUint64(&h.eventsForwarded)
}

// SubscriberCount reports how many frame and event feeds a session has.
func (h *sessionHub) SubscriberCount(id xr.SessionID) (frames, events int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.frameSubs[id]), len(h.eventSubs[id])
}

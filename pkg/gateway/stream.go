package gateway

import (
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// Per-subscription channel buffers. Frame feeds are sized for a display
// interval's worth of backlog; slow readers drop frames at the hub rather
// than stalling the pump.
const (
	frameFeedBuffer = 64
	eventFeedBuffer = 16
)

// watchFrames subscribes a connected client to a session's animation frames
// and starts the forwarding goroutine. The subscription is torn down when
// the client disconnects, calls session.end, or the feed is cancelled.
func (s *Server) watchFrames(clientID string, id xr.SessionID) {
	client, ok := s.clients.Get(clientID)
	if !ok {
		return
	}

	frames, cancel, err := s.runtime.SubscribeFrames(id, frameFeedBuffer)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("clientId", clientID).
			Uint32("sessionId", uint32(id)).
			Msg("Frame subscription failed")
		return
	}

	client.AddSubscription(uint32(id), cancel)
	go s.streamFrames(client, id, frames)
}

// watchEvents subscribes a connected client to a session's device events and
// starts the forwarding goroutine.
func (s *Server) watchEvents(clientID string, id xr.SessionID) {
	client, ok := s.clients.Get(clientID)
	if !ok {
		return
	}

	events, cancel, err := s.runtime.SubscribeEvents(id, eventFeedBuffer)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("clientId", clientID).
			Uint32("sessionId", uint32(id)).
			Msg("Event subscription failed")
		return
	}

	client.AddSubscription(uint32(id), cancel)
	go s.streamEvents(client, id, events)
}

// streamFrames forwards one frame feed to one client until the feed closes.
func (s *Server) streamFrames(client *Client, id xr.SessionID, frames <-chan xr.Frame) {
	for frame := range frames {
		s.broadcaster.SendToClient(client.ID, EventMessage{
			Event:     "frame",
			Stream:    StreamTypeFrame,
			SessionID: uint32(id),
			Data:      frame,
		})
	}
}

// streamEvents forwards one event feed to one client until the feed closes.
// A session-end event also tears down the client's remaining feeds for that
// session, so frame forwarding stops with it.
func (s *Server) streamEvents(client *Client, id xr.SessionID, events <-chan xr.Event) {
	for event := range events {
		s.broadcaster.SendToClient(client.ID, EventMessage{
			Event:     "xr.event",
			Stream:    StreamTypeSession,
			SessionID: uint32(id),
			Data:      event,
		})

		if event.Kind == xr.EventSessionEnd {
			client.CancelSubscriptions(uint32(id))
			return
		}
	}
}

package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventBroadcaster handles delivering server-initiated events, either to all
// authenticated clients or to one specific client.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends an event to all authenticated clients
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	b.BroadcastTyped(EventMessage{
		Event: event,
		Data:  data,
	})
}

// BroadcastTyped sends a typed stream event with sequence metadata.
func (b *EventBroadcaster) BroadcastTyped(msg EventMessage) {
	jsonData, ok := b.encode(&msg)
	if !ok {
		return
	}

	clients := b.clients.GetAuthenticatedClients()
	if len(clients) == 0 {
		return
	}

	failureCount := 0
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Int64("seq", msg.Seq).
				Msg("Failed to broadcast to client")
			failureCount++
		}
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Str("stream", string(msg.Stream)).
		Int64("seq", msg.Seq).
		Int("clients", len(clients)).
		Int("failed", failureCount).
		Msg("Event broadcast complete")
}

// SendToClient delivers a typed event to a single client. Unknown client IDs
// are dropped silently, which covers clients that disconnected while an
// event was in flight.
func (b *EventBroadcaster) SendToClient(clientID string, msg EventMessage) {
	client, exists := b.clients.Get(clientID)
	if !exists {
		return
	}

	jsonData, ok := b.encode(&msg)
	if !ok {
		return
	}

	if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
		b.logger.Warn().
			Err(err).
			Str("clientId", clientID).
			Str("event", msg.Event).
			Msg("Failed to send event to client")
	}
}

// encode stamps sequence and timestamp and marshals the message.
func (b *EventBroadcaster) encode(msg *EventMessage) ([]byte, bool) {
	msg.Type = "event"
	if msg.Seq == 0 {
		msg.Seq = b.nextSeq()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", msg.Event).
			Str("stream", string(msg.Stream)).
			Int64("seq", msg.Seq).
			Msg("Failed to marshal event")
		return nil, false
	}
	return jsonData, true
}

func (b *EventBroadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}

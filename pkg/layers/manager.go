// Package layers tracks presentation layers per session. Sessions only route
// layer identifiers; allocation and ownership bookkeeping live here, behind
// the Manager interface, so compositing backends can be swapped without
// touching session code.
package layers

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// LayerInit describes the buffer a layer needs.
type LayerInit struct {
	Size    xr.Size `json:"size"`
	Depth   bool    `json:"depth"`
	Stencil bool    `json:"stencil"`
	Alpha   bool    `json:"alpha"`
}

// Layer is one allocated presentation layer.
type Layer struct {
	ID        xr.LayerID   `json:"id"`
	SessionID xr.SessionID `json:"sessionId"`
	Init      LayerInit    `json:"init"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Manager allocates and releases layers on behalf of sessions.
type Manager interface {
	CreateLayer(session xr.SessionID, init LayerInit) (xr.LayerID, error)
	DestroyLayer(session xr.SessionID, id xr.LayerID)
	Layer(session xr.SessionID, id xr.LayerID) (Layer, bool)
	SessionLayers(session xr.SessionID) []Layer
	SessionLayerIDs(session xr.SessionID) []xr.LayerID
	DestroySession(session xr.SessionID)
}

// SoftwareManager is an in-memory Manager with no GPU attachment. It is the
// layer backend for simulated devices.
type SoftwareManager struct {
	// MaxPerSession caps layers per session. Zero means unlimited.
	MaxPerSession int

	mu       sync.RWMutex
	sessions map[xr.SessionID]map[xr.LayerID]Layer
	order    map[xr.SessionID][]xr.LayerID
}

// NewSoftwareManager returns an empty manager with no per-session cap.
func NewSoftwareManager() *SoftwareManager {
	return &SoftwareManager{
		sessions: make(map[xr.SessionID]map[xr.LayerID]Layer),
		order:    make(map[xr.SessionID][]xr.LayerID),
	}
}

// CreateLayer allocates a layer and returns its identifier.
func (m *SoftwareManager) CreateLayer(session xr.SessionID, init LayerInit) (xr.LayerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.MaxPerSession > 0 && len(m.sessions[session]) >= m.MaxPerSession {
		return "", &xr.BackendError{Detail: fmt.Sprintf("session %d exceeds %d layers", session, m.MaxPerSession)}
	}

	id := xr.LayerID(uuid.NewString())
	if m.sessions[session] == nil {
		m.sessions[session] = make(map[xr.LayerID]Layer)
	}
	m.sessions[session][id] = Layer{
		ID:        id,
		SessionID: session,
		Init:      init,
		CreatedAt: time.Now(),
	}
	m.order[session] = append(m.order[session], id)

	log.Debug().
		Uint32("sessionId", uint32(session)).
		Str("layerId", string(id)).
		Int("layers", len(m.sessions[session])).
		Msg("Layer created")
	return id, nil
}

// DestroyLayer releases one layer. Unknown layers are ignored.
func (m *SoftwareManager) DestroyLayer(session xr.SessionID, id xr.LayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session][id]; !ok {
		return
	}
	delete(m.sessions[session], id)
	kept := m.order[session][:0]
	for _, existing := range m.order[session] {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	m.order[session] = kept

	log.Debug().Uint32("sessionId", uint32(session)).Str("layerId", string(id)).Msg("Layer destroyed")
}

// Layer looks up one layer.
func (m *SoftwareManager) Layer(session xr.SessionID, id xr.LayerID) (Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	layer, ok := m.sessions[session][id]
	return layer, ok
}

// SessionLayers returns a session's layers in creation order.
func (m *SoftwareManager) SessionLayers(session xr.SessionID) []Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Layer, 0, len(m.order[session]))
	for _, id := range m.order[session] {
		out = append(out, m.sessions[session][id])
	}
	return out
}

// SessionLayerIDs returns a session's layer identifiers in creation order,
// ready to hand to Session.SetLayers.
func (m *SoftwareManager) SessionLayerIDs(session xr.SessionID) []xr.LayerID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]xr.LayerID(nil), m.order[session]...)
}

// DestroySession releases every layer a session owns.
func (m *SoftwareManager) DestroySession(session xr.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.sessions[session])
	delete(m.sessions, session)
	delete(m.order, session)
	if count > 0 {
		log.Debug().Uint32("sessionId", uint32(session)).Int("released", count).Msg("Session layers released")
	}
}

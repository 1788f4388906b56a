package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kestrel-xr/kestrel/internal/observability"
	"github.com/kestrel-xr/kestrel/pkg/gateway"
	"github.com/kestrel-xr/kestrel/pkg/layers"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// Events queued ahead of the per-session forwarder draining them. The
// session goroutine blocks on a full buffer, which backpressures a device
// instead of losing its events.
const sessionEventBacklog = 32

// sessionRecord tracks one live session
type sessionRecord struct {
	session   *xr.Session
	mode      xr.SessionMode
	device    string
	createdAt time.Time
}

// deviceRecord tracks one connected simulated device
type deviceRecord struct {
	init        xr.MockDeviceInit
	control     chan<- xr.MockDeviceMsg
	fromFile    bool
	connectedAt time.Time
}

// gatewayRuntime adapts the daemon to the gateway's Runtime interface.
// Registry-backed calls resolve on the next tick of the event loop, so
// every bridged wait also honors the caller's context.
type gatewayRuntime struct {
	d *Daemon
}

func (r *gatewayRuntime) SupportsSession(ctx context.Context, mode xr.SessionMode) (bool, error) {
	result := make(chan error, 1)
	r.d.handle.SupportsSession(mode, func(err error) {
		result <- err
	})

	select {
	case err := <-result:
		if errors.Is(err, xr.ErrNoMatchingDevice) {
			return false, nil
		}
		return err == nil, err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (r *gatewayRuntime) RequestSession(ctx context.Context, mode xr.SessionMode, init xr.SessionInit) (gateway.SessionDescriptor, error) {
	type outcome struct {
		session *xr.Session
		err     error
	}
	result := make(chan outcome, 1)
	r.d.handle.RequestSession(mode, init, func(session *xr.Session, err error) {
		result <- outcome{session: session, err: err}
	})

	select {
	case out := <-result:
		if out.err != nil {
			observability.RecordSessionRequest(string(mode), false)
			return gateway.SessionDescriptor{}, out.err
		}
		record := r.d.adoptSession(out.session, mode, init)
		observability.RecordSessionRequest(string(mode), true)
		observability.RecordSessionAudit(ctx, "session_request", "gateway", "granted", map[string]interface{}{
			"session_id": uint32(out.session.ID()),
			"mode":       string(mode),
		})
		return r.d.describeSession(record), nil
	case <-ctx.Done():
		// A session granted after the caller gave up would run unsupervised;
		// end it as soon as it lands.
		go func() {
			if out := <-result; out.err == nil && out.session != nil {
				out.session.End()
			}
		}()
		return gateway.SessionDescriptor{}, ctx.Err()
	}
}

func (r *gatewayRuntime) ConnectDevice(ctx context.Context, init xr.MockDeviceInit) error {
	return r.d.connectDevice(ctx, init, false)
}

func (r *gatewayRuntime) DisconnectDevice(ctx context.Context, name string) error {
	return r.d.disconnectDevice(ctx, name)
}

func (r *gatewayRuntime) SendDeviceMessage(ctx context.Context, name string, msg xr.MockDeviceMsg) error {
	return r.d.sendDeviceMessage(ctx, name, msg)
}

func (r *gatewayRuntime) StartRenderLoop(ctx context.Context, id xr.SessionID) error {
	record, err := r.d.lookupSession(id)
	if err != nil {
		return err
	}
	record.session.StartRenderLoop()
	return nil
}

func (r *gatewayRuntime) RenderFrame(ctx context.Context, id xr.SessionID) error {
	record, err := r.d.lookupSession(id)
	if err != nil {
		return err
	}
	record.session.RenderAnimationFrame()
	return nil
}

func (r *gatewayRuntime) UpdateClipPlanes(ctx context.Context, id xr.SessionID, near, far float32) error {
	record, err := r.d.lookupSession(id)
	if err != nil {
		return err
	}
	record.session.UpdateClipPlanes(near, far)
	return nil
}

func (r *gatewayRuntime) CreateLayer(ctx context.Context, id xr.SessionID, init layers.LayerInit) (xr.LayerID, error) {
	if _, err := r.d.lookupSession(id); err != nil {
		return "", err
	}
	return r.d.layerMgr.CreateLayer(id, init)
}

func (r *gatewayRuntime) DestroyLayer(ctx context.Context, id xr.SessionID, layer xr.LayerID) error {
	if _, err := r.d.lookupSession(id); err != nil {
		return err
	}
	r.d.layerMgr.DestroyLayer(id, layer)
	return nil
}

func (r *gatewayRuntime) SetLayers(ctx context.Context, id xr.SessionID, layerIDs []xr.LayerID) error {
	record, err := r.d.lookupSession(id)
	if err != nil {
		return err
	}
	for _, layerID := range layerIDs {
		if _, ok := r.d.layerMgr.Layer(id, layerID); !ok {
			return fmt.Errorf("unknown layer %s for session %d", layerID, id)
		}
	}
	record.session.SetLayers(layerIDs)
	return nil
}

func (r *gatewayRuntime) EndSession(ctx context.Context, id xr.SessionID) error {
	record, err := r.d.lookupSession(id)
	if err != nil {
		return err
	}
	record.session.End()
	observability.RecordSessionAudit(ctx, "session_end", "gateway", "requested", map[string]interface{}{
		"session_id": uint32(id),
	})
	return nil
}

func (r *gatewayRuntime) SessionInfo(ctx context.Context, id xr.SessionID) (gateway.SessionDescriptor, error) {
	record, err := r.d.lookupSession(id)
	if err != nil {
		return gateway.SessionDescriptor{}, err
	}
	return r.d.describeSession(record), nil
}

func (r *gatewayRuntime) SubscribeFrames(id xr.SessionID, buffer int) (<-chan xr.Frame, func(), error) {
	if _, err := r.d.lookupSession(id); err != nil {
		return nil, nil, err
	}
	ch, cancel := r.d.hub.SubscribeFrames(id, buffer)
	return ch, cancel, nil
}

func (r *gatewayRuntime) SubscribeEvents(id xr.SessionID, buffer int) (<-chan xr.Event, func(), error) {
	if _, err := r.d.lookupSession(id); err != nil {
		return nil, nil, err
	}
	ch, cancel := r.d.hub.SubscribeEvents(id, buffer)
	return ch, cancel, nil
}

func (r *gatewayRuntime) Status(ctx context.Context) gateway.RuntimeStatus {
	status := r.d.Status()
	delivered, dropped, forwarded := r.d.hub.Counters()

	return gateway.RuntimeStatus{
		Running:         status.Running,
		StartedAt:       status.StartTime,
		Uptime:          status.Uptime.Round(time.Second).String(),
		TickInterval:    r.d.tickInterval.String(),
		ActiveSessions:  r.d.activeSessionCount(),
		Devices:         r.d.deviceNames(),
		FramesDelivered: delivered,
		FramesDropped:   dropped,
		EventsForwarded: forwarded,
	}
}

// connectDevice plugs a simulated device into the registry and records it
// under its name. Connects are serialized so racing calls cannot claim the
// same name.
func (d *Daemon) connectDevice(ctx context.Context, init xr.MockDeviceInit, fromFile bool) error {
	if init.Name == "" {
		return fmt.Errorf("device name is required")
	}

	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	if d.deviceConnected(init.Name) {
		return fmt.Errorf("device %q is already connected", init.Name)
	}

	type outcome struct {
		control chan<- xr.MockDeviceMsg
		err     error
	}
	result := make(chan outcome, 1)
	d.handle.SimulateDeviceConnection(init, func(control chan<- xr.MockDeviceMsg, err error) {
		result <- outcome{control: control, err: err}
	})

	select {
	case out := <-result:
		if out.err != nil {
			observability.RecordDeviceAudit(ctx, init.Name, "device_connect", "failed", nil)
			return out.err
		}

		d.deviceMu.Lock()
		d.devices[init.Name] = &deviceRecord{
			init:        init,
			control:     out.control,
			fromFile:    fromFile,
			connectedAt: time.Now(),
		}
		// Newest first, matching the registry's dispatch priority.
		d.deviceOrder = append([]string{init.Name}, d.deviceOrder...)
		d.deviceMu.Unlock()

		observability.RecordDeviceAudit(ctx, init.Name, "device_connect", "connected", map[string]interface{}{
			"inline": init.SupportsInline,
			"vr":     init.SupportsVR,
			"ar":     init.SupportsAR,
		})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// disconnectDevice sends a disconnect to the device and waits for its ack
// before freeing the name.
func (d *Daemon) disconnectDevice(ctx context.Context, name string) error {
	d.deviceMu.RLock()
	record, ok := d.devices[name]
	d.deviceMu.RUnlock()
	if !ok {
		return gateway.ErrDeviceNotFound
	}

	ack := make(chan struct{})
	msg := xr.MockDeviceMsg{Kind: xr.MockMsgDisconnect, Disconnected: ack}

	select {
	case record.control <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.deviceMu.Lock()
	delete(d.devices, name)
	for i, n := range d.deviceOrder {
		if n == name {
			d.deviceOrder = append(d.deviceOrder[:i], d.deviceOrder[i+1:]...)
			break
		}
	}
	d.deviceMu.Unlock()

	observability.RecordDeviceAudit(ctx, name, "device_disconnect", "disconnected", nil)
	return nil
}

// sendDeviceMessage delivers a control message to a named device.
// Disconnects are routed through disconnectDevice so the device table stays
// accurate no matter which surface asked.
func (d *Daemon) sendDeviceMessage(ctx context.Context, name string, msg xr.MockDeviceMsg) error {
	if msg.Kind == xr.MockMsgDisconnect {
		return d.disconnectDevice(ctx, name)
	}

	d.deviceMu.RLock()
	record, ok := d.devices[name]
	d.deviceMu.RUnlock()
	if !ok {
		return gateway.ErrDeviceNotFound
	}

	select {
	case record.control <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Daemon) lookupSession(id xr.SessionID) (*sessionRecord, error) {
	d.sessionMu.RLock()
	defer d.sessionMu.RUnlock()
	record, ok := d.sessionTable[id]
	if !ok {
		return nil, gateway.ErrSessionNotFound
	}
	return record, nil
}

// adoptSession records a freshly granted session and starts its event
// forwarder.
func (d *Daemon) adoptSession(session *xr.Session, mode xr.SessionMode, init xr.SessionInit) *sessionRecord {
	record := &sessionRecord{
		session:   session,
		mode:      mode,
		device:    d.attributeDevice(mode, init),
		createdAt: time.Now(),
	}

	events := make(chan xr.Event, sessionEventBacklog)
	session.SetEventDest(events)

	d.sessionMu.Lock()
	d.sessionTable[session.ID()] = record
	active := len(d.sessionTable)
	d.sessionMu.Unlock()
	observability.SetActiveSessions(active)

	d.wg.Add(1)
	go d.forwardSessionEvents(session.ID(), events)

	return record
}

// forwardSessionEvents relays one session's device events into the hub. It
// owns the hub-side teardown: the final session-end event is published
// before subscriber channels close, so no subscriber misses it.
func (d *Daemon) forwardSessionEvents(id xr.SessionID, events <-chan xr.Event) {
	defer d.wg.Done()
	for {
		select {
		case evt := <-events:
			d.hub.PublishEvent(id, evt)
			if evt.Kind == xr.EventSessionEnd {
				d.hub.CloseSession(id)
				return
			}
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Daemon) describeSession(record *sessionRecord) gateway.SessionDescriptor {
	desc := gateway.SessionDescriptor{
		ID:                   uint32(record.session.ID()),
		Mode:                 record.mode,
		Device:               record.device,
		GrantedFeatures:      record.session.GrantedFeatures(),
		EnvironmentBlendMode: string(record.session.EnvironmentBlendMode()),
		FloorTransform:       record.session.FloorTransform(),
		Views:                record.session.Views(),
		InitialInputs:        record.session.InitialInputs(),
		CreatedAt:            record.createdAt,
	}
	if size, ok := record.session.RecommendedFramebufferResolution(); ok {
		desc.FramebufferSize = &size
	}
	return desc
}

// attributeDevice names the device that granted a session by replaying the
// registry's first-match rule over the connected fleet: newest connect
// first, mode support, then feature negotiation.
func (d *Daemon) attributeDevice(mode xr.SessionMode, init xr.SessionInit) string {
	d.deviceMu.RLock()
	defer d.deviceMu.RUnlock()
	for _, name := range d.deviceOrder {
		record := d.devices[name]
		if !deviceSupportsMode(record.init, mode) {
			continue
		}
		if _, err := init.Validate(mode, record.init.SupportedFeatures); err != nil {
			continue
		}
		return name
	}
	return ""
}

func deviceSupportsMode(init xr.MockDeviceInit, mode xr.SessionMode) bool {
	switch mode {
	case xr.ModeInline:
		return init.SupportsInline
	case xr.ModeImmersiveVR:
		return init.SupportsVR
	case xr.ModeImmersiveAR:
		return init.SupportsAR
	}
	return false
}

func (d *Daemon) deviceConnected(name string) bool {
	d.deviceMu.RLock()
	defer d.deviceMu.RUnlock()
	_, ok := d.devices[name]
	return ok
}

// deviceNames returns connected device names in dispatch priority order.
func (d *Daemon) deviceNames() []string {
	d.deviceMu.RLock()
	defer d.deviceMu.RUnlock()
	return append([]string(nil), d.deviceOrder...)
}

func (d *Daemon) activeSessionCount() int {
	d.sessionMu.RLock()
	defer d.sessionMu.RUnlock()
	return len(d.sessionTable)
}

func (d *Daemon) snapshotSessions() []*sessionRecord {
	d.sessionMu.RLock()
	defer d.sessionMu.RUnlock()
	records := make([]*sessionRecord, 0, len(d.sessionTable))
	for _, record := range d.sessionTable {
		records = append(records, record)
	}
	return records
}

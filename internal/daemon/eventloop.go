package daemon

import (
	"context"
	"time"

	"github.com/kestrel-xr/kestrel/internal/observability"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// EventLoop owns the registry's main thread. Every tick drains queued
// registry requests, steps resident sessions, and sweeps out sessions
// whose threads have exited. All registry state is confined to the
// goroutine running this loop.
type EventLoop struct {
	daemon *Daemon
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon: d,
	}
}

// Run runs the tick loop until the context is canceled
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().
		Dur("interval", e.daemon.tickInterval).
		Msg("Event loop started")

	ticker := time.NewTicker(e.daemon.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.tick()
		}
	}
}

// tick is one registry step plus housekeeping
func (e *EventLoop) tick() {
	started := time.Now()
	e.daemon.registry.RunOneFrame()
	observability.RecordTick(time.Since(started))

	observability.SetDiscoveries(e.daemon.registry.DiscoveryCount())

	e.daemon.sweepEndedSessions()
}

// sweepEndedSessions drops table entries for sessions whose threads have
// exited, through End or frame exhaustion, and releases their layers. Hub
// teardown belongs to the event forwarder, which sees the session-end
// event.
func (d *Daemon) sweepEndedSessions() {
	var ended []*sessionRecord

	d.sessionMu.Lock()
	for id, record := range d.sessionTable {
		if record.session.Ended() {
			delete(d.sessionTable, id)
			ended = append(ended, record)
		}
	}
	active := len(d.sessionTable)
	d.sessionMu.Unlock()

	if len(ended) == 0 {
		return
	}
	observability.SetActiveSessions(active)

	for _, record := range ended {
		id := record.session.ID()
		d.layerMgr.DestroySession(id)
		observability.RecordSessionAudit(context.Background(), "session_end", "runtime", "completed", map[string]interface{}{
			"session_id": uint32(id),
			"mode":       string(record.mode),
		})
		d.logger.Info().
			Uint32("session_id", uint32(id)).
			Str("mode", string(record.mode)).
			Msg("Session ended")
	}
}

// pumpFrames drains the registry's frame channel into the hub until the
// daemon stops.
func (d *Daemon) pumpFrames() {
	defer d.wg.Done()
	for {
		select {
		case frame := <-d.frames:
			d.hub.PublishFrame(frame)
		case <-d.ctx.Done():
			return
		}
	}
}

// dispatchScenario delivers one scheduled control message. Runs on cron
// goroutines.
func (d *Daemon) dispatchScenario(device string, msg xr.MockDeviceMsg) {
	ctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
	defer cancel()

	if err := d.sendDeviceMessage(ctx, device, msg); err != nil {
		d.logger.Warn().
			Err(err).
			Str("device", device).
			Str("kind", string(msg.Kind)).
			Msg("Scenario dispatch failed")
		return
	}

	d.logger.Debug().
		Str("device", device).
		Str("kind", string(msg.Kind)).
		Msg("Scenario message dispatched")
}

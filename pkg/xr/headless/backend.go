// Package headless provides a simulated XR backend. Devices are configured
// through xr.MockDeviceInit, driven at runtime over the mock control
// channel, and synthesize frames on demand without any platform runtime.
package headless

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// Backend implements xr.MockDiscovery. One Backend can simulate any number
// of devices; each simulated connection gets its own state and control
// loop.
type Backend struct {
	// FrameDelay throttles WaitForAnimationFrame to roughly emulate a
	// display refresh. Zero means frames are purely request-paced.
	FrameDelay time.Duration
}

// NewBackend returns a Backend with request-paced frames.
func NewBackend() *Backend {
	return &Backend{}
}

// SimulateDeviceConnection builds a discovery around a new simulated device
// and starts consuming its control channel.
func (b *Backend) SimulateDeviceConnection(init xr.MockDeviceInit, control <-chan xr.MockDeviceMsg) (xr.Discovery, error) {
	if !init.SupportsInline && !init.SupportsVR && !init.SupportsAR {
		return nil, &xr.BackendError{Detail: "simulated device supports no session mode"}
	}

	sim := newSimulator(init, b.FrameDelay)
	go sim.run(control)

	log.Debug().Str("device", init.Name).Msg("Simulated device attached")
	return &discovery{sim: sim}, nil
}

// discovery hands out sessions backed by one simulated device.
type discovery struct {
	sim *simulator
}

func (d *discovery) SupportsSession(mode xr.SessionMode) bool {
	return d.sim.supportsMode(mode) && !d.sim.isDisconnected()
}

func (d *discovery) RequestSession(mode xr.SessionMode, init xr.SessionInit, builder *xr.SessionBuilder) (*xr.Session, error) {
	if !d.SupportsSession(mode) {
		return nil, xr.ErrNoMatchingDevice
	}
	granted, err := init.Validate(mode, d.sim.supportedFeatures())
	if err != nil {
		return nil, err
	}
	return builder.Spawn(func() (xr.Device, error) {
		return d.sim.newDevice(mode, granted), nil
	})
}

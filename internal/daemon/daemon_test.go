package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-xr/kestrel/internal/config"
	"github.com/kestrel-xr/kestrel/internal/logger"
	"github.com/kestrel-xr/kestrel/pkg/gateway"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// createTestDaemon creates a daemon for testing with the gateway disabled
func createTestDaemon(t *testing.T) (*Daemon, *logger.Logger) {
	return createTestDaemonWithConfig(t, func(*config.Config) {})
}

func createTestDaemonWithConfig(t *testing.T, mutate func(*config.Config)) (*Daemon, *logger.Logger) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Gateway.Enabled = false // No port binding in tests
	cfg.Devices.File = ""
	cfg.Runtime.TickIntervalMS = 1
	cfg.Runtime.FrameDelayMS = 1
	mutate(cfg)

	logCfg := logger.Config{
		Level:   "error",
		Console: false,
	}
	log, err := logger.New(logCfg)
	require.NoError(t, err)

	daemon, err := New(cfg, log)
	require.NoError(t, err)

	return daemon, log
}

func testDeviceInit(name string) xr.MockDeviceInit {
	return xr.MockDeviceInit{
		Name:              name,
		SupportsInline:    true,
		SupportsVR:        true,
		SupportedFeatures: []string{"local-floor", "bounded-floor"},
	}
}

func writeDeviceFile(t *testing.T, path string, file DeviceFile) {
	t.Helper()
	data, err := json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// waitForEvent drains events until it sees the wanted kind.
func waitForEvent(t *testing.T, events <-chan xr.Event, kind xr.EventKind) xr.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt, open := <-events:
			if !open {
				t.Fatalf("event feed closed before %s arrived", kind)
			}
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestNew(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	assert.NotNil(t, daemon)
	assert.NotNil(t, daemon.registry)
	assert.NotNil(t, daemon.hub)
	assert.NotNil(t, daemon.layerMgr)
	assert.NotNil(t, daemon.scheduler)
	assert.NotNil(t, daemon.eventLoop)
	assert.NotNil(t, daemon.lifecycle)
	assert.Nil(t, daemon.gatewayServer)
}

func TestDaemonStartStop(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	err := daemon.Start()
	require.NoError(t, err)

	status := daemon.Status()
	assert.True(t, status.Running)
	assert.False(t, status.StartTime.IsZero())

	// Second start must fail
	assert.Error(t, daemon.Start())

	err = daemon.Stop()
	require.NoError(t, err)

	status = daemon.Status()
	assert.False(t, status.Running)

	// Second stop must fail
	assert.Error(t, daemon.Stop())
}

func TestDaemonStatus(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	// Status before start
	status := daemon.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)

	err := daemon.Start()
	require.NoError(t, err)
	defer daemon.Stop()

	// Status after start
	time.Sleep(20 * time.Millisecond)
	status = daemon.Status()
	assert.True(t, status.Running)
	assert.Greater(t, status.Uptime, time.Duration(0))
}

func TestDaemonGetters(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	assert.NotNil(t, daemon.GetConfig())
	assert.NotNil(t, daemon.GetLogger())
	assert.NotNil(t, daemon.GetLifecycle())
	assert.NotNil(t, daemon.Runtime())
	assert.Nil(t, daemon.GetGatewayServer())
}

func TestDaemonStartWithDeviceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	writeDeviceFile(t, path, DeviceFile{
		Devices: []xr.MockDeviceInit{testDeviceInit("from-file")},
	})

	daemon, log := createTestDaemonWithConfig(t, func(cfg *config.Config) {
		cfg.Devices.File = path
		cfg.Devices.Watch = false
	})
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	assert.True(t, daemon.deviceConnected("from-file"))
	assert.Equal(t, []string{"from-file"}, daemon.deviceNames())
}

func TestDaemonStartFailsOnBadDeviceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"devices":[{"name":""}]}`), 0644))

	daemon, log := createTestDaemonWithConfig(t, func(cfg *config.Config) {
		cfg.Devices.File = path
		cfg.Devices.Watch = false
	})
	defer log.Close()
	t.Cleanup(func() { _ = daemon.Stop() })

	require.Error(t, daemon.Start())
}

func TestDaemonDeviceFileReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	writeDeviceFile(t, path, DeviceFile{
		Devices: []xr.MockDeviceInit{testDeviceInit("alpha")},
	})

	daemon, log := createTestDaemonWithConfig(t, func(cfg *config.Config) {
		cfg.Devices.File = path
		cfg.Devices.Watch = false
	})
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	require.True(t, daemon.deviceConnected("alpha"))

	// Devices removed from the file disconnect, new ones connect
	writeDeviceFile(t, path, DeviceFile{
		Devices: []xr.MockDeviceInit{testDeviceInit("beta")},
	})
	daemon.reloadDeviceFile()

	assert.False(t, daemon.deviceConnected("alpha"))
	assert.True(t, daemon.deviceConnected("beta"))

	// A broken file keeps the current fleet
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	daemon.reloadDeviceFile()
	assert.True(t, daemon.deviceConnected("beta"))
}

func TestDaemonSessionFlow(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	rt := daemon.Runtime()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := rt.SupportsSession(ctx, xr.ModeImmersiveVR)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("headset-1")))

	ok, err = rt.SupportsSession(ctx, xr.ModeImmersiveVR)
	require.NoError(t, err)
	assert.True(t, ok)

	desc, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{
		RequiredFeatures: []string{"local-floor"},
	})
	require.NoError(t, err)
	assert.NotZero(t, desc.ID)
	assert.Equal(t, xr.ModeImmersiveVR, desc.Mode)
	assert.Equal(t, "headset-1", desc.Device)
	assert.Contains(t, desc.GrantedFeatures, "local-floor")
	require.NotNil(t, desc.FramebufferSize)

	id := xr.SessionID(desc.ID)

	frames, cancelFrames, err := rt.SubscribeFrames(id, 8)
	require.NoError(t, err)
	defer cancelFrames()

	events, cancelEvents, err := rt.SubscribeEvents(id, 8)
	require.NoError(t, err)
	defer cancelEvents()

	require.NoError(t, rt.StartRenderLoop(ctx, id))
	select {
	case frame := <-frames:
		assert.Equal(t, id, frame.SessionID)
		assert.NotZero(t, frame.TimeNS)
		assert.NotZero(t, frame.SentNS)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame after starting the render loop")
	}

	// Each render acknowledgement paces exactly one more frame
	require.NoError(t, rt.RenderFrame(ctx, id))
	select {
	case frame := <-frames:
		assert.Equal(t, id, frame.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame after render acknowledgement")
	}

	require.NoError(t, rt.EndSession(ctx, id))
	waitForEvent(t, events, xr.EventSessionEnd)

	require.Eventually(t, func() bool {
		return daemon.activeSessionCount() == 0
	}, 2*time.Second, 5*time.Millisecond)

	_, err = rt.SessionInfo(ctx, id)
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)
}

package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-xr/kestrel/pkg/gateway"
	"github.com/kestrel-xr/kestrel/pkg/layers"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// startedTestDaemon starts a daemon and hands back its runtime surface.
func startedTestDaemon(t *testing.T) (*Daemon, gateway.Runtime, context.Context) {
	t.Helper()

	daemon, log := createTestDaemon(t)
	t.Cleanup(func() { log.Close() })

	require.NoError(t, daemon.Start())
	t.Cleanup(func() { _ = daemon.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return daemon, daemon.Runtime(), ctx
}

func TestRuntimeRequestSessionWithoutDevices(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	_, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{})
	assert.ErrorIs(t, err, xr.ErrNoMatchingDevice)
}

func TestRuntimeRequestSessionFeatureDenied(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	require.NoError(t, rt.ConnectDevice(ctx, xr.MockDeviceInit{
		Name:              "bare",
		SupportsVR:        true,
		SupportedFeatures: []string{"local-floor"},
	}))

	_, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{
		RequiredFeatures: []string{"hand-tracking"},
	})
	require.Error(t, err)

	// Optional features are dropped instead of failing the request
	desc, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{
		OptionalFeatures: []string{"hand-tracking", "local-floor"},
	})
	require.NoError(t, err)
	assert.NotContains(t, desc.GrantedFeatures, "hand-tracking")
	assert.Contains(t, desc.GrantedFeatures, "local-floor")
}

func TestRuntimeConnectDeviceValidation(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	// Name is required
	assert.Error(t, rt.ConnectDevice(ctx, xr.MockDeviceInit{SupportsVR: true}))

	// Modeless devices are refused by the backend
	assert.Error(t, rt.ConnectDevice(ctx, xr.MockDeviceInit{Name: "modeless"}))

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("dup")))
	assert.Error(t, rt.ConnectDevice(ctx, testDeviceInit("dup")))
}

func TestRuntimeDisconnectDevice(t *testing.T) {
	daemon, rt, ctx := startedTestDaemon(t)

	assert.ErrorIs(t, rt.DisconnectDevice(ctx, "ghost"), gateway.ErrDeviceNotFound)

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("transient")))
	ok, err := rt.SupportsSession(ctx, xr.ModeImmersiveVR)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, rt.DisconnectDevice(ctx, "transient"))
	assert.False(t, daemon.deviceConnected("transient"))

	// A disconnected device no longer grants sessions
	ok, err = rt.SupportsSession(ctx, xr.ModeImmersiveVR)
	require.NoError(t, err)
	assert.False(t, ok)

	// The freed name can be reused
	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("transient")))
}

func TestRuntimeDeviceMessageRouting(t *testing.T) {
	daemon, rt, ctx := startedTestDaemon(t)

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("routed")))

	// A disconnect sent as a plain message still updates the device table
	require.NoError(t, rt.SendDeviceMessage(ctx, "routed", xr.MockDeviceMsg{Kind: xr.MockMsgDisconnect}))
	assert.False(t, daemon.deviceConnected("routed"))

	err := rt.SendDeviceMessage(ctx, "routed", xr.MockDeviceMsg{Kind: xr.MockMsgVisibilityChange})
	assert.ErrorIs(t, err, gateway.ErrDeviceNotFound)
}

func TestRuntimeDeviceEventsReachSubscribers(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("vis")))
	desc, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{})
	require.NoError(t, err)
	id := xr.SessionID(desc.ID)

	events, cancelEvents, err := rt.SubscribeEvents(id, 8)
	require.NoError(t, err)
	defer cancelEvents()

	require.NoError(t, rt.SendDeviceMessage(ctx, "vis", xr.MockDeviceMsg{
		Kind:       xr.MockMsgVisibilityChange,
		Visibility: xr.VisibilityHidden,
	}))
	evt := waitForEvent(t, events, xr.EventVisibilityChange)
	assert.Equal(t, xr.VisibilityHidden, evt.Visibility)

	input := &xr.InputSource{ID: 4, Handedness: xr.HandRight, TargetRayMode: xr.TargetRayTrackedPointer}
	require.NoError(t, rt.SendDeviceMessage(ctx, "vis", xr.MockDeviceMsg{
		Kind:  xr.MockMsgAddInputSource,
		Input: input,
	}))
	evt = waitForEvent(t, events, xr.EventInputAdded)
	require.NotNil(t, evt.Input)
	assert.Equal(t, xr.InputID(4), evt.Input.ID)
}

func TestRuntimeLayers(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("layered")))
	desc, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{})
	require.NoError(t, err)
	id := xr.SessionID(desc.ID)

	layerID, err := rt.CreateLayer(ctx, id, layers.LayerInit{
		Size:  xr.Size{Width: 1024, Height: 1024},
		Alpha: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, layerID)

	require.NoError(t, rt.SetLayers(ctx, id, []xr.LayerID{layerID}))

	// Layers must exist before a session may present them
	assert.Error(t, rt.SetLayers(ctx, id, []xr.LayerID{"no-such-layer"}))

	require.NoError(t, rt.DestroyLayer(ctx, id, layerID))

	// Layer calls on unknown sessions fail
	_, err = rt.CreateLayer(ctx, xr.SessionID(9999), layers.LayerInit{})
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)
	assert.ErrorIs(t, rt.SetLayers(ctx, xr.SessionID(9999), nil), gateway.ErrSessionNotFound)
}

func TestRuntimeDeviceAttribution(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	require.NoError(t, rt.ConnectDevice(ctx, xr.MockDeviceInit{Name: "vr-only", SupportsVR: true}))
	require.NoError(t, rt.ConnectDevice(ctx, xr.MockDeviceInit{Name: "ar-only", SupportsAR: true}))

	desc, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{})
	require.NoError(t, err)
	assert.Equal(t, "vr-only", desc.Device)

	desc, err = rt.RequestSession(ctx, xr.ModeImmersiveAR, xr.SessionInit{})
	require.NoError(t, err)
	assert.Equal(t, "ar-only", desc.Device)
	assert.Equal(t, "alpha-blend", desc.EnvironmentBlendMode)
}

func TestRuntimeSessionInfo(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	_, err := rt.SessionInfo(ctx, xr.SessionID(1))
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("describe")))
	desc, err := rt.RequestSession(ctx, xr.ModeInline, xr.SessionInit{})
	require.NoError(t, err)

	info, err := rt.SessionInfo(ctx, xr.SessionID(desc.ID))
	require.NoError(t, err)
	assert.Equal(t, desc.ID, info.ID)
	assert.Equal(t, xr.ModeInline, info.Mode)
	assert.False(t, info.CreatedAt.IsZero())

	// Inline sessions render into the page and have no framebuffer
	assert.Nil(t, info.FramebufferSize)
	assert.Equal(t, "opaque", info.EnvironmentBlendMode)
}

func TestRuntimeStatus(t *testing.T) {
	_, rt, ctx := startedTestDaemon(t)

	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("status-a")))
	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("status-b")))

	status := rt.Status(ctx)
	assert.True(t, status.Running)
	assert.False(t, status.StartedAt.IsZero())
	assert.Equal(t, []string{"status-b", "status-a"}, status.Devices)
	assert.Zero(t, status.ActiveSessions)

	desc, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{})
	require.NoError(t, err)

	status = rt.Status(ctx)
	assert.Equal(t, 1, status.ActiveSessions)

	require.NoError(t, rt.EndSession(ctx, xr.SessionID(desc.ID)))
}

func TestRuntimeRequestSessionHonorsContext(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	// No event loop is running, so the bridge can only resolve through ctx
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := daemon.Runtime().RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{})
	assert.ErrorIs(t, err, context.Canceled)
}

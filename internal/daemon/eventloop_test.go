package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

func TestNewEventLoop(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	eventLoop := NewEventLoop(daemon)
	assert.NotNil(t, eventLoop)
	assert.Equal(t, daemon, eventLoop.daemon)
}

func TestEventLoopRun(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	eventLoop := NewEventLoop(daemon)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		eventLoop.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		// Event loop stopped on context cancellation
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Event loop did not stop in time")
	}
}

func TestEventLoopResolvesRegistryRequests(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	// A bridged call only resolves once the loop ticks the registry
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, daemon.connectDevice(ctx, testDeviceInit("ticker"), false))
	assert.True(t, daemon.deviceConnected("ticker"))
	assert.Equal(t, 1, daemon.registry.DiscoveryCount())
}

func TestSweepRemovesEndedSessions(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rt := daemon.Runtime()
	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("sweep-target")))

	desc, err := rt.RequestSession(ctx, xr.ModeInline, xr.SessionInit{})
	require.NoError(t, err)
	id := xr.SessionID(desc.ID)

	_, err = rt.SessionInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, daemon.activeSessionCount())

	require.NoError(t, rt.EndSession(ctx, id))

	require.Eventually(t, func() bool {
		return daemon.activeSessionCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatchScenarioUnknownDevice(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	// Logs a warning and keeps running
	daemon.dispatchScenario("ghost", xr.MockDeviceMsg{
		Kind:       xr.MockMsgVisibilityChange,
		Visibility: xr.VisibilityHidden,
	})
	assert.True(t, daemon.Status().Running)
}

func TestDispatchScenarioDeliversMessage(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rt := daemon.Runtime()
	require.NoError(t, rt.ConnectDevice(ctx, testDeviceInit("scripted")))

	desc, err := rt.RequestSession(ctx, xr.ModeImmersiveVR, xr.SessionInit{})
	require.NoError(t, err)

	events, cancelEvents, err := rt.SubscribeEvents(xr.SessionID(desc.ID), 8)
	require.NoError(t, err)
	defer cancelEvents()

	daemon.dispatchScenario("scripted", xr.MockDeviceMsg{
		Kind:       xr.MockMsgVisibilityChange,
		Visibility: xr.VisibilityVisibleBlurred,
	})

	evt := waitForEvent(t, events, xr.EventVisibilityChange)
	assert.Equal(t, xr.VisibilityVisibleBlurred, evt.Visibility)
}

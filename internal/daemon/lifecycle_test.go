package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleManager(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(daemon)
	assert.NotNil(t, lm)
	assert.Equal(t, daemon, lm.daemon)
	assert.Equal(t, filepath.Join(daemon.config.DataDir, "kestrel.pid"), lm.pidFile)
}

func TestLifecycleManagerStartStop(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(daemon)

	err := lm.Start()
	require.NoError(t, err)

	// Verify PID file exists
	_, err = os.Stat(lm.pidFile)
	assert.NoError(t, err)

	err = lm.Stop()
	require.NoError(t, err)

	// Verify PID file is removed
	_, err = os.Stat(lm.pidFile)
	assert.True(t, os.IsNotExist(err))

	// Stopping again is fine, the file is already gone
	assert.NoError(t, lm.Stop())
}

func TestLifecycleManagerGetPID(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(daemon)

	// No PID file yet
	_, err := lm.GetPID()
	assert.Error(t, err)

	err = lm.Start()
	require.NoError(t, err)
	defer lm.Stop()

	pid, err := lm.GetPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestLifecycleManagerGetPIDRejectsGarbage(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(daemon)
	require.NoError(t, os.WriteFile(lm.pidFile, []byte("not-a-pid"), 0644))

	_, err := lm.GetPID()
	assert.Error(t, err)
}

func TestLifecycleManagerIsRunning(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	lm := NewLifecycleManager(daemon)

	// No PID file
	assert.False(t, lm.IsRunning())

	// Our own PID is alive
	require.NoError(t, lm.Start())
	defer lm.Stop()
	assert.True(t, lm.IsRunning())

	// A PID that cannot exist is not
	require.NoError(t, os.WriteFile(lm.pidFile, []byte(strconv.Itoa(1<<22+1)), 0644))
	assert.False(t, lm.IsRunning())
}

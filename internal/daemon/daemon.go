package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/kestrel-xr/kestrel/internal/config"
	"github.com/kestrel-xr/kestrel/internal/logger"
	"github.com/kestrel-xr/kestrel/internal/observability"
	"github.com/kestrel-xr/kestrel/internal/tracing"
	"github.com/kestrel-xr/kestrel/pkg/gateway"
	"github.com/kestrel-xr/kestrel/pkg/layers"
	"github.com/kestrel-xr/kestrel/pkg/xr"
	"github.com/kestrel-xr/kestrel/pkg/xr/headless"
)

// Frames queued between the registry pump and the hub.
const frameBacklog = 128

// Period of the gateway's lifecycle keepalive broadcast.
const gatewayTickInterval = 5 * time.Second

// Bound on device file loads and the connects they trigger.
const deviceLoadTimeout = 10 * time.Second

// Daemon is the Kestrel simulator runtime: the registry event loop, the
// simulated device fleet, and the gateway that exposes both.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// XR runtime
	frames   chan xr.Frame
	registry *xr.MainThreadRegistry
	handle   xr.Registry
	layerMgr *layers.SoftwareManager
	hub      *sessionHub

	sessionMu    sync.RWMutex
	sessionTable map[xr.SessionID]*sessionRecord

	deviceMu    sync.RWMutex
	devices     map[string]*deviceRecord
	deviceOrder []string
	connectMu   sync.Mutex

	// Device file plumbing
	deviceLoader *DeviceLoader
	scheduler    *ScenarioScheduler
	watcher      *DeviceWatcher

	// Services
	gatewayServer *gateway.Server

	// Internal
	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tickInterval time.Duration
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()

	tick := time.Duration(cfg.Runtime.TickIntervalMS) * time.Millisecond
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}

	d := &Daemon{
		config:       cfg,
		logger:       log,
		ctx:          ctx,
		cancel:       cancel,
		tickInterval: tick,
		hub:          newSessionHub(),
		sessionTable: make(map[xr.SessionID]*sessionRecord),
		devices:      make(map[string]*deviceRecord),
	}

	if err := d.initializeRuntime(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Create internal components
	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initializeRuntime builds the registry, the headless backend, and the
// pieces that feed them
func (d *Daemon) initializeRuntime() error {
	// Initialize audit logger
	if d.config.DataDir != "" {
		auditPath := filepath.Join(d.config.DataDir, "audit.log")
		if err := observability.InitAuditLogger(auditPath); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
		} else {
			d.logger.Info().Str("path", auditPath).Msg("Audit logger initialized")
		}
	}

	d.frames = make(chan xr.Frame, frameBacklog)
	d.registry = xr.NewMainThreadRegistry(d.frames)
	d.registry.SetPumpObserver(observability.PumpObserver())
	d.handle = d.registry.Registry()
	d.logger.Info().Msg("Session registry initialized")

	backend := headless.NewBackend()
	backend.FrameDelay = time.Duration(d.config.Runtime.FrameDelayMS) * time.Millisecond
	d.registry.RegisterMock(backend)
	d.logger.Info().
		Dur("frame_delay", backend.FrameDelay).
		Msg("Headless backend registered")

	d.layerMgr = layers.NewSoftwareManager()
	d.logger.Info().Msg("Layer manager initialized")

	d.deviceLoader = NewDeviceLoader(d.logger.GetZerolog())

	d.scheduler = NewScenarioScheduler(d.dispatchScenario, d.logger.GetZerolog())
	d.logger.Info().Msg("Scenario scheduler initialized")

	return nil
}

// initializeServices builds the gateway server
func (d *Daemon) initializeServices() error {
	if !d.config.Gateway.Enabled {
		d.logger.Info().Msg("Gateway disabled")
		return nil
	}

	secret := d.config.Gateway.SharedSecret
	if secret == "" {
		generated, err := gonanoid.New(32)
		if err != nil {
			return fmt.Errorf("failed to generate gateway secret: %w", err)
		}
		secret = generated
		d.logger.Info().Str("shared_secret", secret).Msg("Generated ephemeral gateway secret")
	}

	gatewayServer, err := gateway.NewServer(gateway.Config{
		Host:         d.config.Gateway.Host,
		Port:         d.config.Gateway.Port,
		SharedSecret: secret,
		TickInterval: gatewayTickInterval,
		Runtime:      &gatewayRuntime{d: d},
		Logger:       d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = gatewayServer
	d.logger.Info().Int("port", d.config.Gateway.Port).Msg("Gateway server initialized")

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting Kestrel daemon")

	// Start lifecycle manager
	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	// The event loop comes up before anything that talks to the registry:
	// queued requests resolve only when it ticks.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	d.wg.Add(1)
	go d.pumpFrames()

	// Connect the configured device fleet
	if d.config.Devices.File != "" {
		if err := d.loadDeviceFile(); err != nil {
			return fmt.Errorf("failed to load device file: %w", err)
		}

		if d.config.Devices.Watch {
			if err := d.startDeviceWatcher(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start device watcher, hot-reload disabled")
			}
		}
	}

	// Start gateway server
	if d.gatewayServer != nil {
		if err := d.gatewayServer.Start(); err != nil {
			return fmt.Errorf("failed to start gateway server: %w", err)
		}
		logger.Info().Msg("Gateway server started")
	}

	logger.Info().Msg("Daemon started successfully")

	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping Kestrel daemon")

	// Stop the device watcher
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop device watcher")
		}
	}

	// Stop the scenario scheduler
	if d.scheduler != nil {
		d.scheduler.Stop()
	}

	// Stop gateway server
	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	// End live sessions so their goroutines exit
	for _, record := range d.snapshotSessions() {
		record.session.End()
	}

	// Cancel context
	d.cancel()

	// Wait for goroutines to finish (with timeout)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All goroutines stopped")
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	// Stop lifecycle manager
	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	// Close audit logger
	if err := observability.GetAuditLogger().Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close audit logger")
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// loadDeviceFile loads the configured device file and applies it
func (d *Daemon) loadDeviceFile() error {
	ctx, cancel := context.WithTimeout(d.ctx, deviceLoadTimeout)
	defer cancel()

	file, err := d.deviceLoader.Load(d.config.Devices.File)
	if err != nil {
		return err
	}

	return d.applyDeviceFile(ctx, file)
}

// applyDeviceFile reconciles the connected fleet with a device file:
// missing devices connect, file-sourced devices no longer listed
// disconnect, and the scenario schedule is replaced.
func (d *Daemon) applyDeviceFile(ctx context.Context, file *DeviceFile) error {
	inFile := make(map[string]bool, len(file.Devices))
	connected := 0
	for _, init := range file.Devices {
		inFile[init.Name] = true
		if d.deviceConnected(init.Name) {
			continue
		}
		if err := d.connectDevice(ctx, init, true); err != nil {
			return fmt.Errorf("failed to connect device %s: %w", init.Name, err)
		}
		connected++
	}

	removed := 0
	for _, record := range d.fileDevices() {
		if inFile[record.init.Name] {
			continue
		}
		if err := d.disconnectDevice(ctx, record.init.Name); err != nil {
			d.logger.Warn().Err(err).Str("device", record.init.Name).Msg("Device disconnect failed")
			continue
		}
		removed++
	}

	if err := d.scheduler.Reload(file.Scenarios); err != nil {
		return err
	}

	d.logger.Info().
		Int("connected", connected).
		Int("removed", removed).
		Int("scenarios", len(file.Scenarios)).
		Msg("Device file applied")

	return nil
}

// fileDevices returns the connected devices that came from the device file
func (d *Daemon) fileDevices() []*deviceRecord {
	d.deviceMu.RLock()
	defer d.deviceMu.RUnlock()
	var records []*deviceRecord
	for _, record := range d.devices {
		if record.fromFile {
			records = append(records, record)
		}
	}
	return records
}

// startDeviceWatcher starts hot-reload of the device file
func (d *Daemon) startDeviceWatcher() error {
	watcher, err := NewDeviceWatcher(d.config.Devices.File, 0, d.reloadDeviceFile, d.logger.GetZerolog())
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	d.watcher = watcher
	return nil
}

// reloadDeviceFile re-applies the device file after a change. A file that
// fails validation leaves the running fleet and schedule untouched.
func (d *Daemon) reloadDeviceFile() {
	path := d.config.Devices.File

	file, err := d.deviceLoader.Load(path)
	if err != nil {
		d.logger.Warn().Err(err).Str("file", path).Msg("Device file reload rejected, keeping previous state")
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, deviceLoadTimeout)
	defer cancel()

	if err := d.applyDeviceFile(ctx, file); err != nil {
		d.logger.Warn().Err(err).Str("file", path).Msg("Device file reload incomplete")
	}
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait waits for the daemon to stop
func (d *Daemon) Wait() {
	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for signal
	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	// Stop daemon
	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetGatewayServer returns the gateway server, nil when disabled
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}

// GetLifecycle returns the lifecycle manager
func (d *Daemon) GetLifecycle() *LifecycleManager {
	return d.lifecycle
}

// Runtime returns the gateway-facing runtime surface. Useful for driving
// the daemon without a gateway connection.
func (d *Daemon) Runtime() gateway.Runtime {
	return &gatewayRuntime{d: d}
}

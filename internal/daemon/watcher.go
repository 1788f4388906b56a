package daemon

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DeviceWatcher monitors the device definition file and reports settled
// changes. Editors usually replace the file through a rename, which drops
// an inode-level watch, so the parent directory is watched instead and
// events are filtered down to the one file.
type DeviceWatcher struct {
	watcher            *fsnotify.Watcher
	path               string
	stabilityThreshold time.Duration
	onChange           func()
	logger             zerolog.Logger
	done               chan struct{}
	debounceMu         sync.Mutex
	debounceTimer      *time.Timer
	stopOnce           sync.Once
}

// NewDeviceWatcher creates a watcher for one device file. onChange fires
// after writes to the file have been quiet for the stability threshold.
func NewDeviceWatcher(path string, stabilityThreshold time.Duration, onChange func(), logger zerolog.Logger) (*DeviceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if stabilityThreshold == 0 {
		stabilityThreshold = 200 * time.Millisecond
	}

	return &DeviceWatcher{
		watcher:            watcher,
		path:               filepath.Clean(path),
		stabilityThreshold: stabilityThreshold,
		onChange:           onChange,
		logger:             logger.With().Str("component", "device-watcher").Logger(),
		done:               make(chan struct{}),
	}, nil
}

// Start starts watching the device file's directory
func (w *DeviceWatcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.eventLoop()

	w.logger.Info().
		Str("path", w.path).
		Msg("Device watcher started")

	return nil
}

// Stop stops the watcher
func (w *DeviceWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Info().Msg("Device watcher stopped")
	return nil
}

// eventLoop processes file system events
func (w *DeviceWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// handleEvent filters events down to the watched file and debounces them
func (w *DeviceWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.stabilityThreshold, func() {
		select {
		case <-w.done:
			return
		default:
		}

		w.logger.Debug().Str("path", w.path).Msg("Device file changed")
		w.onChange()
	})
}

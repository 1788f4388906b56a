package daemon

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// ScenarioScheduler drives scheduled control messages into simulated
// devices. Each Reload swaps in a fresh cron runner so a device file edit
// replaces the whole schedule atomically.
type ScenarioScheduler struct {
	dispatch func(device string, msg xr.MockDeviceMsg)
	logger   zerolog.Logger

	mu      sync.Mutex
	runner  *cron.Cron
	entries int
}

// NewScenarioScheduler creates a scheduler. dispatch is called on cron
// goroutines whenever a scenario fires.
func NewScenarioScheduler(dispatch func(device string, msg xr.MockDeviceMsg), logger zerolog.Logger) *ScenarioScheduler {
	return &ScenarioScheduler{
		dispatch: dispatch,
		logger:   logger.With().Str("component", "scenario-scheduler").Logger(),
	}
}

// Reload replaces the active schedule with the given scenarios. The old
// runner keeps firing until the new one is fully built, so a failed reload
// leaves the previous schedule untouched.
func (s *ScenarioScheduler) Reload(scenarios []ScenarioDefinition) error {
	runner := cron.New()

	for i, scenario := range scenarios {
		scenario := scenario
		_, err := runner.AddFunc(scenario.Schedule, func() {
			s.dispatch(scenario.Device, scenario.Message)
		})
		if err != nil {
			return fmt.Errorf("scenario %d: invalid schedule %q: %w", i, scenario.Schedule, err)
		}
	}

	s.mu.Lock()
	old := s.runner
	s.runner = runner
	s.entries = len(scenarios)
	s.mu.Unlock()

	runner.Start()
	if old != nil {
		old.Stop()
	}

	s.logger.Info().Int("scenarios", len(scenarios)).Msg("Scenario schedule loaded")
	return nil
}

// Stop halts the active schedule
func (s *ScenarioScheduler) Stop() {
	s.mu.Lock()
	runner := s.runner
	s.runner = nil
	s.entries = 0
	s.mu.Unlock()

	if runner != nil {
		runner.Stop()
		s.logger.Info().Msg("Scenario scheduler stopped")
	}
}

// EntryCount reports how many scenarios are scheduled
func (s *ScenarioScheduler) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

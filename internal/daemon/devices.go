package daemon

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// ScenarioDefinition is one scheduled control message for a simulated
// device. The schedule is a standard cron expression; @every and the other
// robfig descriptors work too.
type ScenarioDefinition struct {
	Device   string           `json:"device"`
	Schedule string           `json:"schedule"`
	Message  xr.MockDeviceMsg `json:"message"`
}

// DeviceFile is the on-disk definition of the simulated fleet: the devices
// to connect at startup and the scenarios that drive them while running.
type DeviceFile struct {
	Devices   []xr.MockDeviceInit  `json:"devices"`
	Scenarios []ScenarioDefinition `json:"scenarios,omitempty"`
}

// DeviceLoader loads and validates device definition files
type DeviceLoader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewDeviceLoader creates a new device file loader
func NewDeviceLoader(logger zerolog.Logger) *DeviceLoader {
	schemaLoader := gojsonschema.NewStringLoader(DeviceFileSchema)
	return &DeviceLoader{
		logger:       logger.With().Str("component", "device-loader").Logger(),
		schemaLoader: schemaLoader,
	}
}

// Load loads and validates a device file from disk
func (l *DeviceLoader) Load(path string) (*DeviceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device file: %w", err)
	}

	var file DeviceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse device file JSON: %w", err)
	}

	if err := l.validateSchema(data); err != nil {
		return nil, fmt.Errorf("device file schema validation failed: %w", err)
	}

	if err := l.validateFile(&file); err != nil {
		return nil, fmt.Errorf("device file validation failed: %w", err)
	}

	l.logger.Debug().
		Str("path", path).
		Int("devices", len(file.Devices)).
		Int("scenarios", len(file.Scenarios)).
		Msg("Loaded device file")

	return &file, nil
}

// validateSchema validates the raw document against the JSON schema
func (l *DeviceLoader) validateSchema(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(l.schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, err := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += err.String()
		}
		return fmt.Errorf("schema validation errors: %s", errMsg)
	}

	return nil
}

// validateFile performs validation beyond what the JSON schema expresses
func (l *DeviceLoader) validateFile(file *DeviceFile) error {
	names := make(map[string]bool, len(file.Devices))
	for i, device := range file.Devices {
		if device.Name == "" {
			return fmt.Errorf("device %d: name is required", i)
		}
		if names[device.Name] {
			return fmt.Errorf("duplicate device name: %s", device.Name)
		}
		names[device.Name] = true

		if !device.SupportsInline && !device.SupportsVR && !device.SupportsAR {
			return fmt.Errorf("device %s: must support at least one session mode", device.Name)
		}
	}

	for i, scenario := range file.Scenarios {
		if !names[scenario.Device] {
			return fmt.Errorf("scenario %d: unknown device %q", i, scenario.Device)
		}
		if _, err := cron.ParseStandard(scenario.Schedule); err != nil {
			return fmt.Errorf("scenario %d: invalid schedule %q: %w", i, scenario.Schedule, err)
		}
		if scenario.Message.Kind == "" {
			return fmt.Errorf("scenario %d: message kind is required", i)
		}
	}

	return nil
}

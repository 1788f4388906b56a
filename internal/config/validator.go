package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateHost validates a listen host
func (v *Validator) ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.ContainsAny(host, " \t") {
		return fmt.Errorf("invalid host: %q", host)
	}
	return nil
}

// ValidatePort validates a listen port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateSharedSecret validates the gateway shared secret. An empty
// secret disables authentication and is allowed.
func (v *Validator) ValidateSharedSecret(secret string) error {
	if secret == "" {
		return nil
	}
	if len(secret) < 16 {
		return fmt.Errorf("shared secret must be at least 16 characters, got %d", len(secret))
	}
	return nil
}

// ValidateTickInterval validates the registry step period in milliseconds
func (v *Validator) ValidateTickInterval(ms int) error {
	if ms < 1 {
		return fmt.Errorf("tick interval must be at least 1ms, got %d", ms)
	}
	if ms > 1000 {
		return fmt.Errorf("tick interval too large (max 1000ms), got %d", ms)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSessionMode validates a session mode name as it appears in
// device definition files
func (v *Validator) ValidateSessionMode(mode string) error {
	validModes := []string{"inline", "immersive-vr", "immersive-ar"}
	for _, valid := range validModes {
		if mode == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid session mode: %s (must be one of: %s)", mode, strings.Join(validModes, ", "))
}

// ValidateCronSpec validates a scenario schedule expression
func (v *Validator) ValidateCronSpec(spec string) error {
	if spec == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.Gateway.Enabled {
		if err := v.ValidateHost(cfg.Gateway.Host); err != nil {
			errors = append(errors, fmt.Errorf("gateway: %w", err))
		}
		if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
			errors = append(errors, fmt.Errorf("gateway: %w", err))
		}
		if err := v.ValidateSharedSecret(cfg.Gateway.SharedSecret); err != nil {
			errors = append(errors, fmt.Errorf("gateway: %w", err))
		}
	}

	if err := v.ValidateTickInterval(cfg.Runtime.TickIntervalMS); err != nil {
		errors = append(errors, fmt.Errorf("runtime: %w", err))
	}
	if cfg.Runtime.FrameDelayMS < 0 {
		errors = append(errors, fmt.Errorf("runtime: frame_delay_ms must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}

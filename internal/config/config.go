package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Kestrel configuration
type Config struct {
	// Gateway server
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Runtime loop
	Runtime RuntimeConfig `json:"runtime" mapstructure:"runtime"`

	// Simulated device definitions
	Devices DevicesConfig `json:"devices" mapstructure:"devices"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// RuntimeConfig holds the main-thread loop configuration
type RuntimeConfig struct {
	TickIntervalMS int `json:"tick_interval_ms" mapstructure:"tick_interval_ms"` // registry step period
	FrameDelayMS   int `json:"frame_delay_ms" mapstructure:"frame_delay_ms"`     // simulated frame pacing, 0 = unpaced
}

// DevicesConfig holds the simulated-device file configuration
type DevicesConfig struct {
	File  string `json:"file" mapstructure:"file"`   // device definition file, JSON
	Watch bool   `json:"watch" mapstructure:"watch"` // hot-reload on file change
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `json:"level" mapstructure:"level"`
	File     string `json:"file" mapstructure:"file"`
	Console  bool   `json:"console" mapstructure:"console"`
	Pretty   bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize  int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge   int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Enabled:      true,
			Host:         "127.0.0.1",
			Port:         8480,
			SharedSecret: "",
		},
		Runtime: RuntimeConfig{
			TickIntervalMS: 16,
			FrameDelayMS:   16,
		},
		Devices: DevicesConfig{
			File:  "",
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Console:  true,
			Pretty:   true,
			MaxSize:  100,
			MaxAge:   7,
			Compress: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Gateway.Enabled {
		if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
			return fmt.Errorf("gateway port must be between 1 and 65535, got %d", c.Gateway.Port)
		}
		if c.Gateway.Host == "" {
			return fmt.Errorf("gateway host is required when the gateway is enabled")
		}
	}

	if c.Runtime.TickIntervalMS < 1 {
		return fmt.Errorf("runtime tick_interval_ms must be at least 1, got %d", c.Runtime.TickIntervalMS)
	}
	if c.Runtime.FrameDelayMS < 0 {
		return fmt.Errorf("runtime frame_delay_ms must be >= 0, got %d", c.Runtime.FrameDelayMS)
	}

	if c.Logging.MaxSize < 0 {
		return fmt.Errorf("logging max_size must be >= 0, got %d", c.Logging.MaxSize)
	}
	if c.Logging.MaxAge < 0 {
		return fmt.Errorf("logging max_age must be >= 0, got %d", c.Logging.MaxAge)
	}

	return nil
}

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Println("=== Kestrel Configuration Wizard ===")
	fmt.Println()

	cfg := DefaultConfig()
	validator := NewValidator()

	// Gateway
	fmt.Println("Gateway:")
	fmt.Println()

	fmt.Print("Enable the WebSocket gateway? (y/n) [y]: ")
	enable, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if enable == "" || strings.ToLower(enable) == "y" {
		cfg.Gateway.Enabled = true

		fmt.Printf("Listen host [%s]: ", cfg.Gateway.Host)
		host, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if host != "" {
			if err := validator.ValidateHost(host); err != nil {
				fmt.Printf("Warning: %v, using default (%s)\n", err, cfg.Gateway.Host)
			} else {
				cfg.Gateway.Host = host
			}
		}

		for {
			fmt.Printf("Listen port [%d]: ", cfg.Gateway.Port)
			portStr, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if portStr == "" {
				break
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				fmt.Println("Error: port must be a number")
				continue
			}
			if err := validator.ValidatePort(port); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			cfg.Gateway.Port = port
			break
		}

		for {
			fmt.Print("Shared secret (press Enter to disable auth): ")
			secret, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if err := validator.ValidateSharedSecret(secret); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			cfg.Gateway.SharedSecret = secret
			break
		}
	} else {
		cfg.Gateway.Enabled = false
	}

	fmt.Println()

	// Runtime
	fmt.Println("Runtime:")
	for {
		fmt.Printf("Registry tick interval in ms [%d]: ", cfg.Runtime.TickIntervalMS)
		tickStr, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if tickStr == "" {
			break
		}
		tick, err := strconv.Atoi(tickStr)
		if err != nil {
			fmt.Println("Error: interval must be a number")
			continue
		}
		if err := validator.ValidateTickInterval(tick); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		cfg.Runtime.TickIntervalMS = tick
		break
	}

	fmt.Println()

	// Devices file
	fmt.Println("Simulated devices:")
	fmt.Print("Device definition file (press Enter for default): ")
	devFile, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if devFile != "" {
		cfg.Devices.File = devFile
	}

	fmt.Print("Watch the device file for changes? (y/n) [y]: ")
	watch, err := w.readLine()
	if err != nil {
		return nil, err
	}
	cfg.Devices.Watch = watch == "" || strings.ToLower(watch) == "y"

	fmt.Println()

	// Log Level
	fmt.Println("Logging:")
	fmt.Print("Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Println()
	fmt.Println("Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

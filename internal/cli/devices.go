package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kestrel-xr/kestrel/internal/config"
	"github.com/kestrel-xr/kestrel/internal/daemon"
	"github.com/kestrel-xr/kestrel/pkg/xr"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Work with device definition files",
	Long: `Inspect and scaffold the JSON files that describe the simulated
device fleet and its scheduled scenarios.`,
}

var devicesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a device definition file",
	Long: `Validate a device definition file against the schema and the
semantic rules the daemon applies at startup. With no argument the file
named in the configuration is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDevicesValidate,
}

var devicesInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a starter device definition file",
	Long: `Write a starter device definition file with one example headset
and one example scenario. Existing files are never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDevicesInit,
}

func init() {
	devicesCmd.AddCommand(devicesValidateCmd)
	devicesCmd.AddCommand(devicesInitCmd)
	rootCmd.AddCommand(devicesCmd)
}

func runDevicesValidate(cmd *cobra.Command, args []string) error {
	path, err := deviceFileArg(args)
	if err != nil {
		return err
	}

	loader := daemon.NewDeviceLoader(zerolog.Nop())
	file, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("%s is valid\n", path)
	fmt.Printf("Devices: %d\n", len(file.Devices))
	for _, dev := range file.Devices {
		fmt.Printf("  %s (%s)\n", dev.Name, strings.Join(deviceModes(dev), ", "))
	}
	if len(file.Scenarios) > 0 {
		fmt.Printf("Scenarios: %d\n", len(file.Scenarios))
		for _, sc := range file.Scenarios {
			fmt.Printf("  %s -> %s [%s]\n", sc.Schedule, sc.Device, sc.Message.Kind)
		}
	}
	return nil
}

func runDevicesInit(cmd *cobra.Command, args []string) error {
	path, err := deviceFileArg(args)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	sample := daemon.DeviceFile{
		Devices: []xr.MockDeviceInit{
			{
				Name:              "headset-1",
				SupportsInline:    true,
				SupportsVR:        true,
				SupportedFeatures: []string{"local-floor", "bounded-floor"},
			},
		},
		Scenarios: []daemon.ScenarioDefinition{
			{
				Device:   "headset-1",
				Schedule: "@every 30s",
				Message: xr.MockDeviceMsg{
					Kind:       xr.MockMsgVisibilityChange,
					Visibility: xr.VisibilityVisible,
				},
			},
		},
	}

	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("Wrote starter device file to %s\n", path)
	return nil
}

// deviceFileArg resolves the file to operate on: positional argument first,
// then the configured device file.
func deviceFileArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Devices.File == "" {
		return "", fmt.Errorf("no device file given and none configured")
	}
	return cfg.Devices.File, nil
}

func deviceModes(dev xr.MockDeviceInit) []string {
	var modes []string
	if dev.SupportsInline {
		modes = append(modes, "inline")
	}
	if dev.SupportsVR {
		modes = append(modes, "immersive-vr")
	}
	if dev.SupportsAR {
		modes = append(modes, "immersive-ar")
	}
	return modes
}

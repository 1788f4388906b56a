package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-xr/kestrel/internal/config"
	"github.com/kestrel-xr/kestrel/internal/daemon"
	"github.com/kestrel-xr/kestrel/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Kestrel daemon",
	Long: `Start the Kestrel daemon in the foreground.
The daemon registers simulated devices, brokers XR sessions, and serves
the WebSocket gateway until it receives SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Refuse to start a second instance against the same data directory
	pidFile := getPIDFilePath(cfg)
	if isRunning(pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", pidFile)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Logging.Level,
		File:     cfg.Logging.File,
		Console:  cfg.Logging.Console,
		Pretty:   cfg.Logging.Pretty,
		MaxSize:  cfg.Logging.MaxSize,
		MaxAge:   cfg.Logging.MaxAge,
		Compress: cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("Kestrel daemon started (PID %d)\n", os.Getpid())
	if cfg.Gateway.Enabled {
		fmt.Printf("Gateway listening on ws://%s:%d/ws\n", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	if cfg.Devices.File != "" {
		fmt.Printf("Device file: %s\n", cfg.Devices.File)
	}

	d.Wait()
	return nil
}

func getPIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "kestrel.pid")
}

func isRunning(pidFile string) bool {
	if _, err := os.Stat(pidFile); os.IsNotExist(err) {
		return false
	}

	// Read PID and check if process exists
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so probe with signal 0
	return process.Signal(syscall.Signal(0)) == nil
}

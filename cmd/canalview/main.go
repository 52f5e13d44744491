package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/philipparndt/canalview/internal/config"
	"github.com/philipparndt/canalview/version"
)

var (
	configPath string
	endpoint   string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "canalview [right.stl left.stl]",
	Short: "Compare the right and left canal meshes of a subject",
	Long: `canalview uploads a right and a left surface mesh to the canal analysis
service and shows the result: an interactive 3D preview of both meshes,
per-side measurement tables, a comparison table, the isthmus position chart
and the normalized area profiles.

Without a subcommand the desktop window is opened.`,
	Version: version.GetFullVersion(),
	Args:    cobra.MaximumNArgs(2),
	RunE:    runGUI,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "analysis service URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}

// loadConfig merges the config file with flag overrides and sets up logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

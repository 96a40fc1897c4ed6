package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jengzang/dmarcviz/internal/config"
	"github.com/jengzang/dmarcviz/internal/logging"
)

// Global flag values.
var (
	configPath string
	logLevel   string
	noColor    bool
)

// rootCmd is the base command of the DMARC viewer backend.
var rootCmd = &cobra.Command{
	Use:   "dmarcviz",
	Short: "Import DMARC aggregate reports and serve chart data",
	Long: `dmarcviz stores DMARC aggregate reports in SQLite and serves the data behind
the overview pies, per-day line charts, world maps and record tables of saved views.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

// loadConfig loads the configuration and installs the logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mastercactapus/wellrig/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "rigctl",
	Short:        "Control the well plate rig",
	Long:         `rigctl drives the thermal camera, the dosing actuator and the degas stage of the well plate rig.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "wellrig.yaml", "Config file to load.")
	rootCmd.PersistentFlags().String("addr", "", "Address to bind the HTTP server to (overrides config).")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory to use (overrides config).")
}

// loadConfig loads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	name, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(name)
	if err != nil {
		return nil, err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/opilio/internal/logging"
	"github.com/Thermoquad/opilio/internal/settings"
)

var (
	// settingsPath is the optional settings file (--settings)
	settingsPath string

	// cfg and logger are populated before any subcommand runs
	cfg    *settings.Settings
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "opilio",
	Short: "Opilio water-cooling controller tool",
	Long: `Opilio - A CLI tool for talking to Opilio water-cooling controllers.

Reads sensor statistics, manages fan and pump curves, keeps the controller
awake and exposes it over a WebSocket bridge.

Connection modes:
  Serial:    [--port /dev/ttyACM0] [--baud 115200]  (port found by USB VID/PID when omitted)
  WebSocket: --url ws://host/ws [--username user]

For WebSocket authentication, the password is read from the OPILIO_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Every flag may also be set in a settings file (--settings) or through an
OPILIO_ environment variable, e.g. OPILIO_SERIAL_PORT.`,
	Version:      "0.3.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(settingsPath, cmd.Flags())
		if err != nil {
			return err
		}
		l, err := logging.New(s.Logging)
		if err != nil {
			return err
		}
		cfg = s
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&settingsPath, "settings", "", "Settings file (yaml, toml or json)")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device (default: discover by USB VID/PID)")
	flags.IntP("baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.Duration("timeout", 0, "Reply timeout per exchange (default 1s)")
	flags.String("device-config", "", "Device configuration file (default: user config dir)")

	// Logging
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json)")
	flags.String("log-file", "", "Also log to this file, rotated")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

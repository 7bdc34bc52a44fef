// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/opilio/pkg/otw"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring an Opilio controller",
	Long: `Monitor an Opilio controller via an interactive terminal UI.

Features:
  - Pump and fan speeds with 60 second averages
  - Liquid and ambient temperatures
  - Smart mode toggle (s), uploaded to the controller without persisting
  - Exchange statistics
  - Event logging
  - Automatic reconnection on connection loss

Polling every 500 ms also keeps the controller awake.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// monitorClient is the part of transport.Client the dashboard uses
type monitorClient interface {
	GetStats(ctx context.Context) (otw.Stats, error)
	GetConfig(ctx context.Context) (otw.Config, error)
	UploadConfig(ctx context.Context, cfg otw.Config) error
	Statistics() otw.Statistics
	Info() string
}

func runMonitor(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := initialMonitorModel(ctx, client)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func monitorTickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func pollStatsCmd(ctx context.Context, client monitorClient) tea.Cmd {
	return func() tea.Msg {
		stats, err := client.GetStats(ctx)
		return statsMsg{stats: stats, err: err, at: time.Now(), info: client.Info()}
	}
}

func fetchConfigCmd(ctx context.Context, client monitorClient) tea.Cmd {
	return func() tea.Msg {
		c, err := client.GetConfig(ctx)
		return configMsg{config: c, err: err}
	}
}

func toggleSmartCmd(ctx context.Context, client monitorClient) tea.Cmd {
	return func() tea.Msg {
		enabled, err := toggleSmartMode(ctx, client)
		return smartToggledMsg{enabled: enabled, err: err}
	}
}

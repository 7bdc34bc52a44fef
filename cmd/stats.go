// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/opilio/pkg/otw"
)

var (
	statsWatch  time.Duration
	statsFormat string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Read sensor statistics from the controller",
	Long: `Read pump and fan speeds and the liquid and ambient temperatures.

With --watch the statistics are polled continuously at the given interval
until Ctrl+C, followed by an exchange summary. Output is plain text by
default; --format json or yaml prints one document per reading.

Supports both serial and WebSocket connections.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().DurationVarP(&statsWatch, "watch", "w", 0, "Poll interval (0 reads once)")
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "text", "Output format (text, json, yaml)")
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(statsFormat); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	if statsWatch <= 0 {
		stats, err := client.GetStats(ctx)
		if err != nil {
			return err
		}
		return printStats(out, statsFormat, time.Now(), stats)
	}

	connInfo, err := client.Connect(ctx)
	if err != nil {
		return err
	}
	if statsFormat == "text" {
		fmt.Fprintf(out, "Opilio - Statistics\n")
		fmt.Fprintf(out, "Connection: %s\n", connInfo)
		fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")
	}

	ticker := time.NewTicker(statsWatch)
	defer ticker.Stop()

	for {
		stats, err := client.GetStats(ctx)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			fmt.Fprintf(cmd.ErrOrStderr(), "[ERROR] %v\n", err)
		default:
			if err := printStats(out, statsFormat, time.Now(), stats); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			if statsFormat == "text" {
				summary := client.Statistics()
				fmt.Fprintf(out, "\n%s", summary.String())
			}
			if ctx.Err() == context.Canceled {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkOutputFormat rejects unknown --format values
func checkOutputFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q (use text, json or yaml)", format)
}

// statsRecord is the json/yaml form of one reading
type statsRecord struct {
	Time  time.Time `json:"time" yaml:"time"`
	Stats otw.Stats `json:"stats" yaml:"stats"`
}

func printStats(w io.Writer, format string, at time.Time, stats otw.Stats) error {
	switch format {
	case "json":
		return json.NewEncoder(w).Encode(statsRecord{Time: at, Stats: stats})
	case "yaml":
		b, err := yaml.Marshal(statsRecord{Time: at, Stats: stats})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "---\n%s", b)
		return err
	}
	_, err := fmt.Fprintf(w, "[%s]\n%s", at.Format("15:04:05.000"), otw.FormatStats(stats))
	return err
}

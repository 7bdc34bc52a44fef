// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/opilio/pkg/otw"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the link to the controller with Ping/Pong exchanges",
	Long: `Send Ping frames to the controller and wait for Pong replies.

Each reply carries the controller's uptime. Over a WebSocket bridge this
verifies the whole chain: the WebSocket connection, HTTP Basic
authentication, the bridge and the serial link behind it.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 3, "Number of pings to send")
	pingCmd.Flags().DurationVarP(&pingInterval, "interval", "i", time.Second, "Wait between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount <= 0 {
		return fmt.Errorf("--count must be positive, got %d", pingCount)
	}

	client, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Close()

	ctx := cmd.Context()
	connInfo, err := client.Connect(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Opilio - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s per ping\n", cfg.Timeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	var rtts []time.Duration
	for i := 1; i <= pingCount; i++ {
		start := time.Now()
		uptime, err := client.Ping(ctx)
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("Ping %d: FAILED (%v)\n", i, err)
		} else {
			rtts = append(rtts, rtt)
			fmt.Printf("Ping %d: uptime=%s time=%s\n", i, otw.FormatUptime(uptime), rtt.Round(time.Microsecond))
		}

		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	failCount := pingCount - len(rtts)

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, len(rtts), float64(failCount)/float64(pingCount)*100)
	if len(rtts) > 0 {
		lo, avg, hi := rttSummary(rtts)
		fmt.Printf("rtt min/avg/max = %s/%s/%s\n",
			lo.Round(time.Microsecond), avg.Round(time.Microsecond), hi.Round(time.Microsecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

// rttSummary returns min, mean and max of a non-empty sample
func rttSummary(rtts []time.Duration) (lo, avg, hi time.Duration) {
	lo, hi = rtts[0], rtts[0]
	var total time.Duration
	for _, d := range rtts {
		lo = min(lo, d)
		hi = max(hi, d)
		total += d
	}
	return lo, total / time.Duration(len(rtts)), hi
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/opilio/internal/transport"
	"github.com/Thermoquad/opilio/pkg/otw"
)

var (
	discoverAll   bool
	discoverProbe bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List serial ports and find Opilio controllers",
	Long: fmt.Sprintf(`List the serial ports of this host and mark Opilio controllers, recognised
by their USB ids (VID %04x, PID %04x).

With --probe every controller found is pinged to confirm it answers.

Exit codes:
  0 - At least one controller found
  1 - No controller found
  2 - Ports could not be enumerated`, otw.VID, otw.PID),
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().BoolVarP(&discoverAll, "all", "a", false, "Show every port, not only USB ones")
	discoverCmd.Flags().BoolVar(&discoverProbe, "probe", false, "Ping each controller found")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ports, err := transport.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Opilio - Device Discovery\n\n")
	found := printPorts(os.Stdout, ports, discoverAll)

	if discoverProbe {
		for _, p := range ports {
			if !p.Matches(otw.VID, otw.PID) {
				continue
			}
			client := transport.NewClient(transport.SerialDialer(p.Name, cfg.Serial.Baud),
				transport.WithTimeout(cfg.Timeout), transport.WithLogger(logger))
			uptime, err := client.Ping(cmd.Context())
			client.Close()
			if err != nil {
				fmt.Printf("%s: no reply (%v)\n", p.Name, err)
				continue
			}
			fmt.Printf("%s: up %s\n", p.Name, otw.FormatUptime(uptime))
		}
	}

	fmt.Printf("\nFound %d controller(s)\n", found)
	if found == 0 {
		os.Exit(1)
	}
	return nil
}

// printPorts writes one line per port and returns the number of controllers
func printPorts(w io.Writer, ports []transport.PortInfo, all bool) int {
	found := 0
	for _, p := range ports {
		match := p.Matches(otw.VID, otw.PID)
		if match {
			found++
		}
		if !p.IsUSB {
			if all {
				fmt.Fprintf(w, "  %s\n", p.Name)
			}
			continue
		}

		marker := " "
		if match {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %s:%s", marker, p.Name, p.VID, p.PID)
		if p.Product != "" {
			fmt.Fprintf(w, "  %s", p.Product)
		}
		if p.Serial != "" {
			fmt.Fprintf(w, "  serial=%s", p.Serial)
		}
		fmt.Fprintln(w)
	}
	return found
}

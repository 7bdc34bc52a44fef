// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/opilio/internal/daemon"
	"github.com/Thermoquad/opilio/internal/metrics"
	"github.com/Thermoquad/opilio/internal/transport"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep the controller awake",
	Long: `Keep the controller from going to sleep.

The controller stops its pump and fans after sleep_after seconds without
hearing from the host. The daemon reads the configuration a few seconds
before that deadline, every cycle, and retries every 2 seconds while the
controller cannot be reached.

With --metrics-addr the daemon also polls sensor statistics each cycle and
serves them as Prometheus metrics. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9477)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		clientOpts []transport.Option
		daemonOpts = []daemon.Option{daemon.WithLogger(logger)}
		mux        *http.ServeMux
	)
	if cfg.Metrics.Addr != "" {
		reg := metrics.NewRegistry()
		dm := metrics.NewDeviceMetrics(reg)
		clientOpts = append(clientOpts, transport.WithObserver(dm))
		daemonOpts = append(daemonOpts, daemon.WithMetrics(dm))

		mux = http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	}

	client, err := newClient(clientOpts...)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("starting keep-alive",
		zap.String("port", cfg.Serial.Port),
		zap.String("url", cfg.Remote.URL),
		zap.String("metrics", cfg.Metrics.Addr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return daemon.New(client, daemonOpts...).Run(ctx)
	})
	if mux != nil {
		g.Go(func() error {
			return listenAndServe(ctx, cfg.Metrics.Addr, mux)
		})
	}
	return g.Wait()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/opilio/internal/bridge"
	"github.com/Thermoquad/opilio/internal/metrics"
	"github.com/Thermoquad/opilio/internal/simulator"
	"github.com/Thermoquad/opilio/internal/transport"
)

var (
	serveSimulate bool
	serveAmbient  float32
	serveHeatLoad float32
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose a controller over a WebSocket bridge",
	Long: `Serve a controller to remote hosts over WebSocket.

Every binary WebSocket message carries one request frame and is answered by
exactly one reply frame. Remote hosts connect with --url ws://host:8080/ws.

The controller is the local serial device (--port, or discovered by USB ids)
or, with --simulate, a simulated controller with a thermal model, handy for
trying curves and tools without hardware.

Set bridge.username in the settings file (or OPILIO_BRIDGE_USERNAME) to
require HTTP Basic auth; the password comes from OPILIO_BRIDGE_PASSWORD.
Prometheus metrics are served on the same listener at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Listen address (default :8080)")
	serveCmd.Flags().BoolVar(&serveSimulate, "simulate", false, "Serve a simulated controller")
	serveCmd.Flags().Float32Var(&serveAmbient, "ambient", 22, "Simulated ambient temperature (°C)")
	serveCmd.Flags().Float32Var(&serveHeatLoad, "heat-load", 150, "Simulated heat load (W)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Bridge.Username != "" && cfg.Bridge.Password == "" {
		return fmt.Errorf("bridge username %q set without a password (OPILIO_BRIDGE_PASSWORD)", cfg.Bridge.Username)
	}

	reg := metrics.NewRegistry()

	var handler bridge.Handler
	source := "simulator"
	if serveSimulate {
		handler = simulator.New(
			simulator.WithLogger(logger.Named("simulator")),
			simulator.WithAmbient(serveAmbient),
			simulator.WithHeatLoad(serveHeatLoad),
		)
	} else {
		client, err := newClient(transport.WithObserver(metrics.NewDeviceMetrics(reg)))
		if err != nil {
			return err
		}
		defer client.Close()

		info, err := client.Connect(ctx)
		if err != nil {
			return err
		}
		source = info
		handler = bridge.ClientHandler{Client: client}
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger.Named("bridge")),
		bridge.WithMetrics(metrics.NewBridgeMetrics(reg)),
	}
	if cfg.Bridge.Username != "" {
		opts = append(opts, bridge.WithBasicAuth(cfg.Bridge.Username, cfg.Bridge.Password))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Bridge.Path, bridge.NewServer(handler, opts...))
	mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))

	logger.Info("bridge ready",
		zap.String("device", source),
		zap.String("addr", cfg.Bridge.Addr),
		zap.String("path", cfg.Bridge.Path),
		zap.Bool("auth", cfg.Bridge.Username != ""))

	return listenAndServe(ctx, cfg.Bridge.Addr, mux)
}

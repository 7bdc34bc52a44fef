// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package daemon keeps an opilio controller awake. The controller stops its
// outputs after sleep_after seconds without host contact; the daemon reads
// the configuration shortly before that deadline, every cycle.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/opilio/internal/logging"
	"github.com/Thermoquad/opilio/internal/metrics"
	"github.com/Thermoquad/opilio/pkg/otw"
)

// RetryDelay is the wait after a failed cycle
const RetryDelay = 2 * time.Second

// wakeMargin is how long before sleep_after the next contact is made
const wakeMargin = 5

// DeviceClient is the part of transport.Client the daemon uses
type DeviceClient interface {
	GetConfig(ctx context.Context) (otw.Config, error)
	GetStats(ctx context.Context) (otw.Stats, error)
}

// SleepFor returns the wait before the next contact for a given sleep_after.
// It never drops below RetryDelay, so a device reporting 0 is not polled in
// a tight loop.
func SleepFor(sleepAfter uint16) time.Duration {
	secs := sleepAfter
	if secs > wakeMargin {
		secs -= wakeMargin
	}
	return max(time.Duration(secs)*time.Second, RetryDelay)
}

// Option configures a Daemon
type Option func(*Daemon)

// WithLogger sets the daemon logger
func WithLogger(l *zap.Logger) Option {
	return func(d *Daemon) {
		d.logger = logging.OrNop(l)
	}
}

// WithMetrics publishes the config and a stats snapshot every cycle
func WithMetrics(m *metrics.DeviceMetrics) Option {
	return func(d *Daemon) {
		d.metrics = m
	}
}

// WithRetryDelay overrides RetryDelay
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Daemon) {
		d.retry = delay
	}
}

// Daemon runs the keep-alive loop
type Daemon struct {
	client  DeviceClient
	logger  *zap.Logger
	metrics *metrics.DeviceMetrics
	retry   time.Duration
	wait    func(ctx context.Context, d time.Duration) error
}

// New creates a daemon talking to client
func New(client DeviceClient, opts ...Option) *Daemon {
	d := &Daemon{
		client: client,
		logger: zap.NewNop(),
		retry:  RetryDelay,
		wait:   sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cycle contacts the controller once and returns the wait before the next
// cycle
func (d *Daemon) Cycle(ctx context.Context) time.Duration {
	cfg, err := d.client.GetConfig(ctx)
	if err != nil {
		d.logger.Warn("keep-alive failed, retrying", zap.Duration("retry_in", d.retry), zap.Error(err))
		return d.retry
	}

	sleep := SleepFor(cfg.General.SleepAfter)
	d.logger.Info("keep-alive",
		zap.Uint16("sleep_after", cfg.General.SleepAfter),
		zap.Duration("sleep_for", sleep),
		zap.Bool("smart_mode", cfg.SmartModeEnabled()))

	if d.metrics != nil {
		d.metrics.ObserveConfig(cfg)
		stats, err := d.client.GetStats(ctx)
		if err != nil {
			d.logger.Warn("stats poll failed", zap.Error(err))
		} else {
			d.metrics.ObserveStats(stats)
		}
	}
	return sleep
}

// Run loops until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon started")
	for {
		if err := d.wait(ctx, d.Cycle(ctx)); err != nil {
			d.logger.Info("daemon stopped")
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator implements a virtual opilio controller. It answers
// frames the way the firmware does and drives its pump and fans from a
// simple thermal model, so the host tools can run without hardware.
package simulator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/opilio/internal/logging"
	"github.com/Thermoquad/opilio/pkg/otw"
)

// Option configures a Device
type Option func(*Device)

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(d *Device) {
		d.now = now
	}
}

// WithLogger sets the device logger
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) {
		d.logger = logging.OrNop(l)
	}
}

// WithConfig sets the configuration stored in flash at power-on
func WithConfig(cfg otw.Config) Option {
	return func(d *Device) {
		d.flash = cfg.Clone()
	}
}

// WithAmbient sets the ambient temperature
func WithAmbient(temp float32) Option {
	return func(d *Device) {
		d.thermal.Ambient = temp
	}
}

// WithHeatLoad sets the heat dumped into the loop, in watts
func WithHeatLoad(watts float32) Option {
	return func(d *Device) {
		d.thermal.HeatLoad = watts
	}
}

// WithFlashFault makes SaveConfig fail with kind, for exercising error paths
func WithFlashFault(kind otw.ErrorKind) Option {
	return func(d *Device) {
		d.flashFault = kind
	}
}

// Device is a simulated controller. It is safe for concurrent use.
type Device struct {
	now    func() time.Time
	logger *zap.Logger

	mu          sync.Mutex
	active      otw.Config // RAM
	flash       otw.Config
	flashFault  otw.ErrorKind
	bootTime    time.Time
	lastStep    time.Time
	lastContact time.Time
	thermal     Thermal
}

// New powers on a device, loading its configuration from flash
func New(opts ...Option) *Device {
	d := &Device{
		now:     time.Now,
		logger:  zap.NewNop(),
		flash:   otw.DefaultConfig(),
		thermal: NewThermal(),
	}
	for _, opt := range opts {
		opt(d)
	}

	t := d.now()
	d.bootTime, d.lastStep, d.lastContact = t, t, t
	d.active = d.flash.Clone()
	d.thermal.Liquid = d.thermal.Ambient
	d.thermal.Update(&d.active, false)
	return d
}

// Handle answers one request frame with one reply frame. Only an encode
// failure of the reply itself is returned as an error.
func (d *Device) Handle(_ context.Context, req []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.advance()
	d.lastContact = d.now()
	d.thermal.Update(&d.active, false)

	msg, data := d.respond(req)
	return otw.Encode(msg, data)
}

func (d *Device) respond(req []byte) (otw.Msg, otw.Data) {
	frame, err := otw.Decode(req)
	if err != nil {
		d.logger.Debug("rejecting frame", zap.Binary("frame", req), zap.Error(err))
		return otw.MsgResult, otw.ResponseError(otw.KindOf(err))
	}

	switch frame.Msg {
	case otw.MsgPing:
		return otw.MsgPong, otw.Pong(d.uptime())

	case otw.MsgGetStats:
		return otw.MsgStats, d.thermal.Stats()

	case otw.MsgGetConfig:
		return otw.MsgConfig, d.active.Clone()

	case otw.MsgUploadConfig:
		cfg := frame.Data.(otw.Config)
		if !cfg.IsValid() {
			d.logger.Info("rejecting invalid config", zap.Any("violations", cfg.Validate()))
			return otw.MsgResult, otw.ResponseError(otw.ErrDeserialize)
		}
		d.active = cfg.Clone()
		d.thermal.Update(&d.active, d.asleep())
		d.logger.Info("config applied", zap.Bool("smart_mode", d.active.SmartModeEnabled()))
		return otw.MsgResult, otw.ResponseOK

	case otw.MsgSaveConfig:
		if d.flashFault != 0 {
			return otw.MsgResult, otw.ResponseError(d.flashFault)
		}
		d.flash = d.active.Clone()
		d.logger.Info("config saved to flash")
		return otw.MsgResult, otw.ResponseOK

	case otw.MsgReload:
		d.active = d.flash.Clone()
		d.thermal.Update(&d.active, d.asleep())
		d.logger.Info("config reloaded from flash")
		return otw.MsgResult, otw.ResponseOK
	}

	// replies are never valid requests
	return otw.MsgResult, otw.ResponseError(otw.ErrInvalidMsgDataPair)
}

// advance runs the thermal model up to now. The device falls asleep
// sleep_after seconds after the last host contact.
func (d *Device) advance() {
	t := d.now()
	if !t.After(d.lastStep) {
		return
	}

	wake := d.lastContact.Add(time.Duration(d.active.General.SleepAfter) * time.Second)
	if d.lastStep.Before(wake) {
		awake := wake
		if t.Before(wake) {
			awake = t
		}
		d.thermal.Step(awake.Sub(d.lastStep), &d.active, false)
		d.lastStep = awake
	}
	if t.After(d.lastStep) {
		d.thermal.Step(t.Sub(d.lastStep), &d.active, true)
		d.lastStep = t
	}
}

// asleep reports whether the host has been silent longer than sleep_after
func (d *Device) asleep() bool {
	return d.asleepAt(d.now())
}

func (d *Device) asleepAt(t time.Time) bool {
	idle := time.Duration(d.active.General.SleepAfter) * time.Second
	return t.Sub(d.lastContact) > idle
}

func (d *Device) uptime() uint32 {
	return uint32(d.now().Sub(d.bootTime) / time.Second)
}

// Stats returns the current sensor snapshot
func (d *Device) Stats() otw.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advance()
	return d.thermal.Stats()
}

// Duty returns the current duty of a channel in [0, DutyRange]
func (d *Device) Duty(id otw.FanID) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advance()
	return d.thermal.Duty(id)
}

// Asleep reports whether the device stopped its outputs for lack of host contact
func (d *Device) Asleep() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advance()
	return d.asleep()
}

// ActiveConfig returns the configuration in effect
func (d *Device) ActiveConfig() otw.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active.Clone()
}

// FlashConfig returns the configuration stored in flash
func (d *Device) FlashConfig() otw.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flash.Clone()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package otw provides the Go implementation of the opilio over-the-wire protocol.
//
// Opilio is a water-cooling controller (one pump, up to three fans, liquid and
// ambient thermistors) attached over USB serial. A host exchanges frames with
// the controller: each frame is a CBOR array [msg, payload] where msg is a Msg
// command tag and payload is the value the command implies (nil for commands
// that carry nothing).
//
// The package also holds the value model shared by both ends (Stats, Config and
// its fan curves) and the duty engine that turns temperatures into PWM duty.
package otw

// Frame size limits
const (
	MaxSerialDataSize = 256 // largest frame either side will send
	minFrameSize      = 2
)

// USB identification, requested from pid.codes
const (
	VID uint16 = 0x1209
	PID uint16 = 0x2442
)

// Serial link defaults
const (
	BaudRate = 115200
)

// Duty engine constants
const (
	MaxDutyPercent      float32 = 100.0
	MinSmartDutyPercent float32 = 20.0 // duty at the smart mode trigger point
	SwitchTempBuffer    float32 = 1.0  // hysteresis band below the trigger
	AmbientFaultTemp    float32 = -20.0
	FallbackAmbientTemp float32 = 22.0
	MinPumpDuty         float32 = 40.0
)

// Configuration limits
const (
	CurvePoints       = 4
	MaxFanSettings    = 4
	MinSleepAfter     = 5   // seconds
	DefaultSleepAfter = 300 // five minutes
)

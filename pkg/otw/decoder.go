// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Frame is a decoded (command, payload) pair
type Frame struct {
	Msg  Msg
	Data Data
}

type rawFrame struct {
	_ struct{} `cbor:",toarray"`

	Msg     Msg
	Payload cbor.RawMessage
}

// Decode parses b, which must hold exactly one frame.
//
// Every failure is ErrDeserialize: fewer than 2 bytes, malformed or trailing
// bytes, an unknown command, or a payload that is not the kind the command
// implies.
func Decode(b []byte) (Frame, error) {
	if len(b) < minFrameSize {
		return Frame{}, fmt.Errorf("decode: %d bytes is below the minimum frame size: %w", len(b), ErrDeserialize)
	}

	var raw rawFrame
	if err := decMode.Unmarshal(b, &raw); err != nil {
		return Frame{}, fmt.Errorf("decode: %v: %w", err, ErrDeserialize)
	}

	kind, ok := raw.Msg.PayloadKind()
	if !ok {
		return Frame{}, fmt.Errorf("decode: unknown command %d: %w", uint8(raw.Msg), ErrDeserialize)
	}

	data, err := decodePayload(kind, raw.Payload)
	if err != nil {
		return Frame{}, fmt.Errorf("decode %s: %w", raw.Msg, err)
	}
	return Frame{Msg: raw.Msg, Data: data}, nil
}

func decodePayload(kind PayloadKind, raw cbor.RawMessage) (Data, error) {
	if isNull(raw) {
		if kind == KindEmpty {
			return Empty{}, nil
		}
		return nil, fmt.Errorf("missing %s payload: %w", kind, ErrDeserialize)
	}

	switch kind {
	case KindEmpty:
		return nil, fmt.Errorf("unexpected payload: %w", ErrDeserialize)

	case KindPong:
		var uptime uint32
		if err := decMode.Unmarshal(raw, &uptime); err != nil {
			return nil, fmt.Errorf("pong: %v: %w", err, ErrDeserialize)
		}
		return Pong(uptime), nil

	case KindStats:
		var stats Stats
		if err := decMode.Unmarshal(raw, &stats); err != nil {
			return nil, fmt.Errorf("stats: %v: %w", err, ErrDeserialize)
		}
		return stats, nil

	case KindConfig:
		return decodeConfig(raw)

	case KindResponse:
		var resp Response
		if err := decMode.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("response: %v: %w", err, ErrDeserialize)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("payload kind %s: %w", kind, ErrDeserialize)
}

// decodeConfig decodes and bounds-checks a Config. It returns the zero
// Config on any failure.
func decodeConfig(b []byte) (Config, error) {
	var cfg Config
	if err := decMode.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %v: %w", err, ErrDeserialize)
	}

	if err := cfg.CheckSettings(); err != nil {
		return Config{}, fmt.Errorf("config: %v: %w", err, ErrDeserialize)
	}
	if cfg.General.LED > SwitchOn || cfg.General.Buzzer > SwitchOn {
		return Config{}, fmt.Errorf("config: invalid switch mode: %w", ErrDeserialize)
	}
	return cfg, nil
}

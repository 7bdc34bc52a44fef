// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"fmt"
)

// frame is the wire layout: [msg, payload]
type frame struct {
	_ struct{} `cbor:",toarray"`

	Msg     Msg
	Payload any
}

// serialisedOK is Encode(MsgResult, ResponseOK): array(2), 7, 0
var serialisedOK = [3]byte{0x82, byte(MsgResult), 0x00}

// SerialisedOK returns the 3-byte frame acknowledging success
func SerialisedOK() []byte {
	b := serialisedOK
	return b[:]
}

// Encode serialises msg and data into a frame of at most MaxSerialDataSize bytes
func Encode(msg Msg, data Data) ([]byte, error) {
	return EncodeLimit(msg, data, MaxSerialDataSize)
}

// EncodeLimit serialises msg and data into a frame of at most limit bytes.
//
// The pairing is checked before anything is serialised: a payload whose kind
// is not legal for msg fails with ErrInvalidMsgDataPair. A frame larger than
// limit fails with ErrSerialize.
func EncodeLimit(msg Msg, data Data, limit int) ([]byte, error) {
	payload, kind, ok := payloadOf(data)
	if !ok || !IsLegal(msg, kind) {
		return nil, fmt.Errorf("encode %s with %T: %w", msg, data, ErrInvalidMsgDataPair)
	}

	if kind == KindConfig {
		if cfg := payload.(Config); len(cfg.Settings) > MaxFanSettings {
			return nil, fmt.Errorf("encode %s: %d settings (max %d): %w", msg, len(cfg.Settings), MaxFanSettings, ErrSerialize)
		}
	}

	b, err := encMode.Marshal(frame{Msg: msg, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %v: %w", msg, err, encodeErrorKind(err))
	}
	if len(b) > limit {
		return nil, fmt.Errorf("encode %s: frame is %d bytes (max %d): %w", msg, len(b), limit, ErrSerialize)
	}
	return b, nil
}

// MustEncode is like Encode but panics on error.
// Use it only for frames known to be legal, such as fixed requests.
func MustEncode(msg Msg, data Data) []byte {
	b, err := Encode(msg, data)
	if err != nil {
		panic(err)
	}
	return b
}

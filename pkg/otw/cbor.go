// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Floats keep their 4-byte single precision form on the wire: no shortening
// to half precision and no NaN/Inf rewriting.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		ShortestFloat: cbor.ShortestFloatNone,
		NaNConvert:    cbor.NaNConvertNone,
		InfConvert:    cbor.InfConvertNone,
	}.EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: 16,
		MaxNestedLevels:  8,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// encodeErrorKind maps an encoder failure onto the error taxonomy
func encodeErrorKind(err error) ErrorKind {
	var (
		typeErr  *cbor.UnsupportedTypeError
		valueErr *cbor.UnsupportedValueError
	)
	if errors.As(err, &typeErr) || errors.As(err, &valueErr) {
		return ErrSerialize
	}
	return ErrUnknown
}

// isNull reports whether raw is an absent, null or undefined CBOR item
func isNull(raw cbor.RawMessage) bool {
	return len(raw) == 0 || (len(raw) == 1 && (raw[0] == 0xf6 || raw[0] == 0xf7))
}

// FrameReady reports whether b is worth handing to Decode: it holds one
// complete CBOR item, or bytes that no further input can turn into one.
// Stream readers keep reading while FrameReady is false.
func FrameReady(b []byte) bool {
	err := decMode.Wellformed(b)
	if err == nil {
		return true
	}
	return !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF)
}

// cborFloat32 is the initial byte of a single-precision float
const cborFloat32 = 0xfa

// decodeSingles decodes an array of len(dst) floats into dst. Every element
// must be a 4-byte single; half and double precision are rejected rather
// than rounded.
func decodeSingles(b []byte, dst ...*float32) error {
	var items []cbor.RawMessage
	if err := decMode.Unmarshal(b, &items); err != nil {
		return err
	}
	if len(items) != len(dst) {
		return fmt.Errorf("array of %d elements, want %d", len(items), len(dst))
	}
	for i, item := range items {
		if len(item) != 5 || item[0] != cborFloat32 {
			return fmt.Errorf("element %d is not a single-precision float", i)
		}
		*dst[i] = math.Float32frombits(binary.BigEndian.Uint32(item[1:]))
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failures shared by host and device.
// Every kind is representable on the wire inside a Response.
type ErrorKind uint8

const (
	ErrDeserialize ErrorKind = iota + 1
	ErrSerialize
	ErrInvalidMsgDataPair
	ErrSerialRead
	ErrSerialWrite
	ErrFlashErase
	ErrFlashRead
	ErrFlashWrite
	ErrTempRead
	ErrUnknown
)

// AllErrorKinds returns every defined error kind in wire order
func AllErrorKinds() []ErrorKind {
	return []ErrorKind{
		ErrDeserialize, ErrSerialize, ErrInvalidMsgDataPair,
		ErrSerialRead, ErrSerialWrite,
		ErrFlashErase, ErrFlashRead, ErrFlashWrite,
		ErrTempRead, ErrUnknown,
	}
}

func (k ErrorKind) valid() bool {
	return k >= ErrDeserialize && k <= ErrUnknown
}

// Error implements the error interface
func (k ErrorKind) Error() string {
	return "otw: " + k.String()
}

func (k ErrorKind) String() string {
	switch k {
	case ErrDeserialize:
		return "Deserialize"
	case ErrSerialize:
		return "Serialize"
	case ErrInvalidMsgDataPair:
		return "InvalidMsgDataPair"
	case ErrSerialRead:
		return "SerialRead"
	case ErrSerialWrite:
		return "SerialWrite"
	case ErrFlashErase:
		return "FlashErase"
	case ErrFlashRead:
		return "FlashRead"
	case ErrFlashWrite:
		return "FlashWrite"
	case ErrTempRead:
		return "TempRead"
	case ErrUnknown:
		return "Unknown"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// KindOf extracts the ErrorKind carried by err.
// Errors that carry no kind map to ErrUnknown; a nil error maps to 0.
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var kind ErrorKind
	if errors.As(err, &kind) && kind.valid() {
		return kind
	}
	return ErrUnknown
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import "fmt"

// Msg is the command tag carried in the first element of every frame.
// Values are part of the wire format: append new commands, never renumber.
type Msg uint8

const (
	MsgPing         Msg = 0
	MsgPong         Msg = 1
	MsgGetConfig    Msg = 2
	MsgSaveConfig   Msg = 3
	MsgGetStats     Msg = 4
	MsgStats        Msg = 5
	MsgConfig       Msg = 6
	MsgResult       Msg = 7
	MsgUploadConfig Msg = 8
	MsgReload       Msg = 9
)

// AllMsgs returns every defined command in wire order
func AllMsgs() []Msg {
	return []Msg{
		MsgPing, MsgPong, MsgGetConfig, MsgSaveConfig, MsgGetStats,
		MsgStats, MsgConfig, MsgResult, MsgUploadConfig, MsgReload,
	}
}

func (m Msg) String() string {
	switch m {
	case MsgPing:
		return "Ping"
	case MsgPong:
		return "Pong"
	case MsgGetConfig:
		return "GetConfig"
	case MsgSaveConfig:
		return "SaveConfig"
	case MsgGetStats:
		return "GetStats"
	case MsgStats:
		return "Stats"
	case MsgConfig:
		return "Config"
	case MsgResult:
		return "Result"
	case MsgUploadConfig:
		return "UploadConfig"
	case MsgReload:
		return "Reload"
	}
	return fmt.Sprintf("Msg(%d)", uint8(m))
}

// PayloadKind identifies a payload variant, ignoring the value it holds
type PayloadKind uint8

const (
	KindEmpty PayloadKind = iota
	KindPong
	KindConfig
	KindStats
	KindResponse
)

// AllPayloadKinds returns every payload variant
func AllPayloadKinds() []PayloadKind {
	return []PayloadKind{KindEmpty, KindPong, KindConfig, KindStats, KindResponse}
}

func (k PayloadKind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindPong:
		return "Pong"
	case KindConfig:
		return "Config"
	case KindStats:
		return "Stats"
	case KindResponse:
		return "Response"
	}
	return fmt.Sprintf("PayloadKind(%d)", uint8(k))
}

// PayloadKind returns the one payload variant legal for m.
// The second result is false for tags outside the defined set.
//
// Every Msg constant has a case here and no default arm; keep it that way
// so the exhaustive linter and TestPairing_EveryMsgHasOneKind catch a new
// command that was not added to the table.
func (m Msg) PayloadKind() (PayloadKind, bool) {
	switch m {
	case MsgPing, MsgGetConfig, MsgGetStats, MsgSaveConfig, MsgReload:
		return KindEmpty, true
	case MsgPong:
		return KindPong, true
	case MsgConfig, MsgUploadConfig:
		return KindConfig, true
	case MsgStats:
		return KindStats, true
	case MsgResult:
		return KindResponse, true
	}
	return 0, false
}

// IsLegal reports whether a payload of the given kind may travel with m
func IsLegal(m Msg, kind PayloadKind) bool {
	want, ok := m.PayloadKind()
	return ok && want == kind
}

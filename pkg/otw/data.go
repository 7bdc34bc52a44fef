// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"fmt"
)

// Data is a frame payload: one of Empty, Pong, Stats, Config or Response.
type Data interface {
	Kind() PayloadKind
	isData()
}

// Empty is the payload of commands that carry no value
type Empty struct{}

// Pong carries the device uptime in seconds
type Pong uint32

// Response acknowledges a command. The zero value is Ok; a non-zero Err
// reports the failure the peer ran into.
type Response struct {
	Err ErrorKind
}

// ResponseOK is the success response
var ResponseOK = Response{}

// ResponseError builds a failure response for kind
func ResponseError(kind ErrorKind) Response {
	return Response{Err: kind}
}

func (Empty) Kind() PayloadKind    { return KindEmpty }
func (Pong) Kind() PayloadKind     { return KindPong }
func (Stats) Kind() PayloadKind    { return KindStats }
func (Config) Kind() PayloadKind   { return KindConfig }
func (Response) Kind() PayloadKind { return KindResponse }

func (Empty) isData()    {}
func (Pong) isData()     {}
func (Stats) isData()    {}
func (Config) isData()   {}
func (Response) isData() {}

// IsOK reports whether r is the success response
func (r Response) IsOK() bool {
	return r.Err == 0
}

// AsError returns nil for Ok, otherwise the carried ErrorKind
func (r Response) AsError() error {
	if r.IsOK() {
		return nil
	}
	return r.Err
}

func (r Response) String() string {
	if r.IsOK() {
		return "Ok"
	}
	return fmt.Sprintf("Error(%s)", r.Err)
}

// MarshalCBOR encodes a Response as a single unsigned integer:
// 0 for Ok, otherwise the ErrorKind code.
func (r Response) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(uint8(r.Err))
}

// UnmarshalCBOR decodes the integer form written by MarshalCBOR
func (r *Response) UnmarshalCBOR(b []byte) error {
	var code uint8
	if err := decMode.Unmarshal(b, &code); err != nil {
		return err
	}
	kind := ErrorKind(code)
	if kind != 0 && !kind.valid() {
		return fmt.Errorf("unknown error kind %d", code)
	}
	r.Err = kind
	return nil
}

// payloadOf returns the value to encode for data and its kind.
// ok is false for a nil payload.
func payloadOf(data Data) (value any, kind PayloadKind, ok bool) {
	switch v := data.(type) {
	case Empty:
		return nil, KindEmpty, true
	case *Empty:
		return nil, KindEmpty, v != nil
	case Pong:
		return uint32(v), KindPong, true
	case *Pong:
		if v == nil {
			return nil, KindPong, false
		}
		return uint32(*v), KindPong, true
	case Stats:
		return v, KindStats, true
	case *Stats:
		if v == nil {
			return nil, KindStats, false
		}
		return *v, KindStats, true
	case Config:
		return v, KindConfig, true
	case *Config:
		if v == nil {
			return nil, KindConfig, false
		}
		return *v, KindConfig, true
	case Response:
		return v, KindResponse, true
	case *Response:
		if v == nil {
			return nil, KindResponse, false
		}
		return *v, KindResponse, true
	}
	return nil, 0, false
}

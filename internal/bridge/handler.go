// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge exposes a controller, real or simulated, to remote hosts
// over websocket. Each binary message carries exactly one frame; every
// request gets exactly one reply.
package bridge

import (
	"context"

	"github.com/Thermoquad/opilio/internal/transport"
	"github.com/Thermoquad/opilio/pkg/otw"
)

// Handler answers one request frame with one reply frame
type Handler interface {
	Handle(ctx context.Context, req []byte) ([]byte, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req []byte) ([]byte, error)

func (f HandlerFunc) Handle(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}

// ClientHandler forwards frames to a controller through a transport.Client.
// Failures on the local link are answered with Result(Error(kind)).
type ClientHandler struct {
	Client *transport.Client
}

func (h ClientHandler) Handle(ctx context.Context, req []byte) ([]byte, error) {
	frame, err := otw.Decode(req)
	if err != nil {
		return errorReply(err)
	}

	reply, err := h.Client.Exchange(ctx, frame.Msg, frame.Data)
	if err != nil {
		return errorReply(err)
	}
	return otw.Encode(reply.Msg, reply.Data)
}

func errorReply(err error) ([]byte, error) {
	return otw.Encode(otw.MsgResult, otw.ResponseError(otw.KindOf(err)))
}

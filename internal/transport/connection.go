// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"

	"github.com/Thermoquad/opilio/pkg/otw"
)

// Connection carries frames to and from a controller, over a local serial
// port or a websocket bridge.
type Connection interface {
	io.ReadWriteCloser

	// Reset discards unread input and unsent output
	Reset() error

	// SetReadTimeout bounds the next Read. A serial Read that times out
	// returns (0, nil); a websocket Read returns a timeout error and the
	// connection must be reopened.
	SetReadTimeout(d time.Duration) error
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// Reset clears the port's input and output buffers
func (s *SerialConnection) Reset() error {
	if err := s.port.ResetInputBuffer(); err != nil {
		return err
	}
	return s.port.ResetOutputBuffer()
}

func (s *SerialConnection) SetReadTimeout(d time.Duration) error {
	return s.port.SetReadTimeout(d)
}

// ErrConnectionClosed is returned when using a failed or closed websocket
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps a websocket connection to a bridge. Each frame
// travels as one binary message.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	timeout   time.Duration
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		if w.timeout > 0 {
			if err := w.conn.SetReadDeadline(time.Now().Add(w.timeout)); err != nil {
				w.closed = true
				return 0, err
			}
		}

		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// gorilla connections cannot be read again after any error
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		w.closed = true
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	w.closed = true
	return w.conn.Close()
}

// Reset drops any buffered, unread message
func (w *WebSocketConnection) Reset() error {
	if w.closed {
		return ErrConnectionClosed
	}
	w.buf = nil
	w.bufOffset = 0
	return nil
}

func (w *WebSocketConnection) SetReadTimeout(d time.Duration) error {
	w.timeout = d
	return nil
}

// OpenSerialConnection opens a serial port at baudRate 8N1
func OpenSerialConnection(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a websocket connection with HTTP Basic auth
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	conn.SetReadLimit(otw.MaxSerialDataSize)

	return &WebSocketConnection{conn: conn}, nil
}

// Dialer opens a connection and describes it for display
type Dialer func(ctx context.Context) (Connection, string, error)

// SerialDialer opens portName, or the first port matching the controller's
// USB VID/PID when portName is empty.
func SerialDialer(portName string, baudRate int) Dialer {
	return func(ctx context.Context) (Connection, string, error) {
		name := portName
		if name == "" {
			found, err := FindPort(otw.VID, otw.PID)
			if err != nil {
				return nil, "", err
			}
			name = found
		}

		conn, err := OpenSerialConnection(name, baudRate)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", name, baudRate), nil
	}
}

// WebSocketDialer connects to a bridge at wsURL
func WebSocketDialer(wsURL, username, password string, skipSSLVerify bool) Dialer {
	return func(ctx context.Context) (Connection, string, error) {
		conn, err := OpenWebSocketConnection(ctx, wsURL, username, password, skipSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}
}

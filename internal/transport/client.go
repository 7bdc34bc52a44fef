// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/opilio/internal/logging"
	"github.com/Thermoquad/opilio/pkg/otw"
)

// DefaultTimeout bounds one request/response exchange
const DefaultTimeout = time.Second

var (
	// ErrTimeout is returned when no complete reply arrives in time
	ErrTimeout = fmt.Errorf("timed out waiting for reply: %w", otw.ErrSerialRead)

	// ErrUnexpectedReply is returned when the reply command does not answer
	// the request
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// DeviceError is a Result(Error(kind)) reply from the controller
type DeviceError struct {
	Msg  otw.Msg
	Kind otw.ErrorKind
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected %s: %s", e.Msg, e.Kind)
}

// Unwrap exposes the kind so errors.Is(err, otw.ErrFlashWrite) works
func (e *DeviceError) Unwrap() error {
	return e.Kind
}

// Observer receives the outcome of every exchange
type Observer interface {
	ObserveExchange(outcome otw.Outcome)
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-exchange reply timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for reconnects and failures
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(l)
	}
}

// WithRateLimit paces exchanges to at most every interval
func WithRateLimit(every time.Duration) Option {
	return func(c *Client) {
		if every > 0 {
			c.limiter = rate.NewLimiter(rate.Every(every), 1)
		}
	}
}

// WithObserver reports each exchange outcome to o
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Client runs request/response exchanges with a controller. Exchanges are
// serialized; the connection is opened on first use and reopened after a
// transport failure.
type Client struct {
	dial     Dialer
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger
	observer Observer

	mu        sync.Mutex
	conn      Connection
	info      string
	stats     *otw.Statistics
	connected bool // a connection has been opened at least once
}

// NewClient creates a client that opens connections with dial
func NewClient(dial Dialer, opts ...Option) *Client {
	c := &Client{
		dial:    dial,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		stats:   otw.NewStatistics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// outcomeNone marks an exchange that never reached the wire
const outcomeNone otw.Outcome = -1

// Exchange sends msg with data and returns the decoded reply.
// A Result(Error(kind)) reply is returned as a *DeviceError.
func (c *Client) Exchange(ctx context.Context, msg otw.Msg, data otw.Data) (otw.Frame, error) {
	return c.exchange(ctx, msg, data, 0, false)
}

func (c *Client) exchange(ctx context.Context, msg otw.Msg, data otw.Data, want otw.Msg, check bool) (otw.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return otw.Frame{}, err
		}
	}

	start := time.Now()
	frame, outcome, err := c.roundTrip(ctx, msg, data)
	if err == nil && check && frame.Msg != want {
		outcome = otw.OutcomeDecodeError
		err = fmt.Errorf("%s answered with %s: %w", msg, frame.Msg, ErrUnexpectedReply)
	}

	if outcome != outcomeNone {
		c.stats.Record(outcome, time.Since(start))
		if c.observer != nil {
			c.observer.ObserveExchange(outcome)
		}
	}
	if err != nil {
		c.logger.Debug("exchange failed",
			zap.Stringer("msg", msg),
			zap.Stringer("outcome", outcome),
			zap.Error(err))
	}
	return frame, err
}

func (c *Client) roundTrip(ctx context.Context, msg otw.Msg, data otw.Data) (otw.Frame, otw.Outcome, error) {
	req, err := otw.Encode(msg, data)
	if err != nil {
		return otw.Frame{}, outcomeNone, err
	}

	conn, err := c.prepare(ctx)
	if err != nil {
		return otw.Frame{}, otw.OutcomeTransportError, err
	}

	if _, err := conn.Write(req); err != nil {
		c.drop()
		return otw.Frame{}, otw.OutcomeTransportError, fmt.Errorf("write %s: %v: %w", msg, err, otw.ErrSerialWrite)
	}

	reply, err := c.readFrame(ctx, conn)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return otw.Frame{}, otw.OutcomeTimeout, err
		}
		return otw.Frame{}, otw.OutcomeTransportError, err
	}

	frame, err := otw.Decode(reply)
	if err != nil {
		return otw.Frame{}, otw.OutcomeDecodeError, fmt.Errorf("reply to %s: %w", msg, err)
	}

	if resp, ok := frame.Data.(otw.Response); ok && !resp.IsOK() {
		return frame, otw.OutcomeDeviceError, &DeviceError{Msg: msg, Kind: resp.Err}
	}
	return frame, otw.OutcomeOK, nil
}

// prepare returns an open connection with cleared buffers. A connection
// whose buffers cannot be cleared is replaced.
func (c *Client) prepare(ctx context.Context) (Connection, error) {
	if c.conn != nil {
		err := c.conn.Reset()
		if err == nil {
			return c.conn, nil
		}
		c.logger.Warn("clearing buffers failed, reopening", zap.String("connection", c.info), zap.Error(err))
		c.drop()
	}

	conn, info, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	if c.connected {
		c.stats.RecordReconnect()
		c.logger.Info("reconnected", zap.String("connection", info))
	}
	c.conn, c.info, c.connected = conn, info, true

	if err := conn.Reset(); err != nil {
		c.drop()
		return nil, fmt.Errorf("clear buffers: %w", err)
	}
	return conn, nil
}

// readFrame reads until the buffer holds one complete frame or the timeout
// expires
func (c *Client) readFrame(ctx context.Context, conn Connection) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	buf := make([]byte, 0, otw.MaxSerialDataSize)
	chunk := make([]byte, otw.MaxSerialDataSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		if err := conn.SetReadTimeout(remaining); err != nil {
			c.drop()
			return nil, fmt.Errorf("set read timeout: %v: %w", err, otw.ErrSerialRead)
		}

		n, err := conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if isTimeout(err) {
				return nil, ErrTimeout
			}
			c.drop()
			return nil, fmt.Errorf("read: %v: %w", err, otw.ErrSerialRead)
		}

		if len(buf) > 0 && otw.FrameReady(buf) {
			return buf, nil
		}
		if len(buf) >= otw.MaxSerialDataSize {
			// let the decoder reject it
			return buf, nil
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// drop closes the current connection; the next exchange reopens it
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// GetStats requests a sensor snapshot
func (c *Client) GetStats(ctx context.Context) (otw.Stats, error) {
	frame, err := c.exchange(ctx, otw.MsgGetStats, otw.Empty{}, otw.MsgStats, true)
	if err != nil {
		return otw.Stats{}, err
	}
	return frame.Data.(otw.Stats), nil
}

// GetConfig requests the configuration in effect
func (c *Client) GetConfig(ctx context.Context) (otw.Config, error) {
	frame, err := c.exchange(ctx, otw.MsgGetConfig, otw.Empty{}, otw.MsgConfig, true)
	if err != nil {
		return otw.Config{}, err
	}
	return frame.Data.(otw.Config), nil
}

// UploadConfig applies cfg without persisting it
func (c *Client) UploadConfig(ctx context.Context, cfg otw.Config) error {
	_, err := c.exchange(ctx, otw.MsgUploadConfig, cfg, otw.MsgResult, true)
	return err
}

// SaveConfig persists the configuration in effect to flash
func (c *Client) SaveConfig(ctx context.Context) error {
	_, err := c.exchange(ctx, otw.MsgSaveConfig, otw.Empty{}, otw.MsgResult, true)
	return err
}

// Reload restores the configuration last saved to flash
func (c *Client) Reload(ctx context.Context) error {
	_, err := c.exchange(ctx, otw.MsgReload, otw.Empty{}, otw.MsgResult, true)
	return err
}

// Ping checks the controller is responsive and returns its uptime in seconds
func (c *Client) Ping(ctx context.Context) (uint32, error) {
	frame, err := c.exchange(ctx, otw.MsgPing, otw.Empty{}, otw.MsgPong, true)
	if err != nil {
		return 0, err
	}
	return uint32(frame.Data.(otw.Pong)), nil
}

// Statistics returns a snapshot of the exchange counters
func (c *Client) Statistics() otw.Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := *c.stats
	s.CalculateRates()
	return s
}

// ResetStatistics clears the exchange counters
func (c *Client) ResetStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Reset()
}

// Info describes the current connection, or is empty when none is open
func (c *Client) Info() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.info
}

// Connect opens the connection ahead of the first exchange
func (c *Client) Connect(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.prepare(ctx); err != nil {
		return "", err
	}
	return c.info, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

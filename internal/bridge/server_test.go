// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/opilio/internal/metrics"
	"github.com/Thermoquad/opilio/internal/simulator"
	"github.com/Thermoquad/opilio/internal/transport"
	"github.com/Thermoquad/opilio/pkg/otw"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startBridge(t *testing.T, h Handler, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(h, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url, user, pass string) *transport.Client {
	t.Helper()
	c := transport.NewClient(transport.WebSocketDialer(url, user, pass, false), transport.WithTimeout(2*time.Second))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServer_Simulator(t *testing.T) {
	ctx := context.Background()
	dev := simulator.New()
	srv := startBridge(t, dev)
	c := newClient(t, wsURL(srv), "", "")

	_, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Info(), "WebSocket: ws://"))

	cfg, err := c.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, otw.DefaultConfig(), cfg)

	cfg.General.LED = otw.SwitchOn
	require.NoError(t, c.UploadConfig(ctx, cfg))
	require.NoError(t, c.SaveConfig(ctx))
	assert.Equal(t, cfg, dev.FlashConfig())

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(22), stats.AmbientTemp)
}

func TestServer_BasicAuth(t *testing.T) {
	srv := startBridge(t, simulator.New(), WithBasicAuth("admin", "secret"))
	ctx := context.Background()

	_, err := newClient(t, wsURL(srv), "admin", "secret").Ping(ctx)
	require.NoError(t, err)

	_, err = newClient(t, wsURL(srv), "admin", "wrong").Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")

	_, err = newClient(t, wsURL(srv), "", "").Ping(ctx)
	assert.Error(t, err)
}

func TestServer_RawFrames(t *testing.T) {
	srv := startBridge(t, simulator.New())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	// text messages are ignored, the next binary frame is answered
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02, 0x03}))

	messageType, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, messageType)

	f, err := otw.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, otw.MsgResult, f.Msg)
	assert.Equal(t, otw.ResponseError(otw.ErrDeserialize), f.Data)
}

func TestServer_HandlerError(t *testing.T) {
	failing := HandlerFunc(func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("boom")
	})
	srv := startBridge(t, failing)

	_, err := newClient(t, wsURL(srv), "", "").Ping(context.Background())
	assert.ErrorIs(t, err, otw.ErrUnknown)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.NewBridgeMetrics(prometheus.NewRegistry())
	srv := startBridge(t, simulator.New(simulator.WithFlashFault(otw.ErrFlashErase)), WithMetrics(m))
	c := newClient(t, wsURL(srv), "", "")
	ctx := context.Background()

	_, err := c.GetStats(ctx)
	require.NoError(t, err)
	_, err = c.GetStats(ctx)
	require.NoError(t, err)
	assert.Error(t, c.SaveConfig(ctx))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Frames.WithLabelValues("GetStats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("SaveConfig")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("FlashErase")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions))
	assert.Greater(t, testutil.ToFloat64(m.BytesOut), 0.0)
}

func TestServer_Unauthorized(t *testing.T) {
	srv := startBridge(t, simulator.New(), WithBasicAuth("admin", "secret"))

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
}

func TestClientHandler_Relay(t *testing.T) {
	ctx := context.Background()
	dev := simulator.New()

	// device <- bridge A <- ClientHandler <- bridge B <- client
	upstream := startBridge(t, dev)
	relay := ClientHandler{Client: newClient(t, wsURL(upstream), "", "")}
	downstream := startBridge(t, relay)
	c := newClient(t, wsURL(downstream), "", "")

	cfg := otw.DefaultConfig()
	cfg.DisableSmartMode()
	require.NoError(t, c.UploadConfig(ctx, cfg))
	assert.Equal(t, cfg, dev.ActiveConfig())

	got, err := c.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	// device errors pass through unchanged
	bad := cfg.Clone()
	bad.General.SleepAfter = 0
	err = c.UploadConfig(ctx, bad)
	assert.ErrorIs(t, err, otw.ErrDeserialize)
}

func TestClientHandler_Errors(t *testing.T) {
	unreachable := transport.NewClient(func(context.Context) (transport.Connection, string, error) {
		return nil, "", transport.ErrNoDevice
	})
	h := ClientHandler{Client: unreachable}

	reply, err := h.Handle(context.Background(), otw.MustEncode(otw.MsgPing, otw.Empty{}))
	require.NoError(t, err)
	f, err := otw.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, otw.ResponseError(otw.ErrUnknown), f.Data)

	reply, err = h.Handle(context.Background(), []byte{0xff})
	require.NoError(t, err)
	f, err = otw.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, otw.ResponseError(otw.ErrDeserialize), f.Data)
}

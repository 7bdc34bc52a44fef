// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Thermoquad/opilio/internal/logging"
	"github.com/Thermoquad/opilio/internal/metrics"
	"github.com/Thermoquad/opilio/pkg/otw"
)

// Option configures a Server
type Option func(*Server)

// WithBasicAuth requires HTTP Basic credentials on the upgrade request
func WithBasicAuth(username, password string) Option {
	return func(s *Server) {
		s.username, s.password = username, password
	}
}

// WithLogger sets the server logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logging.OrNop(l)
	}
}

// WithMetrics records sessions and traffic in m
func WithMetrics(m *metrics.BridgeMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server is an http.Handler that upgrades requests to websocket sessions
// and forwards their frames to a Handler
type Server struct {
	handler  Handler
	username string
	password string
	logger   *zap.Logger
	metrics  *metrics.BridgeMetrics
	upgrader websocket.Upgrader
}

// NewServer creates a bridge serving h
func NewServer(h Handler, opts ...Option) *Server {
	s := &Server{
		handler: h,
		logger:  zap.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  otw.MaxSerialDataSize,
			WriteBufferSize: otw.MaxSerialDataSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) authorized(r *http.Request) bool {
	if s.username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) == 1
	return userOK && passOK
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="opilio"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		s.logger.Warn("rejected unauthorized session", zap.String("remote", r.RemoteAddr))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(otw.MaxSerialDataSize)

	log := s.logger.With(zap.String("session", uuid.NewString()), zap.String("remote", r.RemoteAddr))
	log.Info("session opened")
	if s.metrics != nil {
		s.metrics.Sessions.Inc()
		s.metrics.SessionTotal.Inc()
		defer s.metrics.Sessions.Dec()
	}

	ctx := r.Context()
	for {
		messageType, req, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("session read failed", zap.Error(err))
			}
			break
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		reply, err := s.handler.Handle(ctx, req)
		if err != nil {
			log.Error("handler failed", zap.Error(err))
			reply, _ = errorReply(err)
		}
		s.observe(req, reply)

		if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			log.Warn("session write failed", zap.Error(err))
			break
		}
	}
	log.Info("session closed")
}

func (s *Server) observe(req, reply []byte) {
	if s.metrics == nil {
		return
	}
	s.metrics.BytesIn.Add(float64(len(req)))
	s.metrics.BytesOut.Add(float64(len(reply)))

	msg := "invalid"
	if f, err := otw.Decode(req); err == nil {
		msg = f.Msg.String()
	}
	s.metrics.Frames.WithLabelValues(msg).Inc()

	if f, err := otw.Decode(reply); err == nil {
		if resp, ok := f.Data.(otw.Response); ok && !resp.IsOK() {
			s.metrics.Errors.WithLabelValues(resp.Err.String()).Inc()
		}
	}
}

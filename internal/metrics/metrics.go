// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/opilio/pkg/otw"
)

const namespace = "opilio"

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler exposing reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// DeviceMetrics mirrors the controller's sensors and exchange outcomes
type DeviceMetrics struct {
	RPM         *prometheus.GaugeVec   // labels: channel=pump|fan1|fan2|fan3
	Temperature *prometheus.GaugeVec   // labels: sensor=liquid_in|liquid_out|ambient
	Exchanges   *prometheus.CounterVec // labels: result=ok|timeout|...
	SmartMode   prometheus.Gauge
	SleepAfter  prometheus.Gauge
}

// NewDeviceMetrics registers and returns the device metrics
func NewDeviceMetrics(reg prometheus.Registerer) *DeviceMetrics {
	m := &DeviceMetrics{
		RPM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rpm",
			Help:      "Last reported speed per channel.",
		}, []string{"channel"}),
		Temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last reported temperature per sensor.",
		}, []string{"sensor"}),
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Request/response exchanges with the controller by result.",
		}, []string{"result"}),
		SmartMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "smart_mode",
			Help:      "1 when smart mode is enabled on the controller.",
		}),
		SleepAfter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sleep_after_seconds",
			Help:      "Configured idle timeout of the controller.",
		}),
	}
	reg.MustRegister(m.RPM, m.Temperature, m.Exchanges, m.SmartMode, m.SleepAfter)
	return m
}

// ObserveStats records a sensor snapshot
func (m *DeviceMetrics) ObserveStats(s otw.Stats) {
	for _, id := range otw.AllFanIDs() {
		m.RPM.WithLabelValues(id.String()).Set(float64(s.RPM(id)))
	}
	m.Temperature.WithLabelValues("liquid_in").Set(float64(s.LiquidTemp))
	m.Temperature.WithLabelValues("liquid_out").Set(float64(s.LiquidOutTemp))
	m.Temperature.WithLabelValues("ambient").Set(float64(s.AmbientTemp))
}

// ObserveConfig records the configuration in effect
func (m *DeviceMetrics) ObserveConfig(c otw.Config) {
	if c.SmartModeEnabled() {
		m.SmartMode.Set(1)
	} else {
		m.SmartMode.Set(0)
	}
	m.SleepAfter.Set(float64(c.General.SleepAfter))
}

// ObserveExchange counts one exchange
func (m *DeviceMetrics) ObserveExchange(outcome otw.Outcome) {
	m.Exchanges.WithLabelValues(outcome.String()).Inc()
}

// BridgeMetrics counts websocket bridge traffic
type BridgeMetrics struct {
	Sessions     prometheus.Gauge
	SessionTotal prometheus.Counter
	Frames       *prometheus.CounterVec // labels: msg
	Errors       *prometheus.CounterVec // labels: kind
	BytesIn      prometheus.Counter
	BytesOut     prometheus.Counter
}

// NewBridgeMetrics registers and returns the bridge metrics
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "sessions",
			Help:      "Currently connected websocket sessions.",
		}),
		SessionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "sessions_total",
			Help:      "Accepted websocket sessions.",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "frames_total",
			Help:      "Frames forwarded by request command.",
		}, []string{"msg"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "errors_total",
			Help:      "Error replies by kind.",
		}, []string{"kind"}),
		BytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "received_bytes_total",
			Help:      "Bytes received from websocket clients.",
		}),
		BytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "sent_bytes_total",
			Help:      "Bytes sent to websocket clients.",
		}),
	}
	reg.MustRegister(m.Sessions, m.SessionTotal, m.Frames, m.Errors, m.BytesIn, m.BytesOut)
	return m
}

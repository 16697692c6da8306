// Package metrics holds the Prometheus collectors exported by tagrelay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Scan results recorded in ScansTotal.
const (
	ScanObject    = "object"
	ScanLocation  = "location"
	ScanUnknown   = "unknown"
	ScanReadError = "read_error"
)

// Metrics groups the collectors and the registry they are registered on.
type Metrics struct {
	Registry *prometheus.Registry

	ScansTotal            *prometheus.CounterVec
	TransmitTotal         *prometheus.CounterVec
	ReplayedTotal         prometheus.Counter
	DeliveryFailuresTotal prometheus.Counter
	FallbackQueueDepth    prometheus.Gauge
	BrokerConnected       prometheus.Gauge
	ConnectionTransitions *prometheus.CounterVec
}

// New creates collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagrelay_scans_total",
				Help: "Tag reads by classification result (count)",
			},
			[]string{"result"},
		),
		TransmitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagrelay_transmit_total",
				Help: "Composed messages by delivery method (count)",
			},
			[]string{"method"},
		),
		ReplayedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tagrelay_replayed_total",
				Help: "Fallback messages replayed to the broker (count)",
			},
		),
		DeliveryFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tagrelay_delivery_failures_total",
				Help: "Messages lost because broker and fallback both failed (count)",
			},
		),
		FallbackQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tagrelay_fallback_queue_depth",
				Help: "Messages waiting in the fallback file (count)",
			},
		),
		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tagrelay_broker_connected",
				Help: "Broker connection state (1=connected, 0=disconnected)",
			},
		),
		ConnectionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagrelay_connection_transitions_total",
				Help: "Broker connection state changes by target state (count)",
			},
			[]string{"to"},
		),
	}

	m.Registry.MustRegister(
		m.ScansTotal,
		m.TransmitTotal,
		m.ReplayedTotal,
		m.DeliveryFailuresTotal,
		m.FallbackQueueDepth,
		m.BrokerConnected,
		m.ConnectionTransitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SetConnected records the broker state.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.BrokerConnected.Set(1)
		m.ConnectionTransitions.WithLabelValues("connected").Inc()
		return
	}
	m.BrokerConnected.Set(0)
	m.ConnectionTransitions.WithLabelValues("disconnected").Inc()
}

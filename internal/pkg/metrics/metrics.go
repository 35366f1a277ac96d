/*
Package metrics defines the Prometheus collectors shared by the chat client and the relay.

A Metrics value owns its collectors and registers them on the registry it is built
with, so tests can use a private registry. All methods are safe on a nil *Metrics.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wschat"

// Metrics groups the client and relay counters.
type Metrics struct {
	InboundEvents  *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	OutboundFrames *prometheus.CounterVec
	BusDrops       prometheus.Counter
	RelayPeers     prometheus.Gauge
	RelayFrames    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
// A nil reg uses a fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "inbound_events_total",
			Help:      "Inbound protocol envelopes applied by chat sessions, by kind.",
		}, []string{"kind"}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "decode_failures_total",
			Help:      "Inbound frames dropped because they failed to decode, by layer.",
		}, []string{"layer"}),
		OutboundFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "outbound_frames_total",
			Help:      "Outbound frames handed to the transport, by result.",
		}, []string{"result"}),
		BusDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bus_drops_total",
			Help:      "Inbound frames dropped because a subscriber queue was full.",
		}),
		RelayPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "peers",
			Help:      "Registered peers currently connected to the relay.",
		}),
		RelayFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Frames broadcast by the relay, by kind.",
		}, []string{"kind"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.InboundEvents,
		m.DecodeFailures,
		m.OutboundFrames,
		m.BusDrops,
		m.RelayPeers,
		m.RelayFrames,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Inbound counts one applied inbound envelope of the given kind.
func (m *Metrics) Inbound(kind string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(kind).Inc()
}

// DecodeFailure counts one dropped frame at the given layer ("envelope" or "payload").
func (m *Metrics) DecodeFailure(layer string) {
	if m == nil {
		return
	}
	m.DecodeFailures.WithLabelValues(layer).Inc()
}

// Outbound counts one outbound frame with result "sent" or an error reason.
func (m *Metrics) Outbound(result string) {
	if m == nil {
		return
	}
	m.OutboundFrames.WithLabelValues(result).Inc()
}

// BusDrop counts one frame dropped by the broadcast bus.
func (m *Metrics) BusDrop() {
	if m == nil {
		return
	}
	m.BusDrops.Inc()
}

// PeerJoined increments the relay peer gauge.
func (m *Metrics) PeerJoined() {
	if m == nil {
		return
	}
	m.RelayPeers.Inc()
}

// PeerLeft decrements the relay peer gauge.
func (m *Metrics) PeerLeft() {
	if m == nil {
		return
	}
	m.RelayPeers.Dec()
}

// RelayFrame counts one frame of the given kind broadcast by the relay.
func (m *Metrics) RelayFrame(kind string) {
	if m == nil {
		return
	}
	m.RelayFrames.WithLabelValues(kind).Inc()
}

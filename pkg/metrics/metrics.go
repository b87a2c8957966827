// Package metrics holds the Prometheus collectors shared by the gateway,
// the subscription channel and the stores.
//
// A nil *Metrics is valid and records nothing, so components take one as an
// optional dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scribe"

// Metrics groups every collector the client exports.
type Metrics struct {
	EventsReceived *prometheus.CounterVec
	EventsApplied  *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	CommandCalls   *prometheus.HistogramVec
	CommandErrors  *prometheus.CounterVec
	Subscribers    *prometheus.GaugeVec
	StoreSize      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "events_received_total",
			Help:      "Raw event frames received per stream.",
		}, []string{"stream"}),
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_applied_total",
			Help:      "Events that changed a store collection.",
		}, []string{"store"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_dropped_total",
			Help:      "Events ignored by reconciliation, by reason.",
		}, []string{"store", "reason"}),
		CommandCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "command_duration_seconds",
			Help:      "Backend command latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "command_errors_total",
			Help:      "Backend command failures by error kind.",
		}, []string{"command", "kind"}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "subscribers",
			Help:      "Active snapshot subscribers per store.",
		}, []string{"store"}),
		StoreSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "entities",
			Help:      "Entities currently held per store.",
		}, []string{"store"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.EventsReceived,
		m.EventsApplied,
		m.EventsDropped,
		m.CommandCalls,
		m.CommandErrors,
		m.Subscribers,
		m.StoreSize,
	)
	return m
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Received(stream string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(stream).Inc()
}

func (m *Metrics) Applied(store string) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(store).Inc()
}

func (m *Metrics) Dropped(store, reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(store, reason).Inc()
}

// ObserveCommand records one gateway call. kind is empty on success.
func (m *Metrics) ObserveCommand(command string, elapsed time.Duration, kind string) {
	if m == nil {
		return
	}
	m.CommandCalls.WithLabelValues(command).Observe(elapsed.Seconds())
	if kind != "" {
		m.CommandErrors.WithLabelValues(command, kind).Inc()
	}
}

func (m *Metrics) SubscriberAdded(store string) {
	if m == nil {
		return
	}
	m.Subscribers.WithLabelValues(store).Inc()
}

func (m *Metrics) SubscriberRemoved(store string) {
	if m == nil {
		return
	}
	m.Subscribers.WithLabelValues(store).Dec()
}

func (m *Metrics) SetSize(store string, n int) {
	if m == nil {
		return
	}
	m.StoreSize.WithLabelValues(store).Set(float64(n))
}

// Package observability exposes the Prometheus metrics of the chat hub.
//
// Metrics tracked:
//   - live connections by kind (room|inbox)
//   - events delivered to connection handles by event type
//   - delivery failures by reason (buffer_full|closed|panic|other)
//   - fanout duration, dropped fanout jobs and notify target counts
//
// Every method is safe to call on a nil *Metrics so components can run
// without instrumentation in tests.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors used across the hub.
type Metrics struct {
	// ActiveConnections is the number of joined sessions.
	// Labels: kind (room|inbox)
	ActiveConnections *prometheus.GaugeVec

	// EventsDelivered counts events accepted by a connection's send buffer.
	// Labels: type (chat_message|notify_message|pong)
	EventsDelivered *prometheus.CounterVec

	// DeliveryFailures counts handles that could not take an event.
	// Labels: reason
	DeliveryFailures *prometheus.CounterVec

	// FanoutDuration measures one full dispatch of a committed message.
	FanoutDuration prometheus.Histogram

	// FanoutDropped counts committed messages that never reached a worker.
	FanoutDropped prometheus.Counter

	// NotifyTargets records how many inboxes one message was pushed to.
	NotifyTargets prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chatpulse_connections_active",
				Help: "Current number of joined sessions by kind",
			},
			[]string{"kind"},
		),

		EventsDelivered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatpulse_events_delivered_total",
				Help: "Total number of events handed to connection send buffers",
			},
			[]string{"type"},
		),

		DeliveryFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatpulse_delivery_failures_total",
				Help: "Total number of failed deliveries to a connection",
			},
			[]string{"reason"},
		),

		FanoutDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatpulse_fanout_duration_seconds",
				Help:    "Duration of one message fanout in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		FanoutDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "chatpulse_fanout_dropped_total",
				Help: "Total number of committed messages dropped before fanout",
			},
		),

		NotifyTargets: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatpulse_notify_targets",
				Help:    "Number of inbox notifications produced per message",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
	}
}

// ConnectionOpened increments the live connection gauge.
func (m *Metrics) ConnectionOpened(kind string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(kind).Inc()
}

// ConnectionClosed decrements the live connection gauge.
func (m *Metrics) ConnectionClosed(kind string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(kind).Dec()
}

func (m *Metrics) EventDelivered(eventType string) {
	if m == nil {
		return
	}
	m.EventsDelivered.WithLabelValues(eventType).Inc()
}

func (m *Metrics) DeliveryFailed(reason string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(reason).Inc()
}

// FanoutCompleted records the duration and the notify fan-width of a dispatch.
func (m *Metrics) FanoutCompleted(d time.Duration, notified int) {
	if m == nil {
		return
	}
	m.FanoutDuration.Observe(d.Seconds())
	m.NotifyTargets.Observe(float64(notified))
}

func (m *Metrics) FanoutDroppedInc() {
	if m == nil {
		return
	}
	m.FanoutDropped.Inc()
}

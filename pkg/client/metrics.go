package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the realtime layer and the
// optimistic mutation reconciler.
type Metrics struct {
	// Connection metrics
	status            prometheus.Gauge
	reconnectAttempts prometheus.Counter
	authFailures      prometheus.Counter

	// Event metrics
	eventsReceived *prometheus.CounterVec // by event name
	eventsSent     *prometheus.CounterVec // by event name
	eventsDropped  *prometheus.CounterVec // by reason

	// Mutation metrics
	mutations *prometheus.CounterVec // by kind and outcome
}

// NewMetrics registers the collectors against reg. A nil registerer creates
// unregistered collectors, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		status: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "socialite_realtime_status",
				Help: "Current realtime connection status (0=disconnected, 1=connecting, 2=connected, 3=authenticated, 4=auth_failed)",
			},
		),
		reconnectAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "socialite_realtime_reconnect_attempts_total",
				Help: "Total number of automatic reconnection attempts",
			},
		),
		authFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "socialite_realtime_auth_failures_total",
				Help: "Total number of rejected socket authentications",
			},
		),
		eventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialite_realtime_events_received_total",
				Help: "Total number of inbound socket events by name",
			},
			[]string{"event"},
		),
		eventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialite_realtime_events_sent_total",
				Help: "Total number of outbound socket events by name",
			},
			[]string{"event"},
		),
		eventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialite_realtime_events_dropped_total",
				Help: "Inbound frames discarded before dispatch, by reason",
			},
			[]string{"reason"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialite_optimistic_mutations_total",
				Help: "Settled optimistic mutations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
}

// RecordStatus publishes the current connection status
func (m *Metrics) RecordStatus(s Status) {
	if m == nil {
		return
	}
	m.status.Set(float64(s))
}

// RecordReconnectAttempt increments the reconnect counter
func (m *Metrics) RecordReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// RecordAuthFailure increments the auth rejection counter
func (m *Metrics) RecordAuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

// RecordEventReceived increments the inbound counter for an event name
func (m *Metrics) RecordEventReceived(name string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(name).Inc()
}

// RecordEventSent increments the outbound counter for an event name
func (m *Metrics) RecordEventSent(name string) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(name).Inc()
}

// RecordEventDropped increments the dropped-frame counter
func (m *Metrics) RecordEventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordMutation counts a settled optimistic mutation. It satisfies
// reconcile.Observer.
func (m *Metrics) RecordMutation(kind, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, outcome).Inc()
}

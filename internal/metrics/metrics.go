// Package metrics exposes Prometheus collectors for presence, event routing and workflows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector owned by the realtime layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Live connections, split by whether an identity is bound.
	Connections *prometheus.GaugeVec

	// Frames handed to connections by channel kind ("role", "user").
	Delivered *prometheus.CounterVec

	// Frames dropped because a connection's send buffer was full.
	SlowConsumerDrops prometheus.Counter

	// Publishes that found nobody joined, by channel kind.
	EmptyPublishes *prometheus.CounterVec

	// Events accepted or rejected at the dispatcher, by event type and outcome.
	Events *prometheus.CounterVec

	// Workflow transitions by workflow, target status and outcome.
	Transitions *prometheus.CounterVec

	// Job and event postings by kind and outcome.
	Postings *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alumnet_presence_connections",
			Help: "Live websocket connections by authentication state",
		}, []string{"state"}), // state: "unbound", "bound"

		Delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnet_router_delivered_total",
			Help: "Frames handed to connection send buffers by channel kind",
		}, []string{"kind"}),

		SlowConsumerDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "alumnet_router_slow_consumer_drops_total",
			Help: "Frames dropped because the receiving connection buffer was full",
		}),

		EmptyPublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnet_router_empty_publishes_total",
			Help: "Publishes to channels with zero members by channel kind",
		}, []string{"kind"}),

		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnet_dispatcher_events_total",
			Help: "Events seen by the dispatcher by type and outcome",
		}, []string{"type", "outcome"}), // outcome: "emitted", "invalid"

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnet_workflow_transitions_total",
			Help: "Workflow transition attempts by workflow, status and outcome",
		}, []string{"workflow", "status", "outcome"}),

		Postings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnet_postings_total",
			Help: "Posting attempts by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "created", "rejected", "announce_failed"
	}
}

// ConnectionOpened counts a new unbound connection.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.WithLabelValues("unbound").Inc()
	}
}

// ConnectionBound moves one connection from unbound to bound.
func (m *Metrics) ConnectionBound() {
	if m != nil {
		m.Connections.WithLabelValues("unbound").Dec()
		m.Connections.WithLabelValues("bound").Inc()
	}
}

// ConnectionClosed removes one connection in the given state.
func (m *Metrics) ConnectionClosed(bound bool) {
	if m == nil {
		return
	}
	if bound {
		m.Connections.WithLabelValues("bound").Dec()
		return
	}
	m.Connections.WithLabelValues("unbound").Dec()
}

// ConnectionsReset zeroes the connection gauges on shutdown.
func (m *Metrics) ConnectionsReset() {
	if m != nil {
		m.Connections.WithLabelValues("unbound").Set(0)
		m.Connections.WithLabelValues("bound").Set(0)
	}
}

// AddDelivered records n frames delivered on a channel of the given kind.
func (m *Metrics) AddDelivered(kind string, n int) {
	if m != nil && n > 0 {
		m.Delivered.WithLabelValues(kind).Add(float64(n))
	}
}

// AddSlowConsumerDrops records n frames dropped on full buffers.
func (m *Metrics) AddSlowConsumerDrops(n int) {
	if m != nil && n > 0 {
		m.SlowConsumerDrops.Add(float64(n))
	}
}

// IncEmptyPublish records a publish that reached nobody.
func (m *Metrics) IncEmptyPublish(kind string) {
	if m != nil {
		m.EmptyPublishes.WithLabelValues(kind).Inc()
	}
}

// IncEvent records a dispatcher outcome.
func (m *Metrics) IncEvent(eventType, outcome string) {
	if m != nil {
		m.Events.WithLabelValues(eventType, outcome).Inc()
	}
}

// IncTransition records a workflow transition attempt.
func (m *Metrics) IncTransition(workflow, status, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(workflow, status, outcome).Inc()
	}
}

// IncPosting records a posting outcome.
func (m *Metrics) IncPosting(kind, outcome string) {
	if m != nil {
		m.Postings.WithLabelValues(kind, outcome).Inc()
	}
}

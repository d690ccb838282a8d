package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatrelay"

// Metrics groups the relay counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	sessionsActive     prometheus.Gauge
	eventsPublished    *prometheus.CounterVec
	laggedEvents       prometheus.Counter
	floodKicks         prometheus.Counter
	connectionsRefused prometheus.Counter
	connectionsAdmit   prometheus.Counter
}

// NewMetrics registers every collector on a dedicated registry so that
// several relays (tests) can live in the same process.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently attached to the event bus.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events published on the bus, by kind.",
		}, []string{"kind"}),
		laggedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "lagged_events_total",
			Help:      "Events skipped by subscribers that fell behind the ring capacity.",
		}),
		floodKicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "abuse",
			Name:      "flood_kicks_total",
			Help:      "Sessions terminated for exceeding the message rate.",
		}),
		connectionsRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "connections_refused_total",
			Help:      "Connections dropped because the address is banned.",
		}),
		connectionsAdmit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "connections_admitted_total",
			Help:      "Connections that started a session.",
		}),
	}
	m.Registry.MustRegister(
		m.sessionsActive,
		m.eventsPublished,
		m.laggedEvents,
		m.floodKicks,
		m.connectionsRefused,
		m.connectionsAdmit,
	)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) ConnectionAdmitted() {
	if m == nil {
		return
	}
	m.connectionsAdmit.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) EventPublished(kind string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventsLagged(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.laggedEvents.Add(float64(n))
}

func (m *Metrics) FloodKicked() {
	if m == nil {
		return
	}
	m.floodKicks.Inc()
}

func (m *Metrics) ConnectionRefused() {
	if m == nil {
		return
	}
	m.connectionsRefused.Inc()
}

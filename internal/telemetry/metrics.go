package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts what the recorder and aggregator swallow, so a telemetry
// outage stays visible without reaching API responses.
type Metrics struct {
	recorded     prometheus.Counter
	dropped      *prometheus.CounterVec
	queryFailure *prometheus.CounterVec
}

// NewMetrics creates the telemetry counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstats",
			Name:      "calls_recorded_total",
			Help:      "Call events appended to the event store.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callstats",
			Name:      "calls_dropped_total",
			Help:      "Call events lost because recording failed.",
		}, []string{"reason"}),
		queryFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callstats",
			Name:      "stats_query_failures_total",
			Help:      "Aggregator queries that fell back to their default value.",
		}, []string{"query", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.recorded, m.dropped, m.queryFailure)
	}
	return m
}

func (m *Metrics) incRecorded() {
	if m != nil {
		m.recorded.Inc()
	}
}

func (m *Metrics) incDropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) incQueryFailure(query, reason string) {
	if m != nil {
		m.queryFailure.WithLabelValues(query, reason).Inc()
	}
}

package network

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the behavioral network.
type Metrics struct {
	SignalsAccepted   prometheus.Counter
	SignalsDropped    prometheus.Counter
	SignalsProcessed  prometheus.Counter
	BatchSize         prometheus.Histogram
	CycleDuration     prometheus.Histogram
	CyclesTotal       *prometheus.CounterVec
	InsightsTotal     *prometheus.CounterVec
	AgentFailures     *prometheus.CounterVec
	AgentDuration     *prometheus.HistogramVec
	TriggersGenerated *prometheus.CounterVec
	TriggersExecuted  *prometheus.CounterVec
	TriggersExpired   prometheus.Counter
	DeferredDropped   prometheus.Counter
	QueueDepth        *prometheus.GaugeVec
}

// NewMetrics registers and returns network metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_signals_accepted_total",
			Help: "Signals accepted into the per-category queues.",
		}),
		SignalsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_signals_dropped_total",
			Help: "Signals dropped because their category queue was full.",
		}),
		SignalsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_signals_processed_total",
			Help: "Signals drained and analyzed by completed cycles.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_cycle_batch_size",
			Help:    "Signals collected per cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. ~2048
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_cycle_duration_seconds",
			Help:    "Duration of analysis cycles in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_cycles_total",
			Help: "Total cycles by outcome.",
		}, []string{"outcome"}),
		InsightsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_insights_total",
			Help: "Insights produced, by agent.",
		}, []string{"agent"}),
		AgentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_agent_failures_total",
			Help: "Agent runs discarded after a panic, by agent.",
		}, []string{"agent"}),
		AgentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_agent_duration_seconds",
			Help:    "Per-agent batch processing time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"agent"}),
		TriggersGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_triggers_generated_total",
			Help: "Triggers created, by type.",
		}, []string{"type"}),
		TriggersExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_triggers_executed_total",
			Help: "Trigger delivery attempts by outcome.",
		}, []string{"outcome"}),
		TriggersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_triggers_expired_total",
			Help: "Triggers discarded past their expiration.",
		}),
		DeferredDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_triggers_deferred_dropped_total",
			Help: "Triggers lost to a full deferred queue.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_signal_queue_depth",
			Help: "Current per-category signal queue depth.",
		}, []string{"signal_type"}),
	}

	reg.MustRegister(
		m.SignalsAccepted,
		m.SignalsDropped,
		m.SignalsProcessed,
		m.BatchSize,
		m.CycleDuration,
		m.CyclesTotal,
		m.InsightsTotal,
		m.AgentFailures,
		m.AgentDuration,
		m.TriggersGenerated,
		m.TriggersExecuted,
		m.TriggersExpired,
		m.DeferredDropped,
		m.QueueDepth,
	)

	return m
}

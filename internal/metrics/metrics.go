package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
	// OutcomeDropped labels notifications discarded by filtering, rate limiting or a full queue.
	OutcomeDropped = "dropped"
)

const namespace = "ratip"

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of operator queries handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_seconds",
			Help:      "Query latency in seconds, summarizer included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
	)

	correlationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correlations_total",
			Help:      "Correlated events produced by the engine.",
		},
	)

	summariesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Query answers partitioned by source (external or fallback).",
		},
		[]string{"source"},
	)

	windowSamples = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_samples",
			Help:      "Telemetry samples currently retained in the recency window.",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Correlation notifications partitioned by sender and outcome.",
		},
		[]string{"sender", "outcome"},
	)

	ingestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_total",
			Help:      "Ingested records partitioned by kind (telemetry, alarm) and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// Register attaches ratip collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		queriesTotal,
		queryDurationSeconds,
		correlationsTotal,
		summariesTotal,
		windowSamples,
		notificationsTotal,
		ingestedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveQuery records a query duration and outcome label.
func ObserveQuery(duration time.Duration, outcome string) {
	queriesTotal.WithLabelValues(normaliseOutcome(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	queryDurationSeconds.Observe(duration.Seconds())
}

// AddCorrelations counts produced correlated events.
func AddCorrelations(n int) {
	if n > 0 {
		correlationsTotal.Add(float64(n))
	}
}

// ObserveSummary counts an answer by its source.
func ObserveSummary(source string) {
	summariesTotal.WithLabelValues(source).Inc()
}

// SetWindowSamples publishes the current window size.
func SetWindowSamples(n int) {
	windowSamples.Set(float64(n))
}

// ObserveNotification counts a notification attempt.
func ObserveNotification(sender, outcome string) {
	notificationsTotal.WithLabelValues(sender, outcome).Inc()
}

// ObserveIngest counts an ingested record.
func ObserveIngest(kind, outcome string) {
	ingestedTotal.WithLabelValues(kind, normaliseOutcome(outcome)).Inc()
}

func normaliseOutcome(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return OutcomeError
}

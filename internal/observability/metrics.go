// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Search metrics
	SearchesStarted     *prometheus.CounterVec
	SearchesFinished    *prometheus.CounterVec
	ActiveSearches      prometheus.Gauge
	CombinationsDrawn   prometheus.Counter
	CorrelationRejected prometheus.Counter
	CandidatesEvaluated prometheus.Counter
	CandidatesSkipped   *prometheus.CounterVec
	DatabankAccepted    prometheus.Counter

	// Analysis metrics
	AnalysisDuration *prometheus.HistogramVec
	ReportCacheHits  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_databank"
	}

	return &Metrics{
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "started_total",
			Help:      "Total number of searches started, by enumeration mode",
		}, []string{"mode"}),
		SearchesFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "finished_total",
			Help:      "Total number of searches finished, by terminal status",
		}, []string{"status"}),
		ActiveSearches: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "active",
			Help:      "Number of searches currently running or paused",
		}),
		CombinationsDrawn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "combinations_drawn_total",
			Help:      "Total number of strategy combinations drawn",
		}),
		CorrelationRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "correlation_rejected_total",
			Help:      "Total number of combinations rejected by the correlation gate",
		}),
		CandidatesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of portfolios analyzed",
		}),
		CandidatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates_skipped_total",
			Help:      "Total number of portfolios skipped after analysis, by reason",
		}, []string{"reason"}),
		DatabankAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "databank_accepted_total",
			Help:      "Total number of portfolios accepted into a databank",
		}),
		AnalysisDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Time spent analyzing one trade list",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"kind"}),
		ReportCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "report_cache_lookups_total",
			Help:      "Report cache lookups, by result",
		}, []string{"result"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSearchStarted counts a search entering its enumeration phase.
func RecordSearchStarted(mode string) {
	DefaultMetrics.SearchesStarted.WithLabelValues(mode).Inc()
	DefaultMetrics.ActiveSearches.Inc()
}

// RecordSearchFinished counts a search reaching a terminal state.
func RecordSearchFinished(status string, started bool) {
	DefaultMetrics.SearchesFinished.WithLabelValues(status).Inc()
	if started {
		DefaultMetrics.ActiveSearches.Dec()
	}
}

// RecordCombinationDrawn counts one draw and whether the correlation gate rejected it.
func RecordCombinationDrawn(rejected bool) {
	DefaultMetrics.CombinationsDrawn.Inc()
	if rejected {
		DefaultMetrics.CorrelationRejected.Inc()
	}
}

// RecordCandidate counts one analyzed portfolio and whether the databank kept it.
func RecordCandidate(accepted bool) {
	DefaultMetrics.CandidatesEvaluated.Inc()
	if accepted {
		DefaultMetrics.DatabankAccepted.Inc()
	}
}

// RecordCandidateSkipped counts a portfolio dropped before reaching the databank.
func RecordCandidateSkipped(reason string) {
	DefaultMetrics.CandidatesSkipped.WithLabelValues(reason).Inc()
}

// RecordAnalysis records analysis latency for a strategy, portfolio or candidate.
func RecordAnalysis(kind string, seconds float64) {
	DefaultMetrics.AnalysisDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordCacheLookup records a report cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.ReportCacheHits.WithLabelValues(result).Inc()
}

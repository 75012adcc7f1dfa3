package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eldertech"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "LLM tokens consumed",
		},
		[]string{"operation", "kind"},
	)

	FAQAsks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_asks_total",
			Help:      "FAQ questions answered by source",
		},
		[]string{"source"},
	)

	AnalysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_analysis_runs_total",
			Help:      "FAQ analysis runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "faq_analysis_duration_seconds",
			Help:      "Wall time of FAQ analysis runs",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	AnalysisDegradations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faq_analysis_degradations_total",
			Help:      "Degraded pipeline stages",
		},
		[]string{"kind"},
	)

	AnalysisClusters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "faq_analysis_clusters",
			Help:      "Clusters in the latest report",
		},
	)

	AnalysisGaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "faq_analysis_gaps",
			Help:      "Gaps in the latest report",
		},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg. Subsequent calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			HTTPRequests,
			HTTPDuration,
			LLMTokensUsed,
			FAQAsks,
			AnalysisRuns,
			AnalysisDuration,
			AnalysisDegradations,
			AnalysisClusters,
			AnalysisGaps,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

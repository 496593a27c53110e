package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	ingestRunTotal    *prometheus.CounterVec
	ingestRunDuration prometheus.Histogram
	candidateTotal    *prometheus.CounterVec

	embeddingTotal    *prometheus.CounterVec
	embeddingDuration *prometheus.HistogramVec

	summarizerTotal    *prometheus.CounterVec
	summarizerDuration *prometheus.HistogramVec

	retrievalTotal    *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievalResults  prometheus.Histogram

	recordsTotal *prometheus.GaugeVec
	vectorsTotal prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			ingestRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ingest_runs_total",
					Help: "Total ingestion runs by status.",
				},
				[]string{"status"},
			),
			ingestRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "ingest_run_duration_seconds",
					Help:    "Ingestion run duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			candidateTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ingest_candidates_total",
					Help: "Total summarizer candidates by outcome.",
				},
				[]string{"outcome"},
			),
			embeddingTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedding_requests_total",
					Help: "Total embedding requests by provider and status.",
				},
				[]string{"provider", "status"},
			),
			embeddingDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "embedding_request_duration_seconds",
					Help:    "Embedding request duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			summarizerTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "summarizer_requests_total",
					Help: "Total summarizer requests by provider and status.",
				},
				[]string{"provider", "status"},
			),
			summarizerDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "summarizer_request_duration_seconds",
					Help:    "Summarizer request duration in seconds by provider.",
					Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"provider"},
			),
			retrievalTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "retrieval_queries_total",
					Help: "Total retrieval queries by status.",
				},
				[]string{"status"},
			),
			retrievalDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "retrieval_duration_seconds",
					Help:    "Retrieval query duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			retrievalResults: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "retrieval_results",
					Help:    "Result count distribution per retrieval query.",
					Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
				},
			),
			recordsTotal: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "memory_records",
					Help: "Stored memory records by embedding status.",
				},
				[]string{"status"},
			),
			vectorsTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_vectors",
					Help: "Rows in the vector index.",
				},
			),
		}

		prometheus.MustRegister(
			m.ingestRunTotal,
			m.ingestRunDuration,
			m.candidateTotal,
			m.embeddingTotal,
			m.embeddingDuration,
			m.summarizerTotal,
			m.summarizerDuration,
			m.retrievalTotal,
			m.retrievalDuration,
			m.retrievalResults,
			m.recordsTotal,
			m.vectorsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordIngestRun(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.ingestRunTotal.WithLabelValues(status).Inc()
	m.ingestRunDuration.Observe(duration.Seconds())
}

// RecordCandidate counts one summarizer candidate by its ingestion
// outcome: committed, pending, noise, duplicate or dropped.
func RecordCandidate(outcome string) {
	getMetrics().candidateTotal.WithLabelValues(outcome).Inc()
}

func RecordEmbedding(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.embeddingTotal.WithLabelValues(provider, status).Inc()
	m.embeddingDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordSummarizer(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.summarizerTotal.WithLabelValues(provider, status).Inc()
	m.summarizerDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordRetrieval(duration time.Duration, results int, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.retrievalTotal.WithLabelValues(status).Inc()
	m.retrievalDuration.Observe(duration.Seconds())
	if success {
		m.retrievalResults.Observe(float64(results))
	}
}

func SetStoreCounts(ready, pending, vectors int) {
	m := getMetrics()
	m.recordsTotal.WithLabelValues("ready").Set(float64(ready))
	m.recordsTotal.WithLabelValues("pending").Set(float64(pending))
	m.vectorsTotal.Set(float64(vectors))
}

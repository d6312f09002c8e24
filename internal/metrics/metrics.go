// Package metrics exposes process-wide Prometheus metrics for the query
// pipeline: latency, segments returned, and budget utilization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	queryDuration    *prometheus.HistogramVec
	queriesPerAsk    prometheus.Histogram
	segmentsReturned prometheus.Histogram
	segmentLength    prometheus.Histogram
	budgetUtilized   prometheus.Histogram
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// New creates the collectors on a fresh registry, so tests and embedded use
// never collide on the global default registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query pipeline latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"operation", "status"}),
		queriesPerAsk: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "query",
			Name:      "search_queries",
			Help:      "Search queries fanned out per pipeline run.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		segmentsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "segments",
			Name:      "returned",
			Help:      "Segments returned per pipeline run.",
			Buckets:   prometheus.LinearBuckets(0, 1, 12),
		}),
		segmentLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "segments",
			Name:      "length_chunks",
			Help:      "Length in chunks of each returned segment.",
			Buckets:   prometheus.LinearBuckets(1, 1, 20),
		}),
		budgetUtilized: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "segments",
			Name:      "budget_utilization",
			Help:      "Fraction of the effective chunk budget consumed per run.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Answer cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Answer cache misses.",
		}),
	}
}

// Registry returns the registry backing these collectors, for the /metrics
// handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveQuery records one pipeline run.
func (m *Metrics) ObserveQuery(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.queryDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// ObserveExtraction records the extraction outcome of one run.
func (m *Metrics) ObserveExtraction(numQueries int, segmentLengths []int, effectiveBudget int) {
	m.queriesPerAsk.Observe(float64(numQueries))
	m.segmentsReturned.Observe(float64(len(segmentLengths)))

	total := 0
	for _, l := range segmentLengths {
		m.segmentLength.Observe(float64(l))
		total += l
	}
	if effectiveBudget > 0 {
		m.budgetUtilized.Observe(float64(total) / float64(effectiveBudget))
	}
}

// ObserveCache records an answer cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

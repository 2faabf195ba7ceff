// Package metrics exposes Prometheus collectors for the crawl-and-notify pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	gatherer         prometheus.Gatherer
	documentsTotal   *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	dispatchesTotal  *prometheus.CounterVec
	rerankDegraded   prometheus.Counter
	stageDuration    *prometheus.HistogramVec
	lastCrawlEndUnix prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papernotifier_documents_total",
				Help: "Feed entries processed by the indexer, labeled by write outcome.",
			},
			[]string{"outcome"},
		),
		fetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papernotifier_fetch_failures_total",
				Help: "Category fetches that failed or timed out.",
			},
			[]string{"category"},
		),
		dispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papernotifier_dispatches_total",
				Help: "Per-keyword notification attempts, labeled by status.",
			},
			[]string{"status"},
		),
		rerankDegraded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "papernotifier_rerank_degraded_total",
				Help: "Rerank calls that fell back to retrieval order.",
			},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "papernotifier_stage_duration_seconds",
				Help:    "Duration of pipeline stages.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		lastCrawlEndUnix: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "papernotifier_last_crawl_end_seconds",
				Help: "Unix time of the last persisted crawl window end.",
			},
		),
	}
}

// Handler returns an http.Handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveDocument counts one processed entry.
func (m *Metrics) ObserveDocument(outcome string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchFailure counts a failed category fetch.
func (m *Metrics) ObserveFetchFailure(category string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(category).Inc()
}

// ObserveDispatch counts a per-keyword dispatch result.
func (m *Metrics) ObserveDispatch(status string) {
	if m == nil {
		return
	}
	m.dispatchesTotal.WithLabelValues(status).Inc()
}

// ObserveRerankDegraded counts a reranker fallback.
func (m *Metrics) ObserveRerankDegraded() {
	if m == nil {
		return
	}
	m.rerankDegraded.Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetLastCrawlEnd exports the persisted window end.
func (m *Metrics) SetLastCrawlEnd(t time.Time) {
	if m == nil {
		return
	}
	m.lastCrawlEndUnix.Set(float64(t.Unix()))
}

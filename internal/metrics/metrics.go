// Package metrics exposes crawl instrumentation over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the crawl collectors. Each instance carries its own registry
// so tests can create as many as they need without collisions.
type Metrics struct {
	reg *prometheus.Registry

	chaptersTotal *prometheus.CounterVec
	retriesTotal  prometheus.Counter
	fetchDuration prometheus.Histogram
	activeWorkers prometheus.Gauge
	delaySeconds  prometheus.Histogram
}

// New registers the crawl collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		chaptersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "novelgrab",
			Name:      "chapters_total",
			Help:      "Chapters by terminal status.",
		}, []string{"status"}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "novelgrab",
			Name:      "retries_total",
			Help:      "Fetch attempts beyond the first.",
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "novelgrab",
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of chapter fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "novelgrab",
			Name:      "active_workers",
			Help:      "Workers currently fetching.",
		}),
		delaySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "novelgrab",
			Name:      "delay_seconds",
			Help:      "Politeness delays before fetch attempts.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30},
		}),
	}
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ChapterDone counts a successfully stored chapter.
func (m *Metrics) ChapterDone() { m.chaptersTotal.WithLabelValues("done").Inc() }

// ChapterFailed counts a chapter that ended in the given failure kind.
func (m *Metrics) ChapterFailed(kind string) { m.chaptersTotal.WithLabelValues(kind).Inc() }

// RetryObserved counts one retry attempt.
func (m *Metrics) RetryObserved() { m.retriesTotal.Inc() }

// FetchObserved records the duration of one fetch attempt.
func (m *Metrics) FetchObserved(seconds float64) { m.fetchDuration.Observe(seconds) }

// WorkerStarted and WorkerStopped track the active worker gauge.
func (m *Metrics) WorkerStarted() { m.activeWorkers.Inc() }
func (m *Metrics) WorkerStopped() { m.activeWorkers.Dec() }

// DelayObserved records a politeness delay.
func (m *Metrics) DelayObserved(seconds float64) { m.delaySeconds.Observe(seconds) }

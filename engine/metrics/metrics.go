// Package metrics is the Prometheus instrumentation layer supplemented by
// this expansion (SPEC_FULL.md §9): build counts, cache hit ratio, and
// embedding latency, grounded on the teacher's direct dependency
// github.com/prometheus/client_golang, otherwise unused by any retrieved
// core file.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the process-wide metric collectors. A nil *Recorder is
// valid and every method on it is a no-op, so wiring metrics is optional.
type Recorder struct {
	registry *prometheus.Registry

	buildsTotal     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	embeddingLatency *prometheus.HistogramVec
	repairQueued    prometheus.Counter
}

// New constructs a Recorder registered against its own Registry, so a test
// can instantiate many Recorders without colliding on the default
// registerer.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		buildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemograph",
			Name:      "artifact_builds_total",
			Help:      "Number of cluster/topic/graph artifact builds, by artifact and outcome.",
		}, []string{"artifact", "outcome"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemograph",
			Name:      "result_cache_hits_total",
			Help:      "Result cache hits, by artifact.",
		}, []string{"artifact"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemograph",
			Name:      "result_cache_misses_total",
			Help:      "Result cache misses, by artifact.",
		}, []string{"artifact"}),
		embeddingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mnemograph",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding Gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		repairQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemograph",
			Name:      "repair_queue_entries_total",
			Help:      "Memories queued for embedding repair.",
		}),
	}

	reg.MustRegister(r.buildsTotal, r.cacheHits, r.cacheMisses, r.embeddingLatency, r.repairQueued)
	return r
}

// Handler exposes the registry in the Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveBuild records one artifact build attempt. outcome is "fresh",
// "stale", or "error".
func (r *Recorder) ObserveBuild(artifact, outcome string) {
	if r == nil {
		return
	}
	r.buildsTotal.WithLabelValues(artifact, outcome).Inc()
}

// ObserveCache records a result-cache lookup outcome.
func (r *Recorder) ObserveCache(artifact string, hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.cacheHits.WithLabelValues(artifact).Inc()
		return
	}
	r.cacheMisses.WithLabelValues(artifact).Inc()
}

// ObserveEmbeddingLatency records how long a single embedding call took.
func (r *Recorder) ObserveEmbeddingLatency(task string, d time.Duration) {
	if r == nil {
		return
	}
	r.embeddingLatency.WithLabelValues(task).Observe(d.Seconds())
}

// IncRepairQueued records one memory queued for repair.
func (r *Recorder) IncRepairQueued() {
	if r == nil {
		return
	}
	r.repairQueued.Inc()
}

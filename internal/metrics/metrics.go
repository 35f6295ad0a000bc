// Package metrics exposes pipeline outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/assetc/internal/pipeline"
)

const namespace = "assetc"

// Recorder counts pipeline outcomes per backend and status.
type Recorder struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry, which also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline runs by backend and terminal status.",
		}, []string{"backend", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of pipeline runs that reached a staleness decision.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"backend", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Failed pipeline runs by backend and stage.",
		}, []string{"backend", "stage"}),
	}

	r.registry.MustRegister(
		r.outcomes,
		r.duration,
		r.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe records out.
func (r *Recorder) Observe(_ context.Context, _ *pipeline.Request, out pipeline.Outcome) {
	status := string(out.Status)
	r.outcomes.WithLabelValues(out.Backend, status).Inc()

	switch out.Status {
	case pipeline.StatusCompiled, pipeline.StatusSkipped:
		r.duration.WithLabelValues(out.Backend, status).Observe(out.Duration.Seconds())
	case pipeline.StatusFailed:
		r.duration.WithLabelValues(out.Backend, status).Observe(out.Duration.Seconds())
		r.failures.WithLabelValues(out.Backend, out.FailedAt().String()).Inc()
	}
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

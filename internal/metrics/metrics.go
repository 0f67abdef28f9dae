// Package metrics exposes Prometheus instruments for the avatar pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Uploads counts avatar uploads by outcome and times the pipeline.
type Uploads struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewUploads registers the upload instruments on reg.
func NewUploads(reg prometheus.Registerer) *Uploads {
	u := &Uploads{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "profilepic",
			Name:      "avatar_uploads_total",
			Help:      "Avatar uploads by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "profilepic",
			Name:      "avatar_upload_duration_seconds",
			Help:      "Time spent validating, transcoding and storing an avatar.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
	}

	reg.MustRegister(u.total, u.duration)

	return u
}

// ObserveUpload records one pipeline run.
func (u *Uploads) ObserveUpload(outcome string, elapsed time.Duration) {
	u.total.WithLabelValues(outcome).Inc()
	u.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

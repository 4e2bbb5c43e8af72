// Package metrics - Prometheus instrumentation for the monitoring pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline holds the counters the monitor and its components update.
type Pipeline struct {
	registry *prometheus.Registry

	// FramesPolled counts preview frames fed to the motion gate.
	FramesPolled prometheus.Counter
	// TriggersFired counts accepted motion triggers.
	TriggersFired prometheus.Counter
	// TriggersDropped counts triggers suppressed because the worker slot
	// was occupied.
	TriggersDropped prometheus.Counter
	// Detections counts classified objects by class label.
	Detections *prometheus.CounterVec
	// CaptureErrors counts failed high-res captures.
	CaptureErrors prometheus.Counter
	// PersistErrors counts failed stats or artifact writes.
	PersistErrors prometheus.Counter
}

// NewPipeline builds and registers the pipeline collectors on a fresh
// registry, so tests can hold independent instances.
func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()
	p := &Pipeline{
		registry: reg,
		FramesPolled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel", Name: "frames_polled_total",
			Help: "Preview frames fed to the motion gate.",
		}),
		TriggersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel", Name: "triggers_fired_total",
			Help: "Motion triggers accepted by the gate.",
		}),
		TriggersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel", Name: "triggers_dropped_total",
			Help: "Triggers dropped because a capture was already in flight.",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel", Name: "detections_total",
			Help: "Classified objects by class.",
		}, []string{"class"}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel", Name: "capture_errors_total",
			Help: "Failed high resolution captures.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel", Name: "persist_errors_total",
			Help: "Failed stats or artifact writes.",
		}),
	}
	reg.MustRegister(
		p.FramesPolled, p.TriggersFired, p.TriggersDropped,
		p.Detections, p.CaptureErrors, p.PersistErrors,
	)
	return p
}

// Handler exposes the registry for an HTTP scrape endpoint.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

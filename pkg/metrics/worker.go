package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics records outbox worker delivery outcomes.
type WorkerMetrics struct {
	duration  *prometheus.HistogramVec
	published *prometheus.CounterVec
	failure   *prometheus.CounterVec
}

// NewWorkerMetrics registers the worker metrics on the provided registerer.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_delivery_duration_seconds",
		Help:    "Duration of outbox event deliveries in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published",
		Help: "Outbox events delivered successfully.",
	}, []string{"event_type"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed",
		Help: "Outbox event deliveries that failed.",
	}, []string{"event_type"})
	reg.MustRegister(duration, published, failure)
	return &WorkerMetrics{
		duration:  duration,
		published: published,
		failure:   failure,
	}
}

// ObserveDelivery records the duration for the given event type.
func (w *WorkerMetrics) ObserveDelivery(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncPublished increments the published counter for the given event type.
func (w *WorkerMetrics) IncPublished(eventType string) {
	if w == nil || w.published == nil {
		return
	}
	w.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailure increments the failure counter for the given event type.
func (w *WorkerMetrics) IncFailure(eventType string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(eventType)).Inc()
}

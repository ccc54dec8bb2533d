package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// AI provider metrics
	AIRequests *prometheus.CounterVec
	AILatency  *prometheus.HistogramVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
	EventsHandled   *prometheus.CounterVec

	// Email metrics
	EmailsSent *prometheus.CounterVec
}

// New registers the application metrics on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of AI provider calls",
		}, []string{"operation", "status"}),
		AILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Duration of AI provider calls",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of domain events published",
		}, []string{"type", "status"}),
		EventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Total number of domain events handled by the worker",
		}, []string{"type", "status"}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of notification emails",
		}, []string{"kind", "status"}),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry(), "nop")
}

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-read-marker/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "read_marker"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry  *prometheus.Registry
	reactions *prometheus.CounterVec
	fetches   *prometheus.CounterVec
	events    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaction_calls_total",
			Help:      "Marker reaction writes sent to the backend.",
		}, []string{"op", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_fetches_total",
			Help:      "Thread snapshots fetched from the backend.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Push events dispatched, by name and outcome.",
		}, []string{"event", "result"}),
	}
	m.registry.MustRegister(
		m.reactions, m.fetches, m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts one handled push event.
func (m *Metrics) ObserveEvent(event string, err error) {
	m.events.WithLabelValues(event, result(err)).Inc()
}

// result buckets an error into a low-cardinality label.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrBadRequest):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrForbidden):
		return "denied"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

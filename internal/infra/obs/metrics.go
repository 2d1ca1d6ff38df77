package obs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staybook/internal/app/handlers/search"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/shared/storage"
	"staybook/internal/domain/stays"
)

const namespace = "staybook"

// Metrics holds the process collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	messages     *prometheus.CounterVec
	msgDuration  *prometheus.HistogramVec
	searchStage  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Dispatched commands and queries by outcome",
		}, []string{"kind", "key", "outcome"}),
		msgDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Command and query handling latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind", "key"}),
		searchStage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_stage_stays",
			Help:      "Stays left after each search stage",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"stage"}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.messages, m.msgDuration,
		m.searchStage,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveMessage(kind, key string, err error, elapsed time.Duration) {
	m.messages.WithLabelValues(kind, key, Outcome(err)).Inc()
	m.msgDuration.WithLabelValues(kind, key).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSearch(candidates, available, matched int) {
	m.searchStage.WithLabelValues("geo").Observe(float64(candidates))
	m.searchStage.WithLabelValues("available").Observe(float64(available))
	m.searchStage.WithLabelValues("capacity").Observe(float64(matched))
}

// Outcome buckets an error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, reservations.ErrReservationCollision):
		return "collision"
	case errors.Is(err, availability.ErrNightConflict):
		return "conflict"
	case errors.Is(err, reservations.ErrReservationNotFound), errors.Is(err, stays.ErrStayNotFound):
		return "not_found"
	case errors.Is(err, reservations.ErrInvalidRange),
		errors.Is(err, search.ErrInvalidSearchRange),
		errors.Is(err, search.ErrInvalidSearchCriteria):
		return "invalid"
	case errors.Is(err, middleware.ErrUnauthenticated), errors.Is(err, middleware.ErrForbidden):
		return "denied"
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, policies.ErrLockTimeout):
		return "unavailable"
	default:
		return "error"
	}
}

var (
	_ middleware.OutcomeRecorder = (*Metrics)(nil)
	_ search.Recorder            = (*Metrics)(nil)
)

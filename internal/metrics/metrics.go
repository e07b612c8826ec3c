// Package metrics exposes the prometheus collectors of the web process.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos_web"

// Metrics holds the collectors on a private registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	signinAttempts  *prometheus.CounterVec
	guardRejections prometheus.Counter
	notifications   *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		signinAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signin_attempts_total",
			Help:      "Sign-in initiations and callbacks by provider and outcome.",
		}, []string{"provider", "stage", "outcome"}),
		guardRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signin_guard_rejections_total",
			Help:      "Submissions dropped because the form was already submitting.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signin_error_notifications_total",
			Help:      "Error toasts shown, by error code.",
		}, []string{"code"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Session lifecycle events.",
		}, []string{"event"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter, by route.",
		}, []string{"route"}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.signinAttempts, m.guardRejections,
		m.notifications, m.sessions, m.rateLimited)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SigninAttempt records stage ("initiate" or "callback") with outcome ("ok" or an error code).
func (m *Metrics) SigninAttempt(provider, stage, outcome string) {
	if m == nil {
		return
	}
	m.signinAttempts.WithLabelValues(provider, stage, outcome).Inc()
}

func (m *Metrics) GuardRejected() {
	if m == nil {
		return
	}
	m.guardRejections.Inc()
}

func (m *Metrics) ErrorNotified(code string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(code).Inc()
}

// SessionEvent records "created", "resolved", "rejected" or "destroyed".
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(event).Inc()
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

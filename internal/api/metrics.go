package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeAuthError    = "auth_error"
	OutcomeForbidden    = "forbidden"
	OutcomeRequestError = "request_error"
	OutcomeNetworkError = "network_error"
)

// Metrics holds the client's Prometheus metrics.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RefreshTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers the client metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tasklist",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "API requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tasklist",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration including a refresh-and-retry",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tasklist",
				Subsystem: "api",
				Name:      "token_refresh_total",
				Help:      "Access token refresh attempts by result",
			},
			[]string{"result"}, // result=ok/error
		),
	}
}

func (m *Metrics) observeRequest(method, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

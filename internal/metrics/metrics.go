// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess   = "success"
	ResultDuplicate = "duplicate"
	ResultInvalid   = "invalid"
	ResultThrottled = "throttled"
	ResultError     = "error"
)

type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	HTTPInFlight   prometheus.Gauge
	Signups        *prometheus.CounterVec
	Logins         *prometheus.CounterVec
	OAuthCallbacks *prometheus.CounterVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
		Signups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_signups_total",
				Help: "Signup attempts by result",
			},
			[]string{"result"},
		),
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Password login attempts by result",
			},
			[]string{"result"},
		),
		OAuthCallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_oauth_callbacks_total",
				Help: "OAuth callbacks by provider and result",
			},
			[]string{"provider", "result"},
		),
	}
}

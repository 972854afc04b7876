package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	LoginSuccess       = "success"
	LoginInvalid       = "invalid_credentials"
	LoginError         = "error"
	ValidationOK       = "ok"
	ValidationInvalid  = "invalid"
	ValidationExpired  = "expired"
	ValidationNoHeader = "missing_header"
	KeyOperationCreate = "create"
	KeyOperationRotate = "rotate"
	KeyOperationRevoke = "revoke"
)

// Metrics holds the auth and HTTP collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	LoginTotal           *prometheus.CounterVec
	TokenValidations     *prometheus.CounterVec
	SigningKeyOperations *prometheus.CounterVec
	PasswordHashDuration prometheus.Histogram
	HTTPRequestsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamify_auth_login_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamify_auth_token_validations_total",
				Help: "Total number of bearer token checks by result",
			},
			[]string{"result"},
		),
		SigningKeyOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamify_signing_key_operations_total",
				Help: "Total number of signing key operations",
			},
			[]string{"op"},
		),
		PasswordHashDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gamify_password_hash_duration_seconds",
				Help:    "Time spent deriving password hashes",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamify_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.LoginTotal,
		m.TokenValidations,
		m.SigningKeyOperations,
		m.PasswordHashDuration,
		m.HTTPRequestsTotal,
	)

	return m
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTokenValidation(result string) {
	if m == nil {
		return
	}
	m.TokenValidations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveKeyOperation(op string) {
	if m == nil {
		return
	}
	m.SigningKeyOperations.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveHash(d time.Duration) {
	if m == nil {
		return
	}
	m.PasswordHashDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

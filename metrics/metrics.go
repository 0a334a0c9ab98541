// Package metrics exposes Prometheus collectors for the temporary password
// flow. Collectors live on a private registry so several services can coexist
// in one process (and in tests).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "djibgo"

// Registry implements core.Metrics and serves /metrics.
type Registry struct {
	reg *prometheus.Registry

	issuances        *prometheus.CounterVec
	issuanceDuration *prometheus.HistogramVec
	selfTests        *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	expired          prometheus.Counter
}

// New creates a registry. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Registry {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		issuances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temporary_password_issuances_total",
			Help:      "Temporary password issuance attempts by outcome",
		}, []string{"outcome"}),
		issuanceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "temporary_password_issuance_duration_seconds",
			Help:      "Duration of temporary password issuance attempts",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"outcome"}),
		selfTests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temporary_password_self_tests_total",
			Help:      "Sign-in self-tests of freshly issued temporary passwords",
		}, []string{"ok"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"bucket"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temporary_passwords_expired_total",
			Help:      "Temporary passwords revoked by the expiry sweep",
		}),
	}
}

func (r *Registry) IssuanceFinished(outcome string, d time.Duration) {
	r.issuances.WithLabelValues(outcome).Inc()
	r.issuanceDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (r *Registry) SelfTestFinished(ok bool) {
	r.selfTests.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (r *Registry) RateLimited(bucket string) {
	r.rateLimited.WithLabelValues(bucket).Inc()
}

func (r *Registry) TemporaryPasswordsExpired(n int) {
	if n > 0 {
		r.expired.Add(float64(n))
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

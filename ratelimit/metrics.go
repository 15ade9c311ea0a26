/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector collects outcomes of Check calls per action.
type MetricsCollector interface {
	IncAdmitted(action string)
	IncRejected(action string)
}

const (
	checkResultAdmitted = "admitted"
	checkResultRejected = "rejected"
)

// PrometheusMetrics is a Prometheus based MetricsCollector.
type PrometheusMetrics struct {
	ChecksTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_checks_total",
			Help:      "Number of attempts checked by the rate limiter.",
		}, []string{"action", "result"}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.ChecksTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.ChecksTotal)
}

// IncAdmitted increments the counter of admitted attempts.
func (pm *PrometheusMetrics) IncAdmitted(action string) {
	pm.ChecksTotal.WithLabelValues(action, checkResultAdmitted).Inc()
}

// IncRejected increments the counter of rejected attempts.
func (pm *PrometheusMetrics) IncRejected(action string) {
	pm.ChecksTotal.WithLabelValues(action, checkResultRejected).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncAdmitted(string) {}
func (disabledMetrics) IncRejected(string) {}

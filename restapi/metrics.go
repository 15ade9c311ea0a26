/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsSubsystem = "restapi"

	metricsLabelDomain = "domain"
	metricsLabelCode   = "code"
)

var (
	metricsMu             sync.RWMutex
	metricsResponseErrors *prometheus.CounterVec
)

// MustInitAndRegisterMetrics creates and registers the counter of error responses.
// It panics if the counter is already registered.
func MustInitAndRegisterMetrics(namespace string) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystem,
		Name:      "response_errors_total",
		Help:      "Number of error responses sent by REST API handlers.",
	}, []string{metricsLabelDomain, metricsLabelCode})
	prometheus.MustRegister(c)

	metricsMu.Lock()
	metricsResponseErrors = c
	metricsMu.Unlock()
}

// UnregisterMetrics unregisters the counter of error responses.
func UnregisterMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsResponseErrors != nil {
		prometheus.Unregister(metricsResponseErrors)
		metricsResponseErrors = nil
	}
}

func incResponseErrors(domain, code string) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if metricsResponseErrors != nil {
		metricsResponseErrors.WithLabelValues(domain, code).Inc()
	}
}

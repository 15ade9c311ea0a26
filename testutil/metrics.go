/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// RequireCounterValue asserts the value of a single counter or gauge.
func RequireCounterValue(t require.TestingT, c prometheus.Collector, want float64) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, want, promtestutil.ToFloat64(c))
}

// RequireSamplesCountInHistogram asserts that the histogram observed exactly want samples.
func RequireSamplesCountInHistogram(t require.TestingT, hist prometheus.Histogram, want int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(hist))
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, want, int(families[0].GetMetric()[0].GetHistogram().GetSampleCount()))
}

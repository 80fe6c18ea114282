package testsupport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GetMetricValue reads a series from the default registry. Counters and
// gauges yield their value, histograms and summaries their sample count.
// A series that was never observed reads as 0.
func GetMetricValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "gather metrics")

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if hasLabels(m, labels) {
				total += sampleValue(m)
			}
		}
	}
	return total
}

// sampleValue returns the scalar used in tests for one series.
func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetHistogram() != nil:
		return float64(m.GetHistogram().GetSampleCount())
	case m.GetSummary() != nil:
		return float64(m.GetSummary().GetSampleCount())
	default:
		return 0
	}
}

// hasLabels reports whether every wanted label is set on m with the same
// value. Labels not listed are ignored, so a partial filter sums series.
func hasLabels(m *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, pair := range m.GetLabel() {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

// AssertMetricDelta runs fn and asserts the series moved by exactly delta.
func AssertMetricDelta(t *testing.T, name string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, name, labels)
	fn()
	after := GetMetricValue(t, name, labels)

	assert.InDelta(t, delta, after-before, 1e-9, "delta of %s%v", name, labels)
}

package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphersql/cyphersql/metrics"
)

func TestObserveQueryIncrementsOutcomeCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.ObserveQuery("read", 0.002, nil)
	r.ObserveQuery("read", 0.004, errors.New("boom"))

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool

	for _, mf := range metricFamilies {
		if mf.GetName() == "cyphersql_queries_total" {
			found = true
			assert.Len(t, mf.GetMetric(), 2)
		}
	}

	assert.True(t, found, "expected cyphersql_queries_total to be registered")
}

func TestObserveMutationSkipsZeroCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.ObserveMutation("create", 0)
	r.ObserveMutation("create", 3)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range metricFamilies {
		if mf.GetName() != "cyphersql_mutations_total" {
			continue
		}

		require.Len(t, mf.GetMetric(), 1)
		assert.Equal(t, float64(3), mf.GetMetric()[0].GetCounter().GetValue())
	}
}

func TestObserveParseErrorIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.ObserveParseError()
	r.ObserveParseError()

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range metricFamilies {
		if mf.GetName() == "cyphersql_parse_errors_total" {
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(2), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

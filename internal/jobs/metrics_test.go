package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("supplier:balance:recalculate").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("supplier:balance:recalculate").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("supplier:balance:recalculate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("supplier:balance:recalculate", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("supplier:balance:recalculate")))
}

func TestAddDriftIgnoresZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddDrift("wallet", 0)
	m.AddDrift("wallet", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.drift.WithLabelValues("wallet")))

	var nilMetrics *Metrics
	nilMetrics.AddDrift("wallet", 1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}

func TestDefaultRegistererSharesOneSet(t *testing.T) {
	shared := NewMetrics(nil)
	assert.NotPanics(t, func() {
		assert.Same(t, shared, NewMetrics(prometheus.DefaultRegisterer))
	})
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnceAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()

	c, err := New(reg)
	require.NoError(t, err)

	c.IncFetch(OutcomeResolved)
	c.IncFetch(OutcomeResolved)
	c.IncFetch(OutcomeNotFound)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.Fetches.WithLabelValues(OutcomeResolved)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Fetches.WithLabelValues(OutcomeNotFound)))

	_, err = New(reg)
	assert.NoError(t, err, "re-registering identical collectors is tolerated")
}

func TestNilCollectorsAreNoOps(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveThrottleWait(1)
		c.SetThrottleQueued(3)
		c.IncFetch(OutcomeFailed)
		c.IncBatch(OutcomeAborted)
		c.IncSearch(OutcomeResolved)
		c.ObserveRequest("management", "200", 0.1)
	})
}

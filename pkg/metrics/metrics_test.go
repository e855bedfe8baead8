package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	c := New()

	c.SnapshotCaptured("function-entry", 0)
	c.SnapshotCaptured("function-entry", 2)
	c.SnapshotCaptured("variable-capture", 0)
	c.SnapshotEvicted()
	c.CaptureFailed("function-exit")
	c.CaptureFiltered()
	c.Restored(OutcomeOK)
	c.SetTimelineSize(3)
	c.ObserveCallDuration(2 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.SnapshotsCaptured.WithLabelValues("function-entry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SnapshotsCaptured.WithLabelValues("variable-capture")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DegradedValues))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SnapshotsEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CaptureFailures.WithLabelValues("function-exit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CapturesFiltered))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Restores.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.TimelineSize))
	assert.Equal(t, 1, testutil.CollectAndCount(c.CallDuration))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SnapshotEvicted()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SnapshotsEvicted))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SnapshotsEvicted))

	families, err := a.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SnapshotCaptured("x", 1)
		c.SnapshotEvicted()
		c.CaptureFailed("x")
		c.CaptureFiltered()
		c.Restored(OutcomeFailed)
		c.SetTimelineSize(1)
		c.ObserveCallDuration(time.Second)
	})
	assert.Nil(t, c.Registry())
	families, err := c.Gather()
	assert.NoError(t, err)
	assert.Nil(t, families)
}

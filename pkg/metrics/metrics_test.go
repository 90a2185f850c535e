package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector_IsolatedRegistries(t *testing.T) {
	// Two collectors on separate registries must not collide.
	a := NewCollector("wx", prometheus.NewRegistry())
	b := NewCollector("wx", prometheus.NewRegistry())

	a.IngestionRecordsTotal.Add(3)
	assert.InDelta(t, 3, testutil.ToFloat64(a.IngestionRecordsTotal), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.IngestionRecordsTotal), 0)
}

func TestRecordCacheLookup(t *testing.T) {
	c := NewCollector("wx", prometheus.NewRegistry())

	c.RecordCacheLookup(false, 0, 1)
	c.RecordCacheLookup(true, 1, 1)
	c.RecordCacheLookup(true, 2, 1)

	assert.InDelta(t, 2, testutil.ToFloat64(c.StatsCacheRequests.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.StatsCacheRequests.WithLabelValues("miss")), 0)
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(c.StatsCacheHitRatio), 1e-9)
}

func TestUpdateDBConnectionPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("wx", reg)

	c.UpdateDBConnectionPool(2, 3, 5)

	assert.InDelta(t, 2, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("in_use")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("idle")), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")), 0)

	n, err := testutil.GatherAndCount(reg, "wx_db_connection_pool")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("wx", prometheus.NewRegistry())

	d := c.NewTimer(c.IngestionDuration).ObserveDuration()

	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(c.IngestionDuration))
}

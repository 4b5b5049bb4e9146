package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHealthSetsGauges(t *testing.T) {
	RecordHealth("osmosis-1", "server-1", true, 12345)
	assert.Equal(t, float64(1), testutil.ToFloat64(NodeHealthy.WithLabelValues("osmosis-1", "server-1")))
	assert.Equal(t, float64(12345), testutil.ToFloat64(NodeBlockHeight.WithLabelValues("osmosis-1")))

	RecordHealth("osmosis-1", "server-1", false, 12345)
	assert.Equal(t, float64(0), testutil.ToFloat64(NodeHealthy.WithLabelValues("osmosis-1", "server-1")))
}

func TestRecordAlertIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(AlertsTotal.WithLabelValues("maintenance", "critical"))
	RecordAlert("maintenance", "critical")
	after := testutil.ToFloat64(AlertsTotal.WithLabelValues("maintenance", "critical"))
	assert.Equal(t, before+1, after)
}

func TestRecordOperationIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("pruning", "completed"))
	RecordOperation("pruning", "completed")
	after := testutil.ToFloat64(OperationsTotal.WithLabelValues("pruning", "completed"))
	assert.Equal(t, before+1, after)
}

func TestRegistryGathersAllSeries(t *testing.T) {
	families, err := Registry.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

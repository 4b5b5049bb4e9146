package maintenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaintenanceTracking(t *testing.T) {
	tracker := New()

	tracker.Start("test-node", "pruning", 30, "test-server")
	assert.True(t, tracker.IsInMaintenance("test-node"))
	assert.False(t, tracker.IsInMaintenance("other-node"))

	tracker.End("test-node")
	assert.False(t, tracker.IsInMaintenance("test-node"))
}

func TestMaintenanceStats(t *testing.T) {
	tracker := New()

	tracker.Start("node1", "pruning", 30, "server1")
	tracker.Start("node2", "restart", 10, "server1")
	tracker.Start("node3", "pruning", 30, "server2")

	stats := tracker.Stats()
	assert.Equal(t, 3, stats.TotalActive)
	assert.Equal(t, 2, stats.ByOperationType["pruning"])
	assert.Equal(t, 2, stats.ByServer["server1"])
}

func TestEmergencyClearAll(t *testing.T) {
	tracker := New()
	tracker.Start("node1", "pruning", 30, "server1")
	tracker.Start("node2", "restart", 10, "server1")

	removed := tracker.EmergencyClearAll()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, tracker.Stats().TotalActive)
}

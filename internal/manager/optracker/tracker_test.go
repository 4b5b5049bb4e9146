package optracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationTracking(t *testing.T) {
	tracker := New()

	require.NoError(t, tracker.TryStart("node-1", "restart", ""))
	assert.True(t, tracker.IsBusy("node-1"))

	err := tracker.TryStart("node-1", "snapshot", "")
	require.Error(t, err)

	tracker.Finish("node-1")
	assert.False(t, tracker.IsBusy("node-1"))

	require.NoError(t, tracker.TryStart("node-1", "snapshot", ""))
}

func TestMultipleTargets(t *testing.T) {
	tracker := New()

	require.NoError(t, tracker.TryStart("node-1", "restart", ""))
	require.NoError(t, tracker.TryStart("node-2", "snapshot", ""))
	require.NoError(t, tracker.TryStart("hermes-1", "restart", ""))

	status := tracker.Status()
	assert.Equal(t, 3, status.TotalActive)
	assert.Contains(t, status.BusyNodes, "node-1")
	assert.Contains(t, status.BusyNodes, "node-2")
	assert.Contains(t, status.BusyNodes, "hermes-1")
}

func TestCancelOperation(t *testing.T) {
	tracker := New()

	require.NoError(t, tracker.TryStart("node-1", "snapshot", ""))
	assert.True(t, tracker.IsBusy("node-1"))

	require.NoError(t, tracker.Cancel("node-1"))
	assert.False(t, tracker.IsBusy("node-1"))

	assert.Error(t, tracker.Cancel("node-1"))
}

func TestCleanupOlderThan(t *testing.T) {
	tracker := New()
	require.NoError(t, tracker.TryStart("node-1", "snapshot", ""))

	tracker.mu.Lock()
	entry := tracker.active["node-1"]
	entry.StartedAt = time.Now().Add(-48 * time.Hour)
	tracker.active["node-1"] = entry
	tracker.mu.Unlock()

	removed := tracker.CleanupOlderThan(24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.False(t, tracker.IsBusy("node-1"))
}

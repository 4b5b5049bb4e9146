package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

func TestClaimAndRelease(t *testing.T) {
	r := New()

	require.NoError(t, r.Claim("node-1", domain.OperationRestart))
	assert.True(t, r.IsBusy("node-1"))

	err := r.Claim("node-1", domain.OperationSnapshotCreate)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.BusyTarget))
	assert.Contains(t, err.Error(), "restart")

	r.Release("node-1")
	assert.False(t, r.IsBusy("node-1"))

	require.NoError(t, r.Claim("node-1", domain.OperationSnapshotCreate))
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := New()
	r.Release("never-claimed") // must not panic
	assert.False(t, r.IsBusy("never-claimed"))
}

func TestMultipleTargets(t *testing.T) {
	r := New()
	require.NoError(t, r.Claim("node-1", domain.OperationRestart))
	require.NoError(t, r.Claim("node-2", domain.OperationSnapshotCreate))

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, domain.OperationRestart, snap["node-1"].Kind)
}

func TestCleanupOlderThan(t *testing.T) {
	r := New()
	require.NoError(t, r.Claim("stuck", domain.OperationPruning))
	r.active["stuck"] = Entry{Kind: domain.OperationPruning, StartedAt: time.Now().Add(-48 * time.Hour)}

	require.NoError(t, r.Claim("fresh", domain.OperationRestart))

	removed := r.CleanupOlderThan(24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.False(t, r.IsBusy("stuck"))
	assert.True(t, r.IsBusy("fresh"))
}

package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

func TestNewJobIDFormat(t *testing.T) {
	s := New()
	job := s.NewJob(domain.OperationPruning, "node-1")
	assert.Contains(t, job.ID, "pruning_node-1_")
	assert.Equal(t, domain.JobRunning, job.Status)
}

func TestCompleteIsTerminalOnce(t *testing.T) {
	s := New()
	job := s.NewJob(domain.OperationRestart, "node-1")

	s.Complete(job.ID, "ok")
	got, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.JobCompleted, got.Status)

	// A second transition attempt must not override the first.
	s.Fail(job.ID, "late failure")
	got, _ = s.Get(job.ID)
	assert.Equal(t, domain.JobCompleted, got.Status)
}

func TestCleanupOlderThanKeepsRunningJobs(t *testing.T) {
	s := New()
	running := s.NewJob(domain.OperationStateSync, "node-1")
	done := s.NewJob(domain.OperationPruning, "node-2")
	s.Complete(done.ID, nil)
	s.jobs[done.ID].CompletedAt = time.Now().Add(-72 * time.Hour)

	removed := s.CleanupOlderThan(48 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := s.Get(done.ID)
	assert.False(t, ok)
	_, ok = s.Get(running.ID)
	assert.True(t, ok)
}

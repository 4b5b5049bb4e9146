// Package jobs implements the agent's Job Store (spec.md C2): a map of
// job-id to status/result, with GC of terminal jobs.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

// Store is a RWMutex-guarded map of job id to *domain.Job.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job

	// counter breaks ties when two jobs for the same kind/target would
	// otherwise synthesize an identical id within the same second, per
	// spec.md §9's "implementations should prefer a monotonic counter".
	counter uint64
}

func New() *Store {
	return &Store{jobs: make(map[string]*domain.Job)}
}

// NewJob synthesizes a job id as "{kind}_{target}_{unix-seconds}",
// appending a monotonic suffix only on collision, and inserts it in the
// running state.
func (s *Store) NewJob(kind domain.OperationKind, target string) *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("%s_%s_%d", kind, target, time.Now().Unix())
	if _, exists := s.jobs[id]; exists {
		s.counter++
		id = fmt.Sprintf("%s_%d", id, s.counter)
	}

	job := &domain.Job{
		ID:        id,
		Kind:      kind,
		Target:    target,
		Status:    domain.JobRunning,
		StartedAt: time.Now(),
	}
	s.jobs[id] = job
	return job
}

// Complete transitions id to completed with result. A job transitions to
// a terminal state at most once; a second call is a no-op.
func (s *Store) Complete(id string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobRunning {
		return
	}
	job.Status = domain.JobCompleted
	job.Result = result
	job.CompletedAt = time.Now()
}

// Fail transitions id to failed with the given error message.
func (s *Store) Fail(id string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobRunning {
		return
	}
	job.Status = domain.JobFailed
	job.Error = errMsg
	job.CompletedAt = time.Now()
}

// Get returns a copy of the job record for id, and whether it exists.
func (s *Store) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// CleanupOlderThan removes terminal jobs whose completion timestamp
// predates now-maxAge, returning the count removed. Running jobs are
// never removed regardless of age.
func (s *Store) CleanupOlderThan(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if job.Status == domain.JobRunning {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

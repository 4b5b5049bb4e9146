// Package optracker implements the manager's Operation Tracker (spec.md
// C7): the manager-side mirror of the agent's Operation Registry, used
// to reject a second manager-initiated operation against a target
// before an agent call is even made. Grounded on
// original_source/manager/src/operation_tracker.rs's SimpleOperationTracker.
package optracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// ActiveOperation is one in-flight operation the manager is tracking.
type ActiveOperation struct {
	OperationType string
	TargetName    string
	StartedAt     time.Time
	UserInfo      string
}

// Status is the snapshot returned by Status.
type Status struct {
	BusyNodes   map[string]ActiveOperation
	TotalActive int
}

// Tracker is a RWMutex-guarded map of target name to ActiveOperation.
type Tracker struct {
	mu     sync.RWMutex
	active map[string]ActiveOperation
}

func New() *Tracker {
	return &Tracker{active: make(map[string]ActiveOperation)}
}

// TryStart claims target for operationType, failing with a BusyTarget
// error naming the current operation and its elapsed duration if target
// is already claimed.
func (t *Tracker) TryStart(targetName, operationType, userInfo string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.active[targetName]; ok {
		elapsed := time.Since(current.StartedAt).Round(time.Minute)
		return apperrors.Busy(targetName, current.OperationType, elapsed.String())
	}

	t.active[targetName] = ActiveOperation{
		OperationType: operationType,
		TargetName:    targetName,
		StartedAt:     time.Now(),
		UserInfo:      userInfo,
	}
	return nil
}

// Finish removes the active operation on target, if any.
func (t *Tracker) Finish(targetName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, targetName)
}

// Cancel force-removes the active operation on target, failing with a
// NotFound error if target has none.
func (t *Tracker) Cancel(targetName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[targetName]; !ok {
		return apperrors.Missing(fmt.Sprintf("active operation on %s", targetName))
	}
	delete(t.active, targetName)
	return nil
}

// Status returns a snapshot of every currently tracked operation.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	busy := make(map[string]ActiveOperation, len(t.active))
	for k, v := range t.active {
		busy[k] = v
	}
	return Status{BusyNodes: busy, TotalActive: len(busy)}
}

// IsBusy reports whether targetName currently has an active operation.
func (t *Tracker) IsBusy(targetName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.active[targetName]
	return ok
}

// Get returns the active operation for targetName, if any.
func (t *Tracker) Get(targetName string) (ActiveOperation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.active[targetName]
	return op, ok
}

// CleanupOlderThan force-removes every operation whose start time
// predates now-maxAge, for recovering from a manager process that never
// observed an agent's completion. Returns the count removed.
func (t *Tracker) CleanupOlderThan(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for target, op := range t.active {
		if op.StartedAt.Before(cutoff) {
			delete(t.active, target)
			removed++
		}
	}
	return removed
}

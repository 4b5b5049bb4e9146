// Package registry implements the agent's Operation Registry (spec.md
// C1): a per-host map of node-name to in-flight operation, preventing
// concurrent agent operations on the same target.
package registry

import (
	"sync"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

// Entry is a single in-flight operation, as returned by Snapshot.
type Entry struct {
	Kind      domain.OperationKind
	StartedAt time.Time
}

// Registry is a RWMutex-guarded map of target name to in-flight
// operation. Critical sections are O(1) and never span a suspension
// point, per spec.md §5.
type Registry struct {
	mu     sync.RWMutex
	active map[string]Entry
}

func New() *Registry {
	return &Registry{active: make(map[string]Entry)}
}

// Claim inserts an entry for target if none is present, returning a
// BusyTarget error (naming the current kind and elapsed time) otherwise.
func (r *Registry) Claim(target string, kind domain.OperationKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.active[target]; ok {
		elapsed := time.Since(existing.StartedAt).Round(time.Second)
		return apperrors.Busy(target, string(existing.Kind), elapsed.String())
	}
	r.active[target] = Entry{Kind: kind, StartedAt: time.Now()}
	return nil
}

// Release unconditionally removes the entry for target, if any. It is
// always safe to call, including when target was never claimed.
func (r *Registry) Release(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, target)
}

// IsBusy reports whether target currently has an in-flight operation.
func (r *Registry) IsBusy(target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.active[target]
	return ok
}

// Snapshot returns a copy of the current registry contents, for the
// busy-status endpoint (spec.md §4.5 / §6 POST /status/busy).
func (r *Registry) Snapshot() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.active))
	for k, v := range r.active {
		out[k] = v
	}
	return out
}

// CleanupOlderThan removes entries whose start timestamp predates
// now-maxAge, returning the count removed. Used by the janitor to
// recover from operations whose detached task died without releasing.
func (r *Registry) CleanupOlderThan(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for target, entry := range r.active {
		if entry.StartedAt.Before(cutoff) {
			delete(r.active, target)
			removed++
		}
	}
	return removed
}

// Package maintenance implements the manager's Maintenance Tracker
// (spec.md C6): a record of which nodes are currently in a maintenance
// window, kept separate from the Operation Tracker despite an
// overlapping lifetime — maintenance windows describe operator/scheduler
// intent (and drive alert suppression), while the Operation Tracker
// describes execution-in-flight state. Grounded on
// original_source/src/maintenance_tracker.rs.
package maintenance

import (
	"sync"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// Window is one node's active maintenance window.
type Window struct {
	NodeName                 string
	OperationType            string
	StartedAt                time.Time
	EstimatedDurationMinutes uint32
	ServerHost               string
}

// Stats summarizes currently active maintenance windows.
type Stats struct {
	TotalActive    int
	ByOperationType map[string]int
	ByServer        map[string]int
}

// Tracker is a RWMutex-guarded map of node name to Window.
type Tracker struct {
	mu     sync.RWMutex
	active map[string]Window
}

func New() *Tracker {
	return &Tracker{active: make(map[string]Window)}
}

// Start opens a maintenance window for nodeName. A second Start call for
// a node already in maintenance overwrites the window — callers that
// need mutual exclusion use the Operation Tracker for that; this tracker
// only records intent for alert suppression and the status API.
func (t *Tracker) Start(nodeName, operationType string, estimatedDurationMinutes uint32, serverHost string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[nodeName] = Window{
		NodeName:                 nodeName,
		OperationType:            operationType,
		StartedAt:                time.Now(),
		EstimatedDurationMinutes: estimatedDurationMinutes,
		ServerHost:               serverHost,
	}
}

// End closes the maintenance window for nodeName, if any.
func (t *Tracker) End(nodeName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, nodeName)
}

// IsInMaintenance reports whether nodeName currently has an open window.
func (t *Tracker) IsInMaintenance(nodeName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.active[nodeName]
	return ok
}

// Get returns the active window for nodeName, if any.
func (t *Tracker) Get(nodeName string) (Window, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.active[nodeName]
	return w, ok
}

// All returns every currently active maintenance window.
func (t *Tracker) All() []Window {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Window, 0, len(t.active))
	for _, w := range t.active {
		out = append(out, w)
	}
	return out
}

// CleanupExpired force-closes every window whose start time predates
// now-maxDuration, a safety net for windows whose closing End call
// never arrived (agent crash, dropped response). Returns the count
// removed.
func (t *Tracker) CleanupExpired(maxDuration time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-maxDuration)
	removed := 0
	for node, w := range t.active {
		if w.StartedAt.Before(cutoff) {
			delete(t.active, node)
			removed++
		}
	}
	return removed
}

// Stats summarizes the currently active windows by operation type and
// server.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byOp := make(map[string]int)
	byServer := make(map[string]int)
	for _, w := range t.active {
		byOp[w.OperationType]++
		byServer[w.ServerHost]++
	}
	return Stats{TotalActive: len(t.active), ByOperationType: byOp, ByServer: byServer}
}

// EmergencyClearAll force-ends every open maintenance window, returning
// the count removed.
func (t *Tracker) EmergencyClearAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := len(t.active)
	t.active = make(map[string]Window)
	return count
}

// EndChecked closes nodeName's window, returning a NotFound error if
// nodeName has no open window.
func (t *Tracker) EndChecked(nodeName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[nodeName]; !ok {
		return apperrors.Missing("maintenance window for " + nodeName)
	}
	delete(t.active, nodeName)
	return nil
}

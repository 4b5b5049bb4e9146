package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

// handlers bundles the manager HTTP surface's endpoint implementations.
// Grounded on the teacher's handlers-on-a-struct convention
// (internal/api/handlers.go).
type handlers struct {
	server *Server
}

// status runs GET /api/v1/status.
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	opStatus := h.server.optracker.Status()
	maintStats := h.server.maintenance.Stats()

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: statusResponse{
		UptimeSeconds:      int64(time.Since(h.server.startTime).Seconds()),
		NodeCount:          len(h.server.nodes),
		ActiveOperations:   opStatus.TotalActive,
		MaintenanceWindows: maintStats.TotalActive,
	}})
}

// listNodes runs GET /api/v1/nodes.
func (h *handlers) listNodes(w http.ResponseWriter, r *http.Request) {
	summaries := make([]nodeSummary, 0, len(h.server.nodes))
	for name, node := range h.server.nodes {
		summaries = append(summaries, nodeSummary{
			Name:             name,
			ServerHost:       node.ServerHost,
			Enabled:          node.Enabled,
			PruningEnabled:   node.PruningEnabled,
			SnapshotsEnabled: node.SnapshotsEnabled,
			StateSyncEnabled: node.StateSyncEnabled,
		})
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: summaries})
}

// nodeHealth runs GET /api/v1/nodes/{name}/health.
func (h *handlers) nodeHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	status, ok := h.server.health.Status(name)
	if !ok {
		writeError(w, http.StatusNotFound, apperrors.Missing("node "+name))
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: status})
}

// listOperations runs GET /api/v1/operations.
func (h *handlers) listOperations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: h.server.optracker.Status().BusyNodes})
}

// listMaintenance runs GET /api/v1/maintenance.
func (h *handlers) listMaintenance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: h.server.maintenance.All()})
}

// operator reads the X-Operator header, defaulting to "api" when absent,
// per spec.md §4.18's "attributed via an X-Operator header into
// user_info".
func operator(r *http.Request) string {
	if v := r.Header.Get("X-Operator"); v != "" {
		return v
	}
	return "api"
}

// dispatchAsync looks up the named node, fails fast if it is already
// busy, then runs kind in the background and returns 202 immediately:
// pruning/snapshot/state-sync operations run for minutes to hours and
// have no place in a synchronous HTTP response.
func (h *handlers) dispatchAsync(w http.ResponseWriter, r *http.Request, kind domain.OperationKind) {
	name := chi.URLParam(r, "name")
	node, ok := h.server.nodes[name]
	if !ok {
		writeError(w, http.StatusNotFound, apperrors.Missing("node "+name))
		return
	}
	if h.server.optracker.IsBusy(name) {
		writeError(w, http.StatusConflict, apperrors.Busy(name, "unknown", "n/a"))
		return
	}

	who := operator(r)
	go func() {
		if err := h.server.dispatcher.Run(context.Background(), name, node, kind, who); err != nil {
			h.server.logger.Warn().Err(err).Str("node", name).Str("operation", string(kind)).Msg("manually triggered operation failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, envelope{Success: true, Data: triggerResponse{Accepted: true, Node: name, Operator: who}})
}

// triggerPruning runs POST /api/v1/nodes/{name}/pruning.
func (h *handlers) triggerPruning(w http.ResponseWriter, r *http.Request) {
	h.dispatchAsync(w, r, domain.OperationPruning)
}

// triggerSnapshotCreate runs POST /api/v1/nodes/{name}/snapshot/create.
func (h *handlers) triggerSnapshotCreate(w http.ResponseWriter, r *http.Request) {
	h.dispatchAsync(w, r, domain.OperationSnapshotCreate)
}

// triggerSnapshotRestore runs POST /api/v1/nodes/{name}/snapshot/restore.
func (h *handlers) triggerSnapshotRestore(w http.ResponseWriter, r *http.Request) {
	h.dispatchAsync(w, r, domain.OperationSnapshotRestore)
}

// triggerStateSync runs POST /api/v1/nodes/{name}/state-sync.
func (h *handlers) triggerStateSync(w http.ResponseWriter, r *http.Request) {
	h.dispatchAsync(w, r, domain.OperationStateSync)
}

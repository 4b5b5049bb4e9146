package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the manager API's JSON response shape. Kept intentionally
// smaller than the agent's (internal/agent/api/types.go): the manager
// surface is read-mostly and every response either succeeds with a
// typed Data payload or fails with Error.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}

// statusResponse backs GET /api/v1/status.
type statusResponse struct {
	UptimeSeconds      int64 `json:"uptime_seconds"`
	NodeCount          int   `json:"node_count"`
	ActiveOperations   int   `json:"active_operations"`
	MaintenanceWindows int   `json:"maintenance_windows"`
}

// nodeSummary backs one entry of GET /api/v1/nodes.
type nodeSummary struct {
	Name             string `json:"name"`
	ServerHost       string `json:"server_host"`
	Enabled          bool   `json:"enabled"`
	PruningEnabled   bool   `json:"pruning_enabled"`
	SnapshotsEnabled bool   `json:"snapshots_enabled"`
	StateSyncEnabled bool   `json:"state_sync_enabled"`
}

// triggerResponse backs every manual-trigger endpoint's 202 response.
type triggerResponse struct {
	Accepted bool   `json:"accepted"`
	Node     string `json:"node"`
	Operator string `json:"operator"`
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

// handlers bundles the agent HTTP surface's endpoint implementations.
// Grounded on internal/api/server.go's handler-on-a-struct convention.
type handlers struct {
	server *Server
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// commandExecute runs POST /command/execute: a synchronous shell command.
func (h *handlers) commandExecute(w http.ResponseWriter, r *http.Request) {
	var req commandExecuteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := h.server.runner.Shell(r.Context(), req.Command)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Output: out})
}

// serviceStatus runs POST /service/status.
func (h *handlers) serviceStatus(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := h.server.runner.ServiceStatus(r.Context(), req.ServiceName)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Status: status})
}

// serviceStart runs POST /service/start.
func (h *handlers) serviceStart(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.server.runner.StartService(r.Context(), req.ServiceName); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// serviceStop runs POST /service/stop.
func (h *handlers) serviceStop(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.server.runner.StopService(r.Context(), req.ServiceName); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// serviceUptime runs POST /service/uptime.
func (h *handlers) serviceUptime(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	uptime, err := h.server.runner.ServiceUptime(r.Context(), req.ServiceName)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, UptimeSeconds: int64(uptime.Seconds())})
}

// logsTruncate runs POST /logs/truncate.
func (h *handlers) logsTruncate(w http.ResponseWriter, r *http.Request) {
	var req logsTruncateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.server.runner.TruncateLog(r.Context(), req.LogPath); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// logsDeleteAll runs POST /logs/delete-all.
func (h *handlers) logsDeleteAll(w http.ResponseWriter, r *http.Request) {
	var req logsDeleteAllRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.server.runner.DeleteAllLogs(r.Context(), req.Directory, req.Pattern); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// pruningExecute runs POST /pruning/execute: async, returns a job id
// immediately and runs the sequence detached.
func (h *handlers) pruningExecute(w http.ResponseWriter, r *http.Request) {
	var req pruningRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	domainReq := domain.PruningRequest{
		ServiceName:  req.ServiceName,
		DeployPath:   req.DeployPath,
		KeepBlocks:   req.KeepBlocks,
		KeepVersions: req.KeepVersions,
		LogPath:      req.LogPath,
	}

	jobID, err := h.server.executor.Start(r.Context(), req.Target, domain.OperationPruning,
		func(ctx context.Context) (any, error) {
			return h.server.sequences.Pruning(ctx, domainReq)
		})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, envelope{Success: true, JobID: jobID})
}

// snapshotCreate runs POST /snapshot/create: async, returns a job id.
func (h *handlers) snapshotCreate(w http.ResponseWriter, r *http.Request) {
	var req snapshotCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	domainReq := domain.SnapshotCreateRequest{
		NodeName:    req.NodeName,
		Network:     req.Network,
		DeployPath:  req.DeployPath,
		BackupPath:  req.BackupPath,
		ServiceName: req.ServiceName,
		LogPath:     req.LogPath,
	}

	jobID, err := h.server.executor.Start(r.Context(), req.Target, domain.OperationSnapshotCreate,
		func(ctx context.Context) (any, error) {
			return h.server.sequences.SnapshotCreate(ctx, domainReq)
		})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, envelope{Success: true, JobID: jobID})
}

// snapshotRestore runs POST /snapshot/restore: async, returns a job id.
func (h *handlers) snapshotRestore(w http.ResponseWriter, r *http.Request) {
	var req snapshotRestoreRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	domainReq := domain.SnapshotRestoreRequest{
		NodeName:             req.NodeName,
		DeployPath:           req.DeployPath,
		SnapshotFilePath:     req.SnapshotFilePath,
		ValidatorStateBackup: req.ValidatorStateBackup,
		ServiceName:          req.ServiceName,
		LogPath:              req.LogPath,
	}

	jobID, err := h.server.executor.Start(r.Context(), req.Target, domain.OperationSnapshotRestore,
		func(ctx context.Context) (any, error) {
			return h.server.sequences.SnapshotRestore(ctx, domainReq)
		})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, envelope{Success: true, JobID: jobID})
}

// snapshotCheckTriggers runs POST /snapshot/check-triggers: a synchronous
// tail-and-grep over the last 1000 lines of a log file, grounded on
// original_source/agent/src/services/commands.rs
// check_log_for_trigger_words.
func (h *handlers) snapshotCheckTriggers(w http.ResponseWriter, r *http.Request) {
	var req snapshotCheckTriggersRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(req.TriggerWords) == 0 {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: false})
		return
	}

	pattern := strings.Join(req.TriggerWords, "|")
	cmd := fmt.Sprintf("tail -n 1000 %s | grep -q -E %s", quoteShellArg(req.LogPath), quoteShellArg(pattern))
	_, err := h.server.runner.Shell(r.Context(), cmd)
	// grep exits non-zero ("upstream failed") when no line matched; that
	// is a negative result here, not an error.
	found := err == nil
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: found})
}

func quoteShellArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// stateSyncExecute runs POST /state-sync/execute: async, returns a job id.
func (h *handlers) stateSyncExecute(w http.ResponseWriter, r *http.Request) {
	var req stateSyncRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	domainReq := domain.StateSyncRequest{
		ServiceName:       req.ServiceName,
		DaemonBinary:      req.DaemonBinary,
		HomeDir:           req.HomeDir,
		ConfigPath:        req.ConfigPath,
		RPCServers:        req.RPCServers,
		TrustHeight:       req.TrustHeight,
		TrustHash:         req.TrustHash,
		TimeoutSeconds:    req.TimeoutSeconds,
		LogPath:           req.LogPath,
		RollbackOnTimeout: req.RollbackOnTimeout,
	}

	jobID, err := h.server.executor.Start(r.Context(), req.Target, domain.OperationStateSync,
		func(ctx context.Context) (any, error) {
			return h.server.sequences.StateSync(ctx, domainReq)
		})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, envelope{Success: true, JobID: jobID})
}

// operationStatus runs GET /operation/status/{job_id}.
func (h *handlers) operationStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := h.server.jobStore.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, apperrors.Missing("job "+jobID))
		return
	}

	resp := envelope{Success: true, Status: string(job.Status), JobID: job.ID}
	switch job.Status {
	case domain.JobCompleted:
		resp.Data = job.Result
	case domain.JobFailed:
		resp.Error = job.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusBusy runs POST /status/busy: reports every target with an
// in-flight operation.
func (h *handlers) statusBusy(w http.ResponseWriter, r *http.Request) {
	snapshot := h.server.registry.Snapshot()
	targets := make(map[string]string, len(snapshot))
	for target, entry := range snapshot {
		targets[target] = string(entry.Kind)
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: targets})
}

// statusCleanup runs POST /status/cleanup: the janitor's manually
// triggerable counterpart, GC'ing stale registry entries and terminal
// jobs older than the requested bound.
func (h *handlers) statusCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	registryMaxAge := hoursOrDefault(req.RegistryMaxAgeHours, 24)
	jobMaxAge := hoursOrDefault(req.JobMaxAgeHours, 48)

	removedEntries := h.server.registry.CleanupOlderThan(registryMaxAge)
	removedJobs := h.server.jobStore.CleanupOlderThan(jobMaxAge)

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]int{
			"registry_entries_removed": removedEntries,
			"jobs_removed":             removedJobs,
		},
	})
}

func hoursOrDefault(hours int, fallback int) time.Duration {
	if hours <= 0 {
		hours = fallback
	}
	return time.Duration(hours) * time.Hour
}

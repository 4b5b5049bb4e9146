package api

import (
	"encoding/json"
	"net/http"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// envelope is the JSON response shape every endpoint returns, per
// spec.md §6: "responses are JSON envelopes with success, optional
// data/output/error/status/uptime_seconds/filename/size_bytes/path/
// compression".
type envelope struct {
	Success       bool   `json:"success"`
	Data          any    `json:"data,omitempty"`
	Output        string `json:"output,omitempty"`
	Error         string `json:"error,omitempty"`
	Status        string `json:"status,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Filename      string `json:"filename,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
	Path          string `json:"path,omitempty"`
	Compression   string `json:"compression,omitempty"`
	JobID         string `json:"job_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}

// statusFor maps an apperrors.Kind to its HTTP status, per spec.md §7's
// taxonomy.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.AuthFailed):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.BusyTarget):
		return http.StatusConflict
	case apperrors.Is(err, apperrors.NotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.Timeout):
		return http.StatusGatewayTimeout
	case apperrors.Is(err, apperrors.ConfigInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type commandExecuteRequest struct {
	Command string `json:"command"`
}

type serviceRequest struct {
	ServiceName string `json:"service_name"`
}

type logsTruncateRequest struct {
	LogPath string `json:"log_path"`
}

type logsDeleteAllRequest struct {
	Directory string `json:"directory"`
	Pattern   string `json:"pattern"`
}

type pruningRequest struct {
	ServiceName  string `json:"service_name"`
	DeployPath   string `json:"deploy_path"`
	KeepBlocks   uint64 `json:"keep_blocks"`
	KeepVersions uint64 `json:"keep_versions"`
	LogPath      string `json:"log_path,omitempty"`
	Target       string `json:"target"`
}

type snapshotCreateRequest struct {
	NodeName    string `json:"node_name"`
	Network     string `json:"network"`
	DeployPath  string `json:"deploy_path"`
	BackupPath  string `json:"backup_path"`
	ServiceName string `json:"service_name"`
	LogPath     string `json:"log_path,omitempty"`
	Target      string `json:"target"`
}

type snapshotRestoreRequest struct {
	NodeName             string `json:"node_name"`
	DeployPath           string `json:"deploy_path"`
	SnapshotFilePath     string `json:"snapshot_file_path"`
	ValidatorStateBackup string `json:"validator_state_backup,omitempty"`
	ServiceName          string `json:"service_name"`
	LogPath              string `json:"log_path,omitempty"`
	Target               string `json:"target"`
}

type snapshotCheckTriggersRequest struct {
	LogPath      string   `json:"log_path"`
	TriggerWords []string `json:"trigger_words"`
}

type stateSyncRequest struct {
	ServiceName       string   `json:"service_name"`
	DaemonBinary      string   `json:"daemon_binary"`
	HomeDir           string   `json:"home_dir"`
	ConfigPath        string   `json:"config_path"`
	RPCServers        []string `json:"rpc_servers"`
	TrustHeight       uint64   `json:"trust_height"`
	TrustHash         string   `json:"trust_hash"`
	TimeoutSeconds    uint64   `json:"timeout_seconds"`
	LogPath           string   `json:"log_path,omitempty"`
	RollbackOnTimeout bool     `json:"rollback_on_timeout"`
	Target            string   `json:"target"`
}

type cleanupRequest struct {
	RegistryMaxAgeHours int `json:"registry_max_age_hours"`
	JobMaxAgeHours      int `json:"job_max_age_hours"`
}

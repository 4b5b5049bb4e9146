// Package domain holds the types shared across the agent and manager
// sides of the control plane: operation kinds, job status, and the
// request/result shapes operation sequences pass around.
package domain

import "time"

// OperationKind is a closed enum over the kinds of operation this system
// runs against a target. Go has no sum types; a const-enum with an
// IsValid guard and an exhaustive switch (panicking on the default case)
// is the idiomatic substitute spec.md's design notes call for.
type OperationKind string

const (
	OperationPruning         OperationKind = "pruning"
	OperationSnapshotCreate  OperationKind = "snapshot_create"
	OperationSnapshotRestore OperationKind = "snapshot_restore"
	OperationStateSync       OperationKind = "state_sync"
	OperationRestart         OperationKind = "restart"
	OperationHermesRestart   OperationKind = "hermes_restart"
)

// IsValid reports whether k is one of the known operation kinds.
func (k OperationKind) IsValid() bool {
	switch k {
	case OperationPruning, OperationSnapshotCreate, OperationSnapshotRestore,
		OperationStateSync, OperationRestart, OperationHermesRestart:
		return true
	default:
		return false
	}
}

// Deadline returns the operation-class deadline the Agent Client bounds
// its polling loop with, per original_source/manager/src/constants.rs
// operation_timeouts.
func (k OperationKind) Deadline() time.Duration {
	switch k {
	case OperationPruning:
		return 5 * time.Hour
	case OperationSnapshotCreate, OperationSnapshotRestore, OperationStateSync:
		return 24 * time.Hour
	case OperationRestart:
		return 30 * time.Minute
	case OperationHermesRestart:
		return 15 * time.Minute
	default:
		panic("unhandled OperationKind in Deadline: " + string(k))
	}
}

// JobStatus is the terminal-or-not state of an agent job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is the agent-side durable (in-memory) handle to a detached
// multi-step sequence, keyed by its id in the job store.
type Job struct {
	ID          string
	Kind        OperationKind
	Target      string
	Status      JobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Result      any
	Error       string
}

// PruningRequest is the input to the pruning sequence (spec.md §4.4).
type PruningRequest struct {
	ServiceName   string
	DeployPath    string
	KeepBlocks    uint64
	KeepVersions  uint64
	LogPath       string // optional, empty = skip truncation
}

// SnapshotCreateRequest is the input to the snapshot-create sequence.
type SnapshotCreateRequest struct {
	NodeName    string
	Network     string
	DeployPath  string
	BackupPath  string
	ServiceName string
	LogPath     string
}

// SnapshotCreateResult is the result document the sequence returns.
type SnapshotCreateResult struct {
	Filename string `json:"filename"`
	SizeBytes int64 `json:"size_bytes"`
	Path      string `json:"path"`
}

// SnapshotRestoreRequest is the input to the snapshot-restore sequence.
type SnapshotRestoreRequest struct {
	NodeName             string
	DeployPath           string
	SnapshotFilePath     string
	ValidatorStateBackup string // optional
	ServiceName          string
	LogPath              string
}

// StateSyncRequest is the input to the state-sync sequence.
type StateSyncRequest struct {
	ServiceName           string
	DaemonBinary           string
	HomeDir                string
	ConfigPath             string
	RPCServers             []string
	TrustHeight            uint64
	TrustHash              string
	TimeoutSeconds         uint64
	LogPath                string
	RollbackOnTimeout      bool
}

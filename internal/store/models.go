// Package store persists the manager's two append-only audit trails —
// health observations (spec.md §6's "Health record") and maintenance
// operation outcomes (spec.md §6's "Maintenance-operation record") —
// behind a storage-agnostic interface. Grounded on
// original_source/manager/src/database/{health,maintenance}.rs for the
// exact record shapes and query surface, and on the teacher's
// internal/store package for the Go interface/backend split (a small
// interface, a raw database/sql SQLite implementation, and GORM-backed
// secondary backends for Postgres/MySQL).
package store

import "time"

// HealthRecord is one observation of a node's health, grounded on
// original_source/manager/src/database/records.rs's HealthRecord.
type HealthRecord struct {
	ID               int64
	NodeName         string
	Healthy          bool
	ErrorMessage     string
	Timestamp        time.Time
	BlockHeight      int64
	Syncing          bool
	CatchingUp       bool
	ValidatorAddress string
}

// OperationStatus is the lifecycle state of a MaintenanceOperation.
type OperationStatus string

const (
	OperationRunning   OperationStatus = "running"
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
)

// MaintenanceOperation is an append-only audit row for one maintenance
// operation's outcome, grounded on
// original_source/manager/src/database/records.rs's MaintenanceOperation.
type MaintenanceOperation struct {
	ID            string
	OperationType string
	TargetName    string
	Status        OperationStatus
	StartedAt     time.Time
	CompletedAt   *time.Time
	ErrorMessage  string
	Details       string
}

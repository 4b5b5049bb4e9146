package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store with raw database/sql over the
// mattn/go-sqlite3 driver, grounded on the teacher's
// internal/store/sqlite.go (schema-via-Exec, sql.NullString scanning,
// WAL journal mode for concurrent readers during a writer's health
// poll).
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore builds a store backed by the database file at path.
// Call Init before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS health_records (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			node_name         TEXT NOT NULL,
			is_healthy        INTEGER NOT NULL,
			error_message     TEXT,
			timestamp         TEXT NOT NULL,
			block_height      INTEGER,
			is_syncing        INTEGER DEFAULT 0,
			is_catching_up    INTEGER DEFAULT 0,
			validator_address TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_health_node_time
			ON health_records(node_name, timestamp DESC);

		CREATE TABLE IF NOT EXISTS maintenance_operations (
			id             TEXT PRIMARY KEY,
			operation_type TEXT NOT NULL,
			target_name    TEXT NOT NULL,
			status         TEXT NOT NULL,
			started_at     TEXT NOT NULL,
			completed_at   TEXT,
			error_message  TEXT,
			details        TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_maint_target_started
			ON maintenance_operations(target_name, started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_maint_status_started
			ON maintenance_operations(status, started_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) StoreHealthRecord(ctx context.Context, r HealthRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_records (
			node_name, is_healthy, error_message, timestamp,
			block_height, is_syncing, is_catching_up, validator_address
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.NodeName, boolToInt(r.Healthy), nullString(r.ErrorMessage),
		r.Timestamp.Format(time.RFC3339), r.BlockHeight, boolToInt(r.Syncing),
		boolToInt(r.CatchingUp), nullString(r.ValidatorAddress),
	)
	return err
}

func (s *SQLiteStore) GetLatestHealthRecord(ctx context.Context, nodeName string) (*HealthRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, node_name, is_healthy, error_message, timestamp,
		       block_height, is_syncing, is_catching_up, validator_address
		FROM health_records
		WHERE node_name = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, nodeName)

	var r HealthRecord
	var healthy, syncing, catchingUp int
	var errMsg, validator sql.NullString
	var timestamp string
	var blockHeight sql.NullInt64

	err := row.Scan(&r.ID, &r.NodeName, &healthy, &errMsg, &timestamp,
		&blockHeight, &syncing, &catchingUp, &validator)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Healthy = healthy == 1
	r.Syncing = syncing == 1
	r.CatchingUp = catchingUp == 1
	r.ErrorMessage = errMsg.String
	r.ValidatorAddress = validator.String
	r.BlockHeight = blockHeight.Int64
	r.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	return &r, nil
}

func (s *SQLiteStore) PruneHealthRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM health_records WHERE timestamp < ?`,
		olderThan.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) StoreMaintenanceOperation(ctx context.Context, op MaintenanceOperation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO maintenance_operations (
			id, operation_type, target_name, status, started_at,
			completed_at, error_message, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		op.ID, op.OperationType, op.TargetName, string(op.Status),
		op.StartedAt.Format(time.RFC3339), formatTimePtr(op.CompletedAt),
		nullString(op.ErrorMessage), nullString(op.Details),
	)
	return err
}

func (s *SQLiteStore) GetMaintenanceOperation(ctx context.Context, id string) (*MaintenanceOperation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, operation_type, target_name, status, started_at,
		       completed_at, error_message, details
		FROM maintenance_operations
		WHERE id = ?
	`, id)

	var op MaintenanceOperation
	var status, startedAt string
	var completedAt, errMsg, details sql.NullString

	err := row.Scan(&op.ID, &op.OperationType, &op.TargetName, &status,
		&startedAt, &completedAt, &errMsg, &details)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	op.Status = OperationStatus(status)
	op.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	op.ErrorMessage = errMsg.String
	op.Details = details.String
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		op.CompletedAt = &t
	}
	return &op, nil
}

func (s *SQLiteStore) PruneMaintenanceOperations(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM maintenance_operations WHERE started_at < ?`,
		olderThan.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

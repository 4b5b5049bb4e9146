package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// healthRecordRow and maintenanceOperationRow are the GORM-mapped
// equivalents of HealthRecord/MaintenanceOperation. GORM backends are
// reserved for Postgres/MySQL deployments large enough to want a real
// database server; SQLite keeps the raw database/sql path since that is
// the deployment default and the teacher's own SQLite backend bypasses
// GORM too.
type healthRecordRow struct {
	ID               int64 `gorm:"primaryKey;autoIncrement"`
	NodeName         string `gorm:"column:node_name;index:idx_health_node_time,priority:1"`
	Healthy          bool   `gorm:"column:is_healthy"`
	ErrorMessage     string `gorm:"column:error_message"`
	Timestamp        time.Time `gorm:"column:timestamp;index:idx_health_node_time,priority:2,sort:desc"`
	BlockHeight      int64  `gorm:"column:block_height"`
	Syncing          bool   `gorm:"column:is_syncing"`
	CatchingUp       bool   `gorm:"column:is_catching_up"`
	ValidatorAddress string `gorm:"column:validator_address"`
}

func (healthRecordRow) TableName() string { return "health_records" }

type maintenanceOperationRow struct {
	ID            string `gorm:"primaryKey;column:id"`
	OperationType string `gorm:"column:operation_type"`
	TargetName    string `gorm:"column:target_name;index:idx_maint_target_started,priority:1"`
	Status        string `gorm:"column:status;index:idx_maint_status_started,priority:1"`
	StartedAt     time.Time `gorm:"column:started_at;index:idx_maint_target_started,priority:2,sort:desc;index:idx_maint_status_started,priority:2,sort:desc"`
	CompletedAt   *time.Time `gorm:"column:completed_at"`
	ErrorMessage  string     `gorm:"column:error_message"`
	Details       string     `gorm:"column:details"`
}

func (maintenanceOperationRow) TableName() string { return "maintenance_operations" }

// GormStore implements Store over GORM, for Postgres or MySQL backends.
// Grounded on the teacher's internal/store/gorm.go (dialector switch,
// AutoMigrate-based schema, silenced default logger).
type GormStore struct {
	db      *gorm.DB
	dialect string
}

// NewGormStore opens a GORM-backed store. dialect is "postgres" or
// "mysql"; dsn is the driver-specific connection string.
func NewGormStore(dialect, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &GormStore{db: db, dialect: dialect}, nil
}

func (s *GormStore) Init(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&healthRecordRow{}, &maintenanceOperationRow{})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) StoreHealthRecord(ctx context.Context, r HealthRecord) error {
	row := healthRecordRow{
		NodeName:         r.NodeName,
		Healthy:          r.Healthy,
		ErrorMessage:     r.ErrorMessage,
		Timestamp:        r.Timestamp,
		BlockHeight:      r.BlockHeight,
		Syncing:          r.Syncing,
		CatchingUp:       r.CatchingUp,
		ValidatorAddress: r.ValidatorAddress,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) GetLatestHealthRecord(ctx context.Context, nodeName string) (*HealthRecord, error) {
	var row healthRecordRow
	err := s.db.WithContext(ctx).
		Where("node_name = ?", nodeName).
		Order("timestamp DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &HealthRecord{
		ID:               row.ID,
		NodeName:         row.NodeName,
		Healthy:          row.Healthy,
		ErrorMessage:     row.ErrorMessage,
		Timestamp:        row.Timestamp,
		BlockHeight:      row.BlockHeight,
		Syncing:          row.Syncing,
		CatchingUp:       row.CatchingUp,
		ValidatorAddress: row.ValidatorAddress,
	}, nil
}

func (s *GormStore) PruneHealthRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("timestamp < ?", olderThan).Delete(&healthRecordRow{})
	return result.RowsAffected, result.Error
}

func (s *GormStore) StoreMaintenanceOperation(ctx context.Context, op MaintenanceOperation) error {
	row := maintenanceOperationRow{
		ID:            op.ID,
		OperationType: op.OperationType,
		TargetName:    op.TargetName,
		Status:        string(op.Status),
		StartedAt:     op.StartedAt,
		CompletedAt:   op.CompletedAt,
		ErrorMessage:  op.ErrorMessage,
		Details:       op.Details,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *GormStore) GetMaintenanceOperation(ctx context.Context, id string) (*MaintenanceOperation, error) {
	var row maintenanceOperationRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &MaintenanceOperation{
		ID:            row.ID,
		OperationType: row.OperationType,
		TargetName:    row.TargetName,
		Status:        OperationStatus(row.Status),
		StartedAt:     row.StartedAt,
		CompletedAt:   row.CompletedAt,
		ErrorMessage:  row.ErrorMessage,
		Details:       row.Details,
	}, nil
}

func (s *GormStore) PruneMaintenanceOperations(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("started_at < ?", olderThan).Delete(&maintenanceOperationRow{})
	return result.RowsAffected, result.Error
}

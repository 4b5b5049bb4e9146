package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SQLiteStoreTestSuite struct {
	suite.Suite
	store *SQLiteStore
	ctx   context.Context
}

func (s *SQLiteStoreTestSuite) SetupTest() {
	dbPath := filepath.Join(s.T().TempDir(), "test.db")
	s.store = NewSQLiteStore(dbPath)
	s.ctx = context.Background()
	require.NoError(s.T(), s.store.Init(s.ctx))
}

func (s *SQLiteStoreTestSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreTestSuite))
}

func (s *SQLiteStoreTestSuite) TestStoreAndGetLatestHealthRecord() {
	older := HealthRecord{
		NodeName:  "node-1",
		Healthy:   true,
		Timestamp: time.Now().Add(-time.Hour),
	}
	newer := HealthRecord{
		NodeName:         "node-1",
		Healthy:          false,
		ErrorMessage:     "rpc timeout",
		Timestamp:        time.Now(),
		BlockHeight:      12345,
		CatchingUp:       true,
		ValidatorAddress: "nolusvaloper1...",
	}

	require.NoError(s.T(), s.store.StoreHealthRecord(s.ctx, older))
	require.NoError(s.T(), s.store.StoreHealthRecord(s.ctx, newer))

	latest, err := s.store.GetLatestHealthRecord(s.ctx, "node-1")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), latest)
	s.False(latest.Healthy)
	s.Equal("rpc timeout", latest.ErrorMessage)
	s.Equal(int64(12345), latest.BlockHeight)
	s.True(latest.CatchingUp)
}

func (s *SQLiteStoreTestSuite) TestGetLatestHealthRecordMissingNode() {
	rec, err := s.store.GetLatestHealthRecord(s.ctx, "no-such-node")
	require.NoError(s.T(), err)
	s.Nil(rec)
}

func (s *SQLiteStoreTestSuite) TestPruneHealthRecords() {
	require.NoError(s.T(), s.store.StoreHealthRecord(s.ctx, HealthRecord{
		NodeName: "node-1", Healthy: true, Timestamp: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(s.T(), s.store.StoreHealthRecord(s.ctx, HealthRecord{
		NodeName: "node-1", Healthy: true, Timestamp: time.Now(),
	}))

	pruned, err := s.store.PruneHealthRecords(s.ctx, time.Now().Add(-24*time.Hour))
	require.NoError(s.T(), err)
	s.Equal(int64(1), pruned)
}

func (s *SQLiteStoreTestSuite) TestStoreAndGetMaintenanceOperation() {
	completed := time.Now()
	op := MaintenanceOperation{
		ID:            "pruning_node-1_1700000000",
		OperationType: "pruning",
		TargetName:    "node-1",
		Status:        OperationCompleted,
		StartedAt:     completed.Add(-10 * time.Minute),
		CompletedAt:   &completed,
		Details:       `{"freed_bytes":123456}`,
	}
	require.NoError(s.T(), s.store.StoreMaintenanceOperation(s.ctx, op))

	got, err := s.store.GetMaintenanceOperation(s.ctx, op.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got)
	s.Equal(OperationCompleted, got.Status)
	s.Equal("node-1", got.TargetName)
	require.NotNil(s.T(), got.CompletedAt)
}

func (s *SQLiteStoreTestSuite) TestStoreMaintenanceOperationUpsertsOnReplace() {
	op := MaintenanceOperation{
		ID:            "snapshot-create_node-1_1700000000",
		OperationType: "snapshot-create",
		TargetName:    "node-1",
		Status:        OperationRunning,
		StartedAt:     time.Now(),
	}
	require.NoError(s.T(), s.store.StoreMaintenanceOperation(s.ctx, op))

	op.Status = OperationFailed
	op.ErrorMessage = "disk full"
	require.NoError(s.T(), s.store.StoreMaintenanceOperation(s.ctx, op))

	got, err := s.store.GetMaintenanceOperation(s.ctx, op.ID)
	require.NoError(s.T(), err)
	s.Equal(OperationFailed, got.Status)
	s.Equal("disk full", got.ErrorMessage)
}

func (s *SQLiteStoreTestSuite) TestGetMaintenanceOperationMissing() {
	got, err := s.store.GetMaintenanceOperation(s.ctx, "no-such-id")
	require.NoError(s.T(), err)
	s.Nil(got)
}

func (s *SQLiteStoreTestSuite) TestHealthCheck() {
	require.NoError(s.T(), s.store.Health(s.ctx))
}

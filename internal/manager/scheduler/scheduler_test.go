package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/dispatch"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
)

func TestDispatchSkipsNodeInMaintenance(t *testing.T) {
	maint := maintenance.New()
	maint.Start("node-1", string(domain.OperationPruning), 15, "server-1")

	s := &Scheduler{dispatcher: &dispatch.Dispatcher{}, maintenance: maint}

	// dispatch must return without calling into the (nil-backed)
	// dispatcher, since the node is already in maintenance.
	assert.NotPanics(t, func() {
		s.dispatch("node-1", config.NodeConfig{}, domain.OperationPruning)
	})
}

func TestNewRegistersOnlyEnabledSchedules(t *testing.T) {
	nodes := map[string]config.NodeConfig{
		"node-1": {
			Enabled:          true,
			PruningEnabled:   true,
			PruningSchedule:  "0 0 3 * * *",
			SnapshotsEnabled: false,
		},
		"node-2": {
			Enabled: false,
		},
	}

	s := New(nodes, &dispatch.Dispatcher{}, maintenance.New())
	assert.NotNil(t, s.cron)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestInvalidCronExpressionIsSkippedNotFatal(t *testing.T) {
	nodes := map[string]config.NodeConfig{
		"node-1": {
			Enabled:         true,
			PruningEnabled:  true,
			PruningSchedule: "not-a-cron-expression",
		},
	}

	assert.NotPanics(t, func() {
		s := New(nodes, &dispatch.Dispatcher{}, maintenance.New())
		assert.Empty(t, s.cron.Entries())
	})
}

func TestStopReturnsWithNoRunningJobs(t *testing.T) {
	s := New(nil, &dispatch.Dispatcher{}, maintenance.New())
	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

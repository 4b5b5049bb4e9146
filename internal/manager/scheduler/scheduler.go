// Package scheduler implements the manager's cron-driven dispatch
// (spec.md C9): one entry per configured node/operation schedule,
// running in the manager's local timezone, skipping a node already in
// maintenance before handing off to the Dispatcher.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/dispatch"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
)

// Scheduler owns a cron.Cron instance registered with six-field
// expressions (seconds field included), bound to time.Local per
// SPEC_FULL.md §9's cron-timezone resolution.
type Scheduler struct {
	cron        *cron.Cron
	dispatcher  *dispatch.Dispatcher
	maintenance *maintenance.Tracker
}

// New builds a Scheduler bound to the manager's local timezone and
// registers one cron entry per node for each of its enabled
// pruning/snapshot/state-sync schedules.
func New(nodes map[string]config.NodeConfig, dispatcher *dispatch.Dispatcher, maintTracker *maintenance.Tracker) *Scheduler {
	s := &Scheduler{
		cron:        cron.New(cron.WithSeconds(), cron.WithLocation(time.Local)),
		dispatcher:  dispatcher,
		maintenance: maintTracker,
	}

	for name, node := range nodes {
		if !node.Enabled {
			continue
		}
		s.register(name, node)
	}
	return s
}

func (s *Scheduler) register(nodeName string, node config.NodeConfig) {
	logger := log.WithNode(nodeName)

	if node.PruningEnabled && node.PruningSchedule != "" {
		s.addJob(nodeName, node, node.PruningSchedule, domain.OperationPruning)
	}
	if node.SnapshotsEnabled && node.SnapshotSchedule != "" {
		s.addJob(nodeName, node, node.SnapshotSchedule, domain.OperationSnapshotCreate)
	}
	if node.StateSyncEnabled && node.StateSyncSchedule != "" {
		s.addJob(nodeName, node, node.StateSyncSchedule, domain.OperationStateSync)
	}

	logger.Debug().Msg("registered node schedules")
}

func (s *Scheduler) addJob(nodeName string, node config.NodeConfig, expr string, kind domain.OperationKind) {
	logger := log.WithNode(nodeName)
	_, err := s.cron.AddFunc(expr, func() {
		s.dispatch(nodeName, node, kind)
	})
	if err != nil {
		logger.Error().Err(err).Str("schedule", expr).Str("operation", string(kind)).
			Msg("invalid cron expression, schedule not registered")
	}
}

func (s *Scheduler) dispatch(nodeName string, node config.NodeConfig, kind domain.OperationKind) {
	logger := log.WithNode(nodeName)

	if s.maintenance.IsInMaintenance(nodeName) {
		logger.Info().Str("operation", string(kind)).Msg("skipping scheduled operation, node in maintenance")
		return
	}

	ctx := context.Background()
	logger.Info().Str("operation", string(kind)).Msg("dispatching scheduled operation")
	if err := s.dispatcher.Run(ctx, nodeName, node, kind, "scheduler"); err != nil {
		logger.Warn().Err(err).Str("operation", string(kind)).Msg("scheduled operation failed")
	}
}

// Start begins running registered cron entries.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any running job funcs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

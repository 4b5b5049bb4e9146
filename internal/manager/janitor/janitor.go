// Package janitor runs the manager's periodic sweep of stale Operation
// Tracker entries and expired Maintenance windows, plus pruning of old
// audit rows. Grounded on the agent's internal/agent/janitor package
// (same ticker-loop shape) and
// original_source/manager/src/constants.rs's cleanup:: module for the
// horizons: operation rows older than 24h, maintenance windows older
// than 48h, a 1h sweep interval.
package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/store"
)

// Janitor periodically GCs the manager's in-memory trackers and prunes
// old audit rows from the store.
type Janitor struct {
	optracker         *optracker.Tracker
	maintenance       *maintenance.Tracker
	store             store.Store
	interval          time.Duration
	operationMaxAge   time.Duration
	maintenanceMaxAge time.Duration
	auditRetention    time.Duration
}

// New builds a Janitor with the spec-default horizons. st may be nil,
// in which case audit-row pruning is skipped (useful in tests that
// exercise only the in-memory trackers).
func New(opt *optracker.Tracker, maint *maintenance.Tracker, st store.Store) *Janitor {
	return &Janitor{
		optracker:         opt,
		maintenance:       maint,
		store:             st,
		interval:          time.Hour,
		operationMaxAge:   24 * time.Hour,
		maintenanceMaxAge: 48 * time.Hour,
		auditRetention:    30 * 24 * time.Hour,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	logger := log.WithComponent("manager-janitor")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx, logger)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context, logger zerolog.Logger) {
	removedOps := j.optracker.CleanupOlderThan(j.operationMaxAge)
	removedWindows := j.maintenance.CleanupExpired(j.maintenanceMaxAge)

	var prunedHealth, prunedOps int64
	if j.store != nil {
		cutoff := time.Now().Add(-j.auditRetention)
		var err error
		if prunedHealth, err = j.store.PruneHealthRecords(ctx, cutoff); err != nil {
			logger.Warn().Err(err).Msg("failed to prune health records")
		}
		if prunedOps, err = j.store.PruneMaintenanceOperations(ctx, cutoff); err != nil {
			logger.Warn().Err(err).Msg("failed to prune maintenance operation records")
		}
	}

	if removedOps > 0 || removedWindows > 0 || prunedHealth > 0 || prunedOps > 0 {
		logger.Info().
			Int("stale_operations_removed", removedOps).
			Int("expired_maintenance_windows_removed", removedWindows).
			Int64("health_records_pruned", prunedHealth).
			Int64("maintenance_rows_pruned", prunedOps).
			Msg("janitor sweep")
	}
}

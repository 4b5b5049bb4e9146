// Package janitor runs the agent's periodic sweep of stale registry
// entries and terminal jobs, the background counterpart to the
// POST /status/cleanup endpoint.
package janitor

import (
	"context"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/jobs"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/registry"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
)

// Janitor periodically GCs the registry and job store. Grounded on
// original_source/manager/src/constants.rs cleanup::{OPERATION_CLEANUP_HOURS,
// JOB_CLEANUP_HOURS, CLEANUP_INTERVAL_SECONDS} — the agent reuses the same
// cadence and bounds the manager's janitor uses.
type Janitor struct {
	registry       *registry.Registry
	jobs           *jobs.Store
	interval       time.Duration
	registryMaxAge time.Duration
	jobMaxAge      time.Duration
}

func New(reg *registry.Registry, store *jobs.Store) *Janitor {
	return &Janitor{
		registry:       reg,
		jobs:           store,
		interval:       time.Hour,
		registryMaxAge: 24 * time.Hour,
		jobMaxAge:      48 * time.Hour,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	logger := log.WithComponent("agent-janitor")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removedEntries := j.registry.CleanupOlderThan(j.registryMaxAge)
			removedJobs := j.jobs.CleanupOlderThan(j.jobMaxAge)
			if removedEntries > 0 || removedJobs > 0 {
				logger.Info().
					Int("registry_entries_removed", removedEntries).
					Int("jobs_removed", removedJobs).
					Msg("janitor sweep")
			}
		}
	}
}

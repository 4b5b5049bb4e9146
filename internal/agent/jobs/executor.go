package jobs

import (
	"context"
	"fmt"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/registry"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
)

// Operation is the nullary closure a sequence runs detached: it performs
// the work and returns a result document or an error.
type Operation func(ctx context.Context) (result any, err error)

// Executor combines the Operation Registry and Job Store into the single
// higher-level entry point spec.md §4.1 names execute_async.
type Executor struct {
	registry *registry.Registry
	jobs     *Store
}

func NewExecutor(reg *registry.Registry, store *Store) *Executor {
	return &Executor{registry: reg, jobs: store}
}

// Start claims target in the registry, issues a job id, and spawns a
// detached goroutine to run op, unconditionally releasing the registry
// entry when it finishes. Returns the job id, or a BusyTarget error if
// target already has an operation in flight.
func (e *Executor) Start(ctx context.Context, target string, kind domain.OperationKind, op Operation) (string, error) {
	if err := e.registry.Claim(target, kind); err != nil {
		return "", err
	}

	job := e.jobs.NewJob(kind, target)
	logger := log.WithJob(job.ID)

	go func() {
		defer e.registry.Release(target)
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("operation sequence panicked")
				e.jobs.Fail(job.ID, fmt.Sprintf("panic: %v", r))
			}
		}()

		result, err := op(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("operation sequence failed")
			e.jobs.Fail(job.ID, err.Error())
			return
		}
		logger.Info().Msg("operation sequence completed")
		e.jobs.Complete(job.ID, result)
	}()

	return job.ID, nil
}

// Package sequences implements the agent's four multi-step operation
// sequences (spec.md §4.4): pruning, snapshot create, snapshot restore,
// state sync. Every sequence is strictly ordered and fail-fast — any
// step error aborts it with no rollback beyond what that step itself
// performed.
package sequences

import (
	"context"
	"fmt"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/exec"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

// Sequences bundles the runner every sequence function needs. Grounded
// on original_source/agent/src/operations/*.rs, one file per sequence.
type Sequences struct {
	runner *exec.Runner
}

func New(runner *exec.Runner) *Sequences {
	return &Sequences{runner: runner}
}

// Pruning runs the pruning sequence, grounded on
// original_source/agent/src/operations/pruning.rs.
func (s *Sequences) Pruning(ctx context.Context, req domain.PruningRequest) (string, error) {
	r := s.runner

	if err := r.StopService(ctx, req.ServiceName); err != nil {
		return "", err
	}

	if req.LogPath != "" {
		if err := r.TruncateLog(ctx, req.LogPath); err != nil {
			return "", err
		}
	}

	prunerCmd := fmt.Sprintf("cosmos-pruner prune %s --blocks=%d --versions=%d",
		req.DeployPath, req.KeepBlocks, req.KeepVersions)
	if _, err := r.Shell(ctx, prunerCmd); err != nil {
		return "", err
	}

	if err := r.StartService(ctx, req.ServiceName); err != nil {
		return "", err
	}

	if err := r.VerifyActive(ctx, req.ServiceName); err != nil {
		return "", err
	}

	return fmt.Sprintf("pruning completed for %s (kept %d blocks, %d versions)",
		req.DeployPath, req.KeepBlocks, req.KeepVersions), nil
}

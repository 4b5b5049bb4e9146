package sequences

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

const syncPollInterval = 10 * time.Second

// StateSync runs the state-sync sequence, grounded on
// original_source/agent/src/operations/state_sync.rs.
func (s *Sequences) StateSync(ctx context.Context, req domain.StateSyncRequest) (string, error) {
	r := s.runner

	if err := r.StopService(ctx, req.ServiceName); err != nil {
		return "", err
	}

	if req.LogPath != "" {
		if err := r.TruncateLog(ctx, req.LogPath); err != nil {
			return "", err
		}
	}

	if err := enableStatesync(req.ConfigPath, req.RPCServers, req.TrustHeight, req.TrustHash); err != nil {
		return "", err
	}

	resetCmd := fmt.Sprintf("%s tendermint unsafe-reset-all --home %s --keep-addr-book", req.DaemonBinary, req.HomeDir)
	if _, err := r.Shell(ctx, resetCmd); err != nil {
		return "", err
	}

	wasmCache := filepath.Join(req.HomeDir, "wasm", "cache")
	if r.Exists(ctx, wasmCache) {
		if err := r.DeleteDirectory(ctx, wasmCache); err != nil {
			return "", err
		}
	}

	if err := r.StartService(ctx, req.ServiceName); err != nil {
		return "", err
	}

	if err := s.waitForSyncCompletion(ctx, req.DaemonBinary, req.HomeDir, time.Duration(req.TimeoutSeconds)*time.Second); err != nil {
		if req.RollbackOnTimeout {
			// Best-effort: the job still fails on timeout regardless, but
			// an operator opting into rollback gets the config restored
			// to its pre-sync state rather than left with statesync
			// enabled against a node that never finished catching up.
			_ = disableStatesync(req.ConfigPath)
		}
		return "", err
	}

	// Post-timeout posture is decided only on the timeout path above;
	// on success we always disable state sync so a restart doesn't
	// re-trigger it, per spec.md §4.4 step 8.
	if err := disableStatesync(req.ConfigPath); err != nil {
		return "", err
	}

	if err := r.StopService(ctx, req.ServiceName); err != nil {
		return "", err
	}
	time.Sleep(2 * time.Second)
	if err := r.StartService(ctx, req.ServiceName); err != nil {
		return "", err
	}

	if err := r.VerifyActive(ctx, req.ServiceName); err != nil {
		return "", err
	}

	return fmt.Sprintf("state sync completed for %s (trust height %d)", req.ServiceName, req.TrustHeight), nil
}

// waitForSyncCompletion polls the daemon's status every 10s until
// catching_up is false, bounded by timeout, and returns a Timeout error
// once the deadline passes. It does not edit the daemon config: StateSync
// disables [statesync] after a timeout only when req.RollbackOnTimeout
// is set, and otherwise leaves it enabled.
func (s *Sequences) waitForSyncCompletion(ctx context.Context, daemonBinary, homeDir string, timeout time.Duration) error {
	statusCmd := fmt.Sprintf(
		"%s status --home %s 2>&1 | grep -o '\"catching_up\":[^,]*' | cut -d':' -f2",
		daemonBinary, homeDir,
	)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(syncPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return apperrors.TimeoutAfter("state sync completion", timeout.String())
			}
			out, err := s.runner.Shell(ctx, statusCmd)
			if err != nil {
				continue // node might not be ready yet
			}
			if strings.TrimSpace(out) == "false" {
				return nil
			}
		}
	}
}

package sequences

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

// SnapshotRestore runs the snapshot-restore sequence, grounded on
// original_source/agent/src/operations/restore.rs.
//
// Steps 4/8 (delete existing data/wasm, then re-seed the validator
// private-state file from the caller-supplied backup rather than
// whatever the archive itself contained) exist because the daemon's
// validator state file records the last signed consensus round:
// restoring one captured on a different node would risk double-signing.
func (s *Sequences) SnapshotRestore(ctx context.Context, req domain.SnapshotRestoreRequest) (string, error) {
	r := s.runner

	if !r.Exists(ctx, req.SnapshotFilePath) {
		return "", apperrors.Missing(req.SnapshotFilePath)
	}
	size, err := r.FileSize(ctx, req.SnapshotFilePath) // informational only
	if err != nil {
		return "", err
	}

	if err := r.StopService(ctx, req.ServiceName); err != nil {
		return "", err
	}

	if req.LogPath != "" {
		if err := r.TruncateLog(ctx, req.LogPath); err != nil {
			return "", err
		}
	}

	dataDir := filepath.Join(req.DeployPath, "data")
	wasmDir := filepath.Join(req.DeployPath, "wasm")
	if r.Exists(ctx, dataDir) {
		if err := r.DeleteDirectory(ctx, dataDir); err != nil {
			return "", err
		}
	}
	if r.Exists(ctx, wasmDir) {
		if err := r.DeleteDirectory(ctx, wasmDir); err != nil {
			return "", err
		}
	}

	if err := r.ExtractArchive(ctx, req.SnapshotFilePath, req.DeployPath); err != nil {
		return "", err
	}

	if !r.Exists(ctx, dataDir) {
		return "", apperrors.FailedPostcondition("restored data directory", "missing")
	}

	if req.ValidatorStateBackup != "" {
		dest := filepath.Join(dataDir, "priv_validator_state.json")
		if err := r.CopyFileIfExists(ctx, req.ValidatorStateBackup, dest); err != nil {
			return "", err
		}
	}

	if err := r.ChownLike(ctx, dataDir, req.DeployPath); err != nil {
		return "", err
	}
	if r.Exists(ctx, wasmDir) {
		if err := r.ChownLike(ctx, wasmDir, req.DeployPath); err != nil {
			return "", err
		}
	}

	if err := r.StartService(ctx, req.ServiceName); err != nil {
		return "", err
	}
	if err := r.VerifyActive(ctx, req.ServiceName); err != nil {
		return "", err
	}

	return fmt.Sprintf("restored %s (%d bytes) into %s", req.SnapshotFilePath, size, req.DeployPath), nil
}

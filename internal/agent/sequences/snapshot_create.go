package sequences

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
)

// timestampFormat matches the UTC yyyymmdd_HHMMSS filename convention
// spec.md §6 names for snapshot archives.
const timestampFormat = "20060102_150405"

// SnapshotCreate runs the snapshot-create sequence, grounded on
// original_source/agent/src/operations/snapshots.rs.
//
// The archive is named "{network}_{timestamp}.tar.gz" rather than
// "{node_name}_{timestamp}.tar.gz" — see DESIGN.md's resolution of
// spec.md §9's snapshot-filename open question: cross-node restore for
// the same chain requires the network-based form.
func (s *Sequences) SnapshotCreate(ctx context.Context, req domain.SnapshotCreateRequest) (domain.SnapshotCreateResult, error) {
	r := s.runner

	if err := r.CreateDirectory(ctx, req.BackupPath); err != nil {
		return domain.SnapshotCreateResult{}, err
	}

	if err := r.StopService(ctx, req.ServiceName); err != nil {
		return domain.SnapshotCreateResult{}, err
	}

	if req.LogPath != "" {
		if err := r.TruncateLog(ctx, req.LogPath); err != nil {
			return domain.SnapshotCreateResult{}, err
		}
	}

	timestamp := time.Now().UTC().Format(timestampFormat)

	validatorState := filepath.Join(req.DeployPath, "data", "priv_validator_state.json")
	if r.Exists(ctx, validatorState) {
		backupDest := filepath.Join(req.BackupPath, fmt.Sprintf("validator_state_backup_%s.json", timestamp))
		if err := r.CopyFileIfExists(ctx, validatorState, backupDest); err != nil {
			return domain.SnapshotCreateResult{}, err
		}
	}

	filename := fmt.Sprintf("%s_%s.tar.gz", req.Network, timestamp)
	archivePath := filepath.Join(req.BackupPath, filename)
	if err := r.CreateGzipArchive(ctx, req.DeployPath, archivePath, []string{"data", "wasm"}); err != nil {
		return domain.SnapshotCreateResult{}, err
	}

	size, err := r.FileSize(ctx, archivePath)
	if err != nil {
		return domain.SnapshotCreateResult{}, err
	}

	if err := r.StartService(ctx, req.ServiceName); err != nil {
		return domain.SnapshotCreateResult{}, err
	}

	if err := r.VerifyActive(ctx, req.ServiceName); err != nil {
		return domain.SnapshotCreateResult{}, err
	}

	return domain.SnapshotCreateResult{
		Filename:  filename,
		SizeBytes: size,
		Path:      archivePath,
	}, nil
}

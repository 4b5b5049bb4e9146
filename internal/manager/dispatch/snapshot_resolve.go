package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/agentclient"
)

// resolveSnapshotFile locates the most recently modified snapshot archive
// for network under backupDir, by running the same find/stat/sort pipeline
// original_source/agent/src/services/commands.rs's find_latest_snapshot
// runs, through the agent's synchronous command endpoint. The manager
// picks the file, not the agent, since restore dispatch needs a concrete
// path before it can build the /snapshot/restore request body.
func resolveSnapshotFile(ctx context.Context, client *agentclient.Client, backupDir, network string) (string, error) {
	cmd := fmt.Sprintf(
		"find '%s' -name '%s_*.lz4' -o -name '%s_*.tar.gz' | xargs -r stat -c '%%Y %%n' | sort -nr | head -1 | cut -d' ' -f2-",
		backupDir, network, network,
	)
	out, err := client.Command(ctx, cmd)
	if err != nil {
		return "", err
	}
	path := strings.TrimSpace(out)
	if path == "" {
		return "", apperrors.Missing(fmt.Sprintf("snapshot archive for network %q under %s", network, backupDir))
	}
	return path, nil
}

// resolveValidatorStateBackup looks for the validator-state backup file
// accompanying snapshotPath, grounded on
// find_validator_backup_for_snapshot's timestamp-derived naming
// convention. A missing or unparsable companion is not an error: restore
// proceeds without one, as snapshot_restore.go's sequence already treats
// an empty ValidatorStateBackup as "skip the copy".
func resolveValidatorStateBackup(ctx context.Context, client *agentclient.Client, backupDir, snapshotPath string) string {
	timestamp, err := snapshotTimestamp(snapshotPath)
	if err != nil {
		return ""
	}
	path := filepath.Join(backupDir, fmt.Sprintf("validator_state_backup_%s.json", timestamp))
	if _, err := client.Command(ctx, fmt.Sprintf("test -f '%s'", path)); err != nil {
		return ""
	}
	return path
}

// snapshotTimestamp extracts the "YYYYMMDD_HHMMSS" timestamp out of a
// "{network}_{timestamp}.{ext}" snapshot filename, mirroring
// extract_timestamp_from_snapshot_filename's naive underscore split (it
// assumes the network segment itself carries no underscore).
func snapshotTimestamp(filename string) (string, error) {
	base := filepath.Base(filename)
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid snapshot filename format: %s", filename)
	}
	rest := parts[2]
	for _, suffix := range []string{".tar.gz", ".tar.lz4", ".lz4", ".tgz"} {
		if strings.HasSuffix(rest, suffix) {
			rest = strings.TrimSuffix(rest, suffix)
			break
		}
	}
	return parts[1] + "_" + rest, nil
}

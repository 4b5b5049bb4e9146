// Package dispatch implements the manager's end-to-end drive of one
// operation against one node: claim the node in the Operation Tracker
// (C7), open a Maintenance Tracker (C6) window, call the Agent Client
// (C8) to start the sequence and poll it to completion, persist an
// audit record (C14), and release both trackers on every exit path.
// This is the "Scheduler (C9) -> C6 -> C8 -> ... -> audit record"
// flow spec.md §2 names; it is shared by the cron Scheduler and by a
// manually triggered operation through the manager's own HTTP surface
// (C18).
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/agentclient"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/alerts"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/store"
)

// estimatedMinutes is the maintenance-window duration hint recorded at
// dispatch time, separate from the operation-class deadline C8's
// WaitForJob is bounded by (a window merely informs observers; it does
// not itself time anything out).
func estimatedMinutes(kind domain.OperationKind) uint32 {
	switch kind {
	case domain.OperationPruning:
		return 15
	case domain.OperationSnapshotCreate:
		return 60
	case domain.OperationSnapshotRestore:
		return 60
	case domain.OperationStateSync:
		return 240
	case domain.OperationRestart:
		return 5
	case domain.OperationHermesRestart:
		return 5
	default:
		return 30
	}
}

// Dispatcher owns the shared trackers and per-server agent clients
// needed to run an operation end to end.
type Dispatcher struct {
	clients     map[string]*agentclient.Client
	optracker   *optracker.Tracker
	maintenance *maintenance.Tracker
	store       store.OperationStore
	alerts      *alerts.Service
}

// New builds a Dispatcher. clients is keyed by server host name,
// matching config.NodeConfig.ServerHost.
func New(clients map[string]*agentclient.Client, opt *optracker.Tracker, maint *maintenance.Tracker, st store.OperationStore, alertSvc *alerts.Service) *Dispatcher {
	return &Dispatcher{clients: clients, optracker: opt, maintenance: maint, store: st, alerts: alertSvc}
}

// Run drives kind against nodeName end to end, blocking until the
// operation reaches a terminal state or its class deadline elapses.
// originator identifies who triggered it (e.g. "scheduler" or an
// operator's name), recorded as the Operation Tracker entry's user info.
func (d *Dispatcher) Run(ctx context.Context, nodeName string, node config.NodeConfig, kind domain.OperationKind, originator string) error {
	logger := log.WithNode(nodeName)

	client, ok := d.clients[node.ServerHost]
	if !ok {
		return fmt.Errorf("no agent client configured for server %q", node.ServerHost)
	}

	if err := d.optracker.TryStart(nodeName, string(kind), originator); err != nil {
		return err
	}
	defer d.optracker.Finish(nodeName)

	d.maintenance.Start(nodeName, string(kind), estimatedMinutes(kind), node.ServerHost)
	defer d.maintenance.End(nodeName)

	endpoint, body, err := d.buildRequest(ctx, client, nodeName, node, kind)
	if err != nil {
		d.notifyFailure(ctx, nodeName, node.ServerHost, kind, err)
		return err
	}

	jobID, err := client.StartAsync(ctx, endpoint, body)
	if err != nil {
		d.recordFailure(ctx, nodeName, kind, jobID, time.Now(), err)
		d.notifyFailure(ctx, nodeName, node.ServerHost, kind, err)
		return err
	}

	started := time.Now()
	d.recordStart(ctx, jobID, nodeName, kind, started)

	result, waitErr := client.WaitForJob(ctx, jobID, kind.Deadline())
	completed := time.Now()

	if waitErr != nil {
		d.recordTerminal(ctx, jobID, nodeName, kind, started, completed, store.OperationFailed, waitErr.Error(), "")
		d.notifyFailure(ctx, nodeName, node.ServerHost, kind, waitErr)
		return waitErr
	}

	details := ""
	if len(result.Data) > 0 {
		details = string(result.Data)
	}
	d.recordTerminal(ctx, jobID, nodeName, kind, started, completed, store.OperationCompleted, "", details)
	logger.Info().Str("job_id", jobID).Str("operation", string(kind)).Msg("operation completed")
	return nil
}

// RunRestart drives a restart/hermes-restart operation: unlike the
// pruning/snapshot/state-sync sequences, the agent has no async job
// endpoint for a service bounce, so this stops then starts the unit
// synchronously through the Agent Client instead of StartAsync/WaitForJob.
func (d *Dispatcher) RunRestart(ctx context.Context, nodeName string, node config.NodeConfig, kind domain.OperationKind, originator string) error {
	if kind != domain.OperationRestart && kind != domain.OperationHermesRestart {
		return fmt.Errorf("RunRestart does not handle operation kind %q", kind)
	}

	client, ok := d.clients[node.ServerHost]
	if !ok {
		return fmt.Errorf("no agent client configured for server %q", node.ServerHost)
	}

	if err := d.optracker.TryStart(nodeName, string(kind), originator); err != nil {
		return err
	}
	defer d.optracker.Finish(nodeName)

	d.maintenance.Start(nodeName, string(kind), estimatedMinutes(kind), node.ServerHost)
	defer d.maintenance.End(nodeName)

	id := fmt.Sprintf("%s_%s_%d", kind, nodeName, time.Now().Unix())
	started := time.Now()
	d.recordStart(ctx, id, nodeName, kind, started)

	restartCtx, cancel := context.WithTimeout(ctx, kind.Deadline())
	defer cancel()

	if err := client.StopService(restartCtx, node.PruningServiceName); err != nil {
		d.recordTerminal(ctx, id, nodeName, kind, started, time.Now(), store.OperationFailed, err.Error(), "")
		d.notifyFailure(ctx, nodeName, node.ServerHost, kind, err)
		return err
	}
	if err := client.StartService(restartCtx, node.PruningServiceName); err != nil {
		d.recordTerminal(ctx, id, nodeName, kind, started, time.Now(), store.OperationFailed, err.Error(), "")
		d.notifyFailure(ctx, nodeName, node.ServerHost, kind, err)
		return err
	}

	d.recordTerminal(ctx, id, nodeName, kind, started, time.Now(), store.OperationCompleted, "", "")
	log.WithNode(nodeName).Info().Str("operation", string(kind)).Msg("operation completed")
	return nil
}

func (d *Dispatcher) recordStart(ctx context.Context, jobID, nodeName string, kind domain.OperationKind, started time.Time) {
	if d.store == nil {
		return
	}
	op := store.MaintenanceOperation{
		ID: jobID, OperationType: string(kind), TargetName: nodeName,
		Status: store.OperationRunning, StartedAt: started,
	}
	if err := d.store.StoreMaintenanceOperation(ctx, op); err != nil {
		log.WithNode(nodeName).Warn().Err(err).Msg("failed to persist operation start")
	}
}

func (d *Dispatcher) recordTerminal(ctx context.Context, jobID, nodeName string, kind domain.OperationKind, started, completed time.Time, status store.OperationStatus, errMsg, details string) {
	if d.store == nil {
		return
	}
	op := store.MaintenanceOperation{
		ID: jobID, OperationType: string(kind), TargetName: nodeName,
		Status: status, StartedAt: started, CompletedAt: &completed,
		ErrorMessage: errMsg, Details: details,
	}
	if err := d.store.StoreMaintenanceOperation(ctx, op); err != nil {
		log.WithNode(nodeName).Warn().Err(err).Msg("failed to persist operation outcome")
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, nodeName string, kind domain.OperationKind, jobID string, at time.Time, err error) {
	if d.store == nil {
		return
	}
	op := store.MaintenanceOperation{
		ID: fmt.Sprintf("%s_%s_%d", kind, nodeName, at.Unix()), OperationType: string(kind),
		TargetName: nodeName, Status: store.OperationFailed, StartedAt: at,
		CompletedAt: &at, ErrorMessage: err.Error(),
	}
	if serr := d.store.StoreMaintenanceOperation(ctx, op); serr != nil {
		log.WithNode(nodeName).Warn().Err(serr).Msg("failed to persist dispatch failure")
	}
}

func (d *Dispatcher) notifyFailure(ctx context.Context, nodeName, serverHost string, kind domain.OperationKind, err error) {
	if d.alerts == nil {
		return
	}
	d.alerts.SendImmediateAlert(ctx, alerts.TypeMaintenance, alerts.SeverityCritical,
		nodeName, serverHost, fmt.Sprintf("%s failed: %v", kind, err), nil)
}

// buildRequest maps one operation kind to its agent endpoint and JSON
// body, per the Agent HTTP Surface's routes (internal/agent/api). The
// restore and state-sync kinds need a round trip to the node's own
// agent or RPC sources to resolve a concrete file path or trust anchor
// before the request body can be built, so this takes ctx and client
// and can fail.
func (d *Dispatcher) buildRequest(ctx context.Context, client *agentclient.Client, nodeName string, node config.NodeConfig, kind domain.OperationKind) (string, any, error) {
	switch kind {
	case domain.OperationPruning:
		return "/pruning/execute", map[string]any{
			"target":        nodeName,
			"service_name":  node.PruningServiceName,
			"deploy_path":   node.PruningDeployPath,
			"keep_blocks":   node.PruningKeepBlocks,
			"keep_versions": node.PruningKeepVersions,
			"log_path":      node.LogPath,
		}, nil
	case domain.OperationSnapshotCreate:
		return "/snapshot/create", map[string]any{
			"target":       nodeName,
			"node_name":    nodeName,
			"network":      node.Network,
			"deploy_path":  node.SnapshotDeployPath,
			"backup_path":  node.SnapshotBackupPath,
			"service_name": node.PruningServiceName,
			"log_path":     node.LogPath,
		}, nil
	case domain.OperationSnapshotRestore:
		snapshotPath, err := resolveSnapshotFile(ctx, client, node.SnapshotBackupPath, node.Network)
		if err != nil {
			return "", nil, err
		}
		validatorBackup := resolveValidatorStateBackup(ctx, client, node.SnapshotBackupPath, snapshotPath)
		return "/snapshot/restore", map[string]any{
			"target":                 nodeName,
			"node_name":              nodeName,
			"deploy_path":            node.SnapshotDeployPath,
			"snapshot_file_path":     snapshotPath,
			"validator_state_backup": validatorBackup,
			"service_name":           node.PruningServiceName,
			"log_path":               node.LogPath,
		}, nil
	case domain.OperationStateSync:
		anchor, err := fetchTrustAnchor(ctx, node.StateSyncRPCSources, node.StateSyncTrustHeightOffset)
		if err != nil {
			return "", nil, err
		}
		return "/state-sync/execute", map[string]any{
			"target":              nodeName,
			"service_name":        node.PruningServiceName,
			"daemon_binary":       node.DaemonBinary,
			"home_dir":            node.SnapshotDeployPath,
			"config_path":         node.SnapshotDeployPath + "/config/config.toml",
			"rpc_servers":         node.StateSyncRPCSources,
			"trust_height":        anchor.Height,
			"trust_hash":          anchor.Hash,
			"timeout_seconds":     node.StateSyncMaxSyncTimeoutSeconds,
			"log_path":            node.LogPath,
			"rollback_on_timeout": false,
		}, nil
	default:
		panic("unhandled OperationKind in buildRequest: " + string(kind))
	}
}

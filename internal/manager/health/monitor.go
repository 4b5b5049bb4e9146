// Package health implements the manager's Health Monitor (spec.md C10):
// a periodic poller of each enabled node's RPC status endpoint that
// computes a healthy/unhealthy verdict, persists an audit record, and
// drives the Alert Pipeline (C11). Grounded on
// original_source/manager/src/health/types.rs's HealthStatus/RpcResponse
// shapes; original_source/manager/src/health/{monitor,cosmos}.rs were not
// present in the retrieved source, so the poll loop and stuck-height
// logic below follow spec.md §4.10's contract directly.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/agentclient"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/alerts"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/dispatch"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/store"
)

// stuckHeightThreshold is how many consecutive non-progressing
// observations turn a node unhealthy, per spec.md §4.10's "N >= 3".
const stuckHeightThreshold = 3

// autoRestoreCooldown is the minimum time between two auto-triggered
// restores of the same node, per spec.md §4.10 step 4's default 2h.
const autoRestoreCooldown = 2 * time.Hour

// Status is one node's most recently computed health, kept in memory for
// the status API and for the next poll's progression check.
type Status struct {
	NodeName         string
	RPCURL           string
	IsHealthy        bool
	ErrorMessage     string
	LastCheck        time.Time
	BlockHeight       int64
	IsCatchingUp      bool
	ValidatorAddress string
	Network          string
	ServerHost       string
	Enabled          bool
	InMaintenance    bool
}

type heightState struct {
	lastHeight          int64
	lastUpdated         time.Time
	unhealthyBaseline   int64
	unhealthySince      time.Time
	stuckObservations   int
}

// rpcResponse mirrors the Cosmos SDK's /status JSON-RPC shape.
type rpcResponse struct {
	Result *struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
			CatchingUp        bool   `json:"catching_up"`
		} `json:"sync_info"`
		ValidatorInfo struct {
			Address string `json:"address"`
		} `json:"validator_info"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Monitor polls every enabled node on an interval, updates in-memory
// status, persists a health record, and feeds the alert pipeline.
type Monitor struct {
	nodes       map[string]config.NodeConfig
	interval    time.Duration
	rpcTimeout  time.Duration
	httpClient  *http.Client
	alertSvc    *alerts.Service
	maintenance *maintenance.Tracker
	store       store.HealthStore

	clients             map[string]*agentclient.Client
	dispatcher          *dispatch.Dispatcher
	autoRestoreTriggers []string

	mu              sync.RWMutex
	status          map[string]Status
	heights         map[string]*heightState
	lastAutoRestore map[string]time.Time
}

func New(nodes map[string]config.NodeConfig, interval, rpcTimeout time.Duration, alertSvc *alerts.Service, maintTracker *maintenance.Tracker, st store.HealthStore, clients map[string]*agentclient.Client, dispatcher *dispatch.Dispatcher, autoRestoreTriggers []string) *Monitor {
	return &Monitor{
		nodes:               nodes,
		interval:            interval,
		rpcTimeout:          rpcTimeout,
		httpClient:          &http.Client{Timeout: rpcTimeout},
		alertSvc:            alertSvc,
		maintenance:         maintTracker,
		store:               st,
		clients:             clients,
		dispatcher:          dispatcher,
		autoRestoreTriggers: autoRestoreTriggers,
		status:              make(map[string]Status),
		heights:             make(map[string]*heightState),
		lastAutoRestore:     make(map[string]time.Time),
	}
}

// Run blocks, polling every node on Monitor's interval until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) {
	logger := log.WithComponent("health-monitor")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug().Msg("starting health poll")
			m.pollAll(ctx)
		}
	}
}

func (m *Monitor) pollAll(ctx context.Context) {
	var wg sync.WaitGroup
	for name, node := range m.nodes {
		if !node.Enabled {
			continue
		}
		wg.Add(1)
		go func(nodeName string, node config.NodeConfig) {
			defer wg.Done()
			m.pollOne(ctx, nodeName, node)
		}(name, node)
	}
	wg.Wait()
}

func (m *Monitor) pollOne(ctx context.Context, nodeName string, node config.NodeConfig) {
	logger := log.WithNode(nodeName)
	reqCtx, cancel := context.WithTimeout(ctx, m.rpcTimeout)
	defer cancel()

	height, catchingUp, validator, err := m.queryStatus(reqCtx, node.RPCURL)

	now := time.Now()
	healthy := err == nil && !catchingUp
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	if healthy {
		healthy = m.checkProgression(nodeName, height, now)
		if !healthy {
			errMsg = fmt.Sprintf("block height stuck at %d for %d consecutive checks", height, stuckHeightThreshold)
		}
	}

	inMaintenance := m.maintenance.IsInMaintenance(nodeName)

	status := Status{
		NodeName:         nodeName,
		RPCURL:           node.RPCURL,
		IsHealthy:        healthy,
		ErrorMessage:     errMsg,
		LastCheck:        now,
		BlockHeight:      height,
		IsCatchingUp:     catchingUp,
		ValidatorAddress: validator,
		Network:          node.Network,
		ServerHost:       node.ServerHost,
		Enabled:          node.Enabled,
		InMaintenance:    inMaintenance,
	}

	m.mu.Lock()
	m.status[nodeName] = status
	m.mu.Unlock()

	if m.store != nil {
		if perr := m.store.StoreHealthRecord(ctx, store.HealthRecord{
			NodeName:         nodeName,
			Timestamp:        now,
			Healthy:          healthy,
			ErrorMessage:     errMsg,
			BlockHeight:      height,
			CatchingUp:       catchingUp,
			ValidatorAddress: validator,
		}); perr != nil {
			logger.Warn().Err(perr).Msg("failed to persist health record")
		}
	}

	if inMaintenance {
		logger.Debug().Msg("node in maintenance, suppressing alert and auto-restore")
		return
	}

	m.alertSvc.SendProgressiveAlert(ctx, nodeName, node.ServerHost, healthy, errMsg, map[string]any{
		"block_height": height,
		"catching_up":  catchingUp,
	})

	m.checkAutoRestore(ctx, nodeName, node)
}

// checkAutoRestore implements spec.md §4.10 step 4: scan the node's log
// for operator-defined trigger patterns and, if one matched and the node
// is outside its auto-restore cooldown, dispatch a snapshot restore (C8)
// for it. Grounded directly on spec.md's contract, since
// original_source/manager/src/health/{auto_restore,log_monitor}.rs were
// not present in the retrieved source.
func (m *Monitor) checkAutoRestore(ctx context.Context, nodeName string, node config.NodeConfig) {
	logger := log.WithNode(nodeName)

	if !node.AutoRestoreEnabled || !node.LogMonitoringEnabled || node.LogPath == "" {
		return
	}

	triggerWords := make([]string, 0, len(m.autoRestoreTriggers)+len(node.LogMonitoringPatterns))
	triggerWords = append(triggerWords, m.autoRestoreTriggers...)
	triggerWords = append(triggerWords, node.LogMonitoringPatterns...)
	if len(triggerWords) == 0 {
		return
	}

	client, ok := m.clients[node.ServerHost]
	if !ok {
		return
	}

	found, err := client.CheckTriggers(ctx, node.LogPath, triggerWords)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to check auto-restore trigger patterns")
		return
	}
	if !found {
		return
	}

	if !m.armAutoRestore(nodeName) {
		logger.Debug().Msg("auto-restore trigger pattern matched but node is still within cooldown")
		return
	}

	logger.Warn().Msg("auto-restore trigger pattern matched in node logs, dispatching snapshot restore")
	go func() {
		if err := m.dispatcher.Run(context.Background(), nodeName, node, domain.OperationSnapshotRestore, "auto-restore"); err != nil {
			logger.Error().Err(err).Msg("auto-restore snapshot restore failed")
		}
	}()
}

// armAutoRestore reports whether nodeName is outside its auto-restore
// cooldown and, if so, records now as its last auto-restore time so a
// concurrent or subsequent poll can't fire a second restore before this
// one even starts.
func (m *Monitor) armAutoRestore(nodeName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastAutoRestore[nodeName]; ok && time.Since(last) < autoRestoreCooldown {
		return false
	}
	m.lastAutoRestore[nodeName] = time.Now()
	return true
}

// checkProgression updates the per-node height state and returns whether
// the node should still be considered healthy once the stuck-height
// contract is applied.
func (m *Monitor) checkProgression(nodeName string, height int64, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	hs, ok := m.heights[nodeName]
	if !ok {
		m.heights[nodeName] = &heightState{lastHeight: height, lastUpdated: now}
		return true
	}

	if height > hs.lastHeight {
		hs.lastHeight = height
		hs.lastUpdated = now
		hs.stuckObservations = 0
		return true
	}

	hs.stuckObservations++
	return hs.stuckObservations < stuckHeightThreshold
}

func (m *Monitor) queryStatus(ctx context.Context, rpcURL string) (height int64, catchingUp bool, validator string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rpcURL+"/status", nil)
	if err != nil {
		return 0, false, "", err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, false, "", err
	}
	defer resp.Body.Close()

	var rpc rpcResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&rpc); decErr != nil {
		return 0, false, "", decErr
	}
	if rpc.Error != nil {
		return 0, false, "", fmt.Errorf("rpc error: %s", rpc.Error.Message)
	}
	if rpc.Result == nil {
		return 0, false, "", fmt.Errorf("empty rpc result")
	}

	height, _ = strconv.ParseInt(rpc.Result.SyncInfo.LatestBlockHeight, 10, 64)
	return height, rpc.Result.SyncInfo.CatchingUp, rpc.Result.ValidatorInfo.Address, nil
}

// Status returns the most recently computed status for nodeName.
func (m *Monitor) Status(nodeName string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.status[nodeName]
	return s, ok
}

// AllStatus returns every node's most recently computed status.
func (m *Monitor) AllStatus() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// Config is the manager's fully loaded configuration: the main.toml
// document plus every per-host *.toml file's servers and nodes, merged
// with the smart node-naming rule original_source/manager/src/config/
// manager.rs applies. Grounded on original_source/manager/src/config/
// mod.rs's Config/ServerConfig/ServerConfigFile/NodeConfig.
//
// Hermes and ETL sections of the original are out of scope: this system's
// operation budget (C1-C12) covers node pruning, snapshotting, and state
// sync only, so HermesConfig/EtlConfig have no component to drive them.
type Config struct {
	Host                     string   `toml:"host"`
	Port                     uint16   `toml:"port"`
	CheckIntervalSeconds     uint64   `toml:"check_interval_seconds"`
	RPCTimeoutSeconds        uint64   `toml:"rpc_timeout_seconds"`
	AlarmWebhookURL          string   `toml:"alarm_webhook_url"`
	HermesMinUptimeMinutes   uint32   `toml:"hermes_min_uptime_minutes"`
	AutoRestoreTriggerWords  []string `toml:"auto_restore_trigger_words"`
	LogMonitoringContextLines int     `toml:"log_monitoring_context_lines"`

	Servers map[string]ServerConfig `toml:"-"`
	Nodes   map[string]NodeConfig   `toml:"-"`
}

// ServerConfig names one host the manager drives agents on.
type ServerConfig struct {
	Host                  string `toml:"host"`
	AgentPort             uint16 `toml:"agent_port"`
	APIKey                string `toml:"api_key"`
	RequestTimeoutSeconds uint64 `toml:"request_timeout_seconds"`
	MaxConcurrentRequests uint32 `toml:"max_concurrent_requests"`
}

// serverConfigFile is the shape of one per-host *.toml file.
type serverConfigFile struct {
	Server ServerConfig          `toml:"server"`
	Nodes  map[string]NodeConfig `toml:"nodes"`
}

// NodeConfig is one node's full operational configuration: where it
// lives, and the pruning/snapshot/state-sync parameters the scheduler
// and sequences need, per SPEC_FULL.md §3's supplemented node fields.
type NodeConfig struct {
	RPCURL       string `toml:"rpc_url"`
	Network      string `toml:"network"`
	DaemonBinary string `toml:"daemon_binary"`
	ServerHost   string `toml:"-"` // set from the containing file's name
	Enabled      bool   `toml:"enabled"`

	PruningEnabled      bool   `toml:"pruning_enabled"`
	PruningSchedule     string `toml:"pruning_schedule"`
	PruningKeepBlocks   uint32 `toml:"pruning_keep_blocks"`
	PruningKeepVersions uint32 `toml:"pruning_keep_versions"`
	PruningDeployPath   string `toml:"pruning_deploy_path"`
	PruningServiceName  string `toml:"pruning_service_name"`

	LogPath              string `toml:"log_path"`
	TruncateLogsEnabled  bool   `toml:"truncate_logs_enabled"`

	LogMonitoringEnabled  bool     `toml:"log_monitoring_enabled"`
	LogMonitoringPatterns []string `toml:"log_monitoring_patterns"`

	SnapshotsEnabled       bool   `toml:"snapshots_enabled"`
	SnapshotBackupPath     string `toml:"snapshot_backup_path"`
	SnapshotDeployPath     string `toml:"snapshot_deploy_path"`
	AutoRestoreEnabled     bool   `toml:"auto_restore_enabled"`
	SnapshotSchedule       string `toml:"snapshot_schedule"`
	SnapshotRetentionCount int    `toml:"snapshot_retention_count"`

	StateSyncEnabled                bool     `toml:"state_sync_enabled"`
	StateSyncSchedule                string   `toml:"state_sync_schedule"`
	StateSyncRPCSources               []string `toml:"state_sync_rpc_sources"`
	StateSyncTrustHeightOffset        uint32   `toml:"state_sync_trust_height_offset"`
	StateSyncMaxSyncTimeoutSeconds     uint64   `toml:"state_sync_max_sync_timeout_seconds"`
}

const (
	defaultStateSyncTrustHeightOffset   = 2000
	defaultStateSyncMaxSyncTimeoutSecs = 600
)

// LoadManagerConfig reads {configDir}/main.toml, then every other
// {configDir}/*.toml as a per-host server file, merging nodes under the
// smart-prefix naming rule: a node name that already starts with
// "{server}-" is kept as-is, otherwise it's prefixed.
func LoadManagerConfig(configDir string) (*Config, error) {
	mainPath := filepath.Join(configDir, "main.toml")
	cfg := &Config{}
	if _, err := toml.DecodeFile(mainPath, cfg); err != nil {
		return nil, apperrors.Config(mainPath, err)
	}

	matches, err := filepath.Glob(filepath.Join(configDir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", configDir, err)
	}

	servers := make(map[string]ServerConfig)
	nodes := make(map[string]NodeConfig)

	for _, path := range matches {
		filename := filepath.Base(path)
		if filename == "main.toml" {
			continue
		}
		serverName := strings.TrimSuffix(filename, ".toml")

		var file serverConfigFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, apperrors.Config(path, err)
		}
		servers[serverName] = file.Server

		prefix := serverName + "-"
		for nodeName, node := range file.Nodes {
			node.ServerHost = serverName
			if node.StateSyncTrustHeightOffset == 0 {
				node.StateSyncTrustHeightOffset = defaultStateSyncTrustHeightOffset
			}
			if node.StateSyncMaxSyncTimeoutSeconds == 0 {
				node.StateSyncMaxSyncTimeoutSeconds = defaultStateSyncMaxSyncTimeoutSecs
			}

			finalName := nodeName
			if !strings.HasPrefix(nodeName, prefix) {
				finalName = prefix + nodeName
			}
			if _, dup := nodes[finalName]; dup {
				return nil, apperrors.Config(path, fmt.Errorf("duplicate node name %q", finalName))
			}
			nodes[finalName] = node
		}
	}

	cfg.Servers = servers
	cfg.Nodes = nodes
	return cfg, nil
}

// fileExists is a small helper the secrets loader also uses.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/agentclient"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/alerts"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/dispatch"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
)

// fakeTriggerAgent answers /snapshot/check-triggers with found, and the
// restore dispatch's own calls (pruning/snapshot endpoints aren't hit by
// this test, but /command/execute and the job-status poll are, since a
// matched trigger fires a real dispatch.Dispatcher.Run).
func fakeTriggerAgent(t *testing.T, found bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/snapshot/check-triggers":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "data": found})
		case r.URL.Path == "/command/execute":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "output": "/backups/osmosis-1_20240101_000000.tar.gz"})
		case r.URL.Path == "/snapshot/restore":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": "job-1"})
		case r.URL.Path == "/operation/status/job-1":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "status": "completed"})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "not found"})
		}
	}))
}

func newTestMonitor(t *testing.T, agentURL string, node config.NodeConfig) (*Monitor, map[string]config.NodeConfig) {
	t.Helper()
	clients := map[string]*agentclient.Client{"server-1": agentclient.New(agentURL, "key")}
	node.ServerHost = "server-1"
	nodes := map[string]config.NodeConfig{"osmosis-1": node}
	d := dispatch.New(clients, optracker.New(), maintenance.New(), nil, alerts.New(""))
	m := New(nodes, time.Minute, 5*time.Second, alerts.New(""), maintenance.New(), nil, clients, d, []string{"panic"})
	return m, nodes
}

func TestCheckAutoRestoreSkipsWhenDisabled(t *testing.T) {
	agent := fakeTriggerAgent(t, true)
	defer agent.Close()

	m, nodes := newTestMonitor(t, agent.URL, config.NodeConfig{LogPath: "/var/log/osmosis.log"})
	m.checkAutoRestore(context.Background(), "osmosis-1", nodes["osmosis-1"])

	assert.Zero(t, m.lastAutoRestore["osmosis-1"])
}

func TestCheckAutoRestoreFiresOnTriggerMatch(t *testing.T) {
	agent := fakeTriggerAgent(t, true)
	defer agent.Close()

	node := config.NodeConfig{
		LogPath: "/var/log/osmosis.log", LogMonitoringEnabled: true, AutoRestoreEnabled: true,
		SnapshotBackupPath: "/backups", SnapshotDeployPath: "/srv/osmosis", Network: "osmosis-1",
	}
	m, nodes := newTestMonitor(t, agent.URL, node)
	m.checkAutoRestore(context.Background(), "osmosis-1", nodes["osmosis-1"])

	require.NotZero(t, m.lastAutoRestore["osmosis-1"])
}

func TestCheckAutoRestoreRespectsCooldown(t *testing.T) {
	agent := fakeTriggerAgent(t, true)
	defer agent.Close()

	node := config.NodeConfig{
		LogPath: "/var/log/osmosis.log", LogMonitoringEnabled: true, AutoRestoreEnabled: true,
		SnapshotBackupPath: "/backups", SnapshotDeployPath: "/srv/osmosis", Network: "osmosis-1",
	}
	m, nodes := newTestMonitor(t, agent.URL, node)

	firstArmed := m.armAutoRestore("osmosis-1")
	require.True(t, firstArmed)

	secondArmed := m.armAutoRestore("osmosis-1")
	assert.False(t, secondArmed, "a second restore within the cooldown window must not be armed")
}

func TestCheckAutoRestoreNoOpWhenNoTriggerMatched(t *testing.T) {
	agent := fakeTriggerAgent(t, false)
	defer agent.Close()

	node := config.NodeConfig{
		LogPath: "/var/log/osmosis.log", LogMonitoringEnabled: true, AutoRestoreEnabled: true,
	}
	m, nodes := newTestMonitor(t, agent.URL, node)
	m.checkAutoRestore(context.Background(), "osmosis-1", nodes["osmosis-1"])

	assert.Zero(t, m.lastAutoRestore["osmosis-1"])
}

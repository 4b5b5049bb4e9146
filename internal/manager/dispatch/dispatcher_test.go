package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/domain"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/agentclient"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
)

// fakeRestoreAgent answers /command/execute the way a real agent would for
// the find-latest-snapshot and validator-backup-exists shell pipelines.
func fakeRestoreAgent(t *testing.T, snapshotPath string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var req struct {
			Command string `json:"command"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		switch {
		case strings.HasPrefix(req.Command, "find "):
			json.NewEncoder(w).Encode(map[string]any{"success": true, "output": snapshotPath})
		case strings.HasPrefix(req.Command, "test -f"):
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no validator backup"})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "not found"})
		}
	}))
}

// fakeRPC answers the Cosmos /block and /block?height= queries the
// state-sync trust-anchor resolution makes.
func fakeRPC(t *testing.T, latestHeight, hash string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("height") != "" {
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"block_id": map[string]any{"hash": hash}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"block": map[string]any{"header": map[string]any{"height": latestHeight}}},
		})
	}))
}

func TestBuildRequestCoversEveryScheduledKind(t *testing.T) {
	agent := fakeRestoreAgent(t, "/backups/osmosis-1_20240101_000000.tar.gz")
	defer agent.Close()
	rpc := fakeRPC(t, "1000", "ABCDEF0123")
	defer rpc.Close()

	client := agentclient.New(agent.URL, "key")
	node := config.NodeConfig{
		PruningServiceName: "osmosisd", PruningDeployPath: "/srv/osmosis",
		SnapshotDeployPath: "/srv/osmosis", SnapshotBackupPath: "/backups",
		LogPath: "/var/log/osmosis.log", Network: "osmosis-1",
		StateSyncRPCSources: []string{rpc.URL}, StateSyncTrustHeightOffset: 100,
		DaemonBinary: "osmosisd",
	}

	d := New(nil, nil, nil, nil, nil)
	for _, kind := range []domain.OperationKind{
		domain.OperationPruning, domain.OperationSnapshotCreate,
		domain.OperationSnapshotRestore, domain.OperationStateSync,
	} {
		endpoint, body, err := d.buildRequest(context.Background(), client, "osmosis-1", node, kind)
		require.NoError(t, err)
		assert.NotEmpty(t, endpoint)
		assert.NotNil(t, body)
	}
}

func TestBuildRequestSnapshotRestoreResolvesFileAndValidatorBackup(t *testing.T) {
	agent := fakeRestoreAgent(t, "/backups/osmosis-1_20240101_000000.tar.gz")
	defer agent.Close()

	client := agentclient.New(agent.URL, "key")
	node := config.NodeConfig{SnapshotBackupPath: "/backups", SnapshotDeployPath: "/srv/osmosis", Network: "osmosis-1"}

	d := New(nil, nil, nil, nil, nil)
	_, body, err := d.buildRequest(context.Background(), client, "osmosis-1", node, domain.OperationSnapshotRestore)
	require.NoError(t, err)

	payload := body.(map[string]any)
	assert.Equal(t, "/backups/osmosis-1_20240101_000000.tar.gz", payload["snapshot_file_path"])
	assert.Equal(t, "", payload["validator_state_backup"])
}

func TestBuildRequestSnapshotRestoreErrorsWhenNoArchiveFound(t *testing.T) {
	agent := fakeRestoreAgent(t, "")
	defer agent.Close()

	client := agentclient.New(agent.URL, "key")
	node := config.NodeConfig{SnapshotBackupPath: "/backups", Network: "osmosis-1"}

	d := New(nil, nil, nil, nil, nil)
	_, _, err := d.buildRequest(context.Background(), client, "osmosis-1", node, domain.OperationSnapshotRestore)
	assert.Error(t, err)
}

func TestBuildRequestStateSyncPopulatesTrustAnchorAndDaemonBinary(t *testing.T) {
	rpc := fakeRPC(t, "5000", "DEADBEEF")
	defer rpc.Close()

	node := config.NodeConfig{
		StateSyncRPCSources: []string{rpc.URL}, StateSyncTrustHeightOffset: 2000,
		DaemonBinary: "osmosisd", SnapshotDeployPath: "/srv/osmosis",
	}

	d := New(nil, nil, nil, nil, nil)
	_, body, err := d.buildRequest(context.Background(), nil, "osmosis-1", node, domain.OperationStateSync)
	require.NoError(t, err)

	payload := body.(map[string]any)
	assert.Equal(t, "osmosisd", payload["daemon_binary"])
	assert.Equal(t, uint64(3000), payload["trust_height"])
	assert.Equal(t, "DEADBEEF", payload["trust_hash"])
}

func TestBuildRequestStateSyncErrorsWhenAllRPCSourcesFail(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	dead.Close()

	node := config.NodeConfig{StateSyncRPCSources: []string{dead.URL}}

	d := New(nil, nil, nil, nil, nil)
	_, _, err := d.buildRequest(context.Background(), nil, "osmosis-1", node, domain.OperationStateSync)
	assert.Error(t, err)
}

func TestBuildRequestPanicsOnRestartKinds(t *testing.T) {
	node := config.NodeConfig{}
	d := New(nil, nil, nil, nil, nil)
	assert.Panics(t, func() { d.buildRequest(context.Background(), nil, "n", node, domain.OperationRestart) })
	assert.Panics(t, func() { d.buildRequest(context.Background(), nil, "n", node, domain.OperationHermesRestart) })
}

func fakeAgent(t *testing.T, jobStatus string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/pruning/execute":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": "job-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/operation/status/job-1":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "status": jobStatus})
		case r.Method == http.MethodPost && r.URL.Path == "/service/stop":
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		case r.Method == http.MethodPost && r.URL.Path == "/service/start":
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "not found"})
		}
	}))
}

func TestRunCompletesPruningOperation(t *testing.T) {
	srv := fakeAgent(t, "completed")
	defer srv.Close()

	clients := map[string]*agentclient.Client{"server-1": agentclient.New(srv.URL, "key")}
	d := New(clients, optracker.New(), maintenance.New(), nil, nil)

	node := config.NodeConfig{ServerHost: "server-1", PruningServiceName: "osmosisd"}
	err := d.Run(context.Background(), "osmosis-1", node, domain.OperationPruning, "test")
	require.NoError(t, err)
}

func TestRunSurfacesJobFailure(t *testing.T) {
	srv := fakeAgent(t, "failed")
	defer srv.Close()

	clients := map[string]*agentclient.Client{"server-1": agentclient.New(srv.URL, "key")}
	d := New(clients, optracker.New(), maintenance.New(), nil, nil)

	node := config.NodeConfig{ServerHost: "server-1", PruningServiceName: "osmosisd"}
	err := d.Run(context.Background(), "osmosis-1", node, domain.OperationPruning, "test")
	assert.Error(t, err)
}

func TestRunErrorsWithoutAgentClient(t *testing.T) {
	d := New(map[string]*agentclient.Client{}, optracker.New(), maintenance.New(), nil, nil)
	err := d.Run(context.Background(), "osmosis-1", config.NodeConfig{ServerHost: "missing"}, domain.OperationPruning, "test")
	assert.Error(t, err)
}

func TestRunRestartStopsThenStartsService(t *testing.T) {
	srv := fakeAgent(t, "completed")
	defer srv.Close()

	clients := map[string]*agentclient.Client{"server-1": agentclient.New(srv.URL, "key")}
	d := New(clients, optracker.New(), maintenance.New(), nil, nil)

	node := config.NodeConfig{ServerHost: "server-1", PruningServiceName: "osmosisd"}
	err := d.RunRestart(context.Background(), "osmosis-1", node, domain.OperationRestart, "test")
	require.NoError(t, err)
}

func TestRunRestartRejectsNonRestartKind(t *testing.T) {
	d := New(map[string]*agentclient.Client{}, optracker.New(), maintenance.New(), nil, nil)
	err := d.RunRestart(context.Background(), "osmosis-1", config.NodeConfig{}, domain.OperationPruning, "test")
	assert.Error(t, err)
}

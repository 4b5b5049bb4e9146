package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/agentclient"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/dispatch"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/health"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
)

func testServer(t *testing.T, nodes map[string]config.NodeConfig, agentURL string) *Server {
	t.Helper()
	opt := optracker.New()
	maint := maintenance.New()

	clients := map[string]*agentclient.Client{}
	if agentURL != "" {
		clients["server-1"] = agentclient.New(agentURL, "key")
	}
	d := dispatch.New(clients, opt, maint, nil, nil)
	hm := health.New(nodes, time.Minute, 5*time.Second, nil, maint, nil, clients, d, nil)

	return NewServer(Options{
		Port: 0, Nodes: nodes, Dispatcher: d,
		Optracker: opt, Maintenance: maint, Health: hm,
	})
}

func TestStatusReportsCounts(t *testing.T) {
	nodes := map[string]config.NodeConfig{"osmosis-1": {Enabled: true}}
	s := testServer(t, nodes, "")
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestListNodesReturnsConfiguredNodes(t *testing.T) {
	nodes := map[string]config.NodeConfig{"osmosis-1": {Enabled: true, ServerHost: "server-1"}}
	s := testServer(t, nodes, "")
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nodes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "osmosis-1")
}

func TestNodeHealthReturnsNotFoundForUnknownNode(t *testing.T) {
	s := testServer(t, map[string]config.NodeConfig{}, "")
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nodes/unknown/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerPruningReturnsNotFoundForUnknownNode(t *testing.T) {
	s := testServer(t, map[string]config.NodeConfig{}, "")
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/nodes/unknown/pruning", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerPruningAcceptsConfiguredNode(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]any{"success": true, "status": "completed"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": "job-1"})
	}))
	defer agent.Close()

	nodes := map[string]config.NodeConfig{"osmosis-1": {Enabled: true, ServerHost: "server-1"}}
	s := testServer(t, nodes, agent.URL)
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/nodes/osmosis-1/pruning", nil)
	req.Header.Set("X-Operator", "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := testServer(t, map[string]config.NodeConfig{}, "")
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

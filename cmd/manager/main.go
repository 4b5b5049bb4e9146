// Command manager runs the control-plane manager: it loads the node
// fleet's configuration, polls each node's health, schedules pruning,
// snapshot, and state-sync operations, and exposes a status/trigger HTTP
// surface. One process serves every configured node across every agent
// host; the agent binary is the thing that runs per host.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/agentclient"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/alerts"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/api"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/dispatch"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/health"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/janitor"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/scheduler"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("manager", pflag.ExitOnError)
	configDir := flags.String("config-dir", "/etc/nodes-manager", "Directory holding main.toml and per-host *.toml files")
	secretsFile := flags.String("secrets-file", "/etc/nodes-manager/secrets.toml", "Path to the per-host API key file")
	logLevel := flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	storeDriver := flags.String("store-driver", "sqlite", "Audit store driver: sqlite, postgres, or mysql")
	storeDSN := flags.String("store-dsn", "", "Audit store DSN (sqlite: file path, defaults to nodes-manager.db)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	log.Init(log.Config{Level: *logLevel})
	logger := log.WithComponent("manager-main")

	cfg, err := config.LoadManagerConfig(*configDir)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load manager configuration")
		os.Exit(1)
	}

	secrets, err := config.LoadSecrets(*secretsFile)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load secrets file")
		os.Exit(1)
	}

	st, err := store.New(store.Driver(*storeDriver), *storeDSN)
	if err != nil {
		logger.Error().Err(err).Msg("failed to construct audit store")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := st.Init(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to initialize audit store")
		os.Exit(1)
	}
	defer st.Close()

	clients := make(map[string]*agentclient.Client, len(cfg.Servers))
	for name, server := range cfg.Servers {
		apiKey := server.APIKey
		if key, ok := secrets.ServerAPIKey(name); ok {
			apiKey = key
		}
		baseURL := "http://" + server.Host + ":" + strconv.Itoa(int(server.AgentPort))
		clients[name] = agentclient.New(baseURL, apiKey)
	}

	opt := optracker.New()
	maint := maintenance.New()
	alertSvc := alerts.New(cfg.AlarmWebhookURL)

	checkInterval := time.Duration(cfg.CheckIntervalSeconds) * time.Second
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	rpcTimeout := time.Duration(cfg.RPCTimeoutSeconds) * time.Second
	if rpcTimeout <= 0 {
		rpcTimeout = 10 * time.Second
	}
	dispatcher := dispatch.New(clients, opt, maint, st, alertSvc)
	healthMonitor := health.New(cfg.Nodes, checkInterval, rpcTimeout, alertSvc, maint, st, clients, dispatcher, cfg.AutoRestoreTriggerWords)
	sched := scheduler.New(cfg.Nodes, dispatcher, maint)
	jan := janitor.New(opt, maint, st)

	go healthMonitor.Run(ctx)
	go jan.Run(ctx)
	sched.Start()
	defer sched.Stop()

	server := api.NewServer(api.Options{
		Port:        int(cfg.Port),
		Nodes:       cfg.Nodes,
		Dispatcher:  dispatcher,
		Optracker:   opt,
		Maintenance: maint,
		Health:      healthMonitor,
	})

	logger.Info().Int("node_count", len(cfg.Nodes)).Int("server_count", len(cfg.Servers)).Msg("manager starting")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("manager server exited with error")
		os.Exit(1)
	}
}

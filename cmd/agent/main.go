// Command agent runs the per-host control-plane agent: a bearer-token
// authenticated HTTP server that executes shell/systemctl commands and
// the four multi-step node-maintenance sequences, one at a time per
// target, fire-and-forget style.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/api"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/janitor"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/jobs"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/registry"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
)

func main() {
	flags := pflag.NewFlagSet("agent", pflag.ExitOnError)
	config.BindAgentFlags(flags)

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	cfg, err := config.LoadAgent(flags)
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log.Init(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("agent-main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := registry.New()
	jobStore := jobs.New()

	go janitor.New(reg, jobStore).Run(ctx)

	server := api.NewServer(api.Options{Port: cfg.Port, APIKey: cfg.APIKey}, reg, jobStore)
	logger.Info().Int("port", cfg.Port).Msg("agent starting")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("agent server exited with error")
		os.Exit(1)
	}
}

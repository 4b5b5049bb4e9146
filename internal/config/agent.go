// Package config loads configuration for both binaries: the agent's
// small flag/env-driven Config, and the manager's TOML-file-driven
// Config, Secrets, and per-host node configuration, grounded on
// original_source/manager/src/config/{mod.rs,manager.rs,secrets.rs} and
// internal/config/config.go's pflag+viper pattern.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AgentConfig holds the agent binary's configuration.
type AgentConfig struct {
	LogLevel string `mapstructure:"log-level"`
	Port     int    `mapstructure:"port"`
	APIKey   string `mapstructure:"api-key"`
}

// BindAgentFlags binds the agent's pflags.
func BindAgentFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Int("port", 8745, "HTTP listen port")
	flags.String("api-key", "", "Bearer token callers must present")
}

// LoadAgent loads AgentConfig from flags, environment (AGENT_ prefix), and
// an optional config file.
func LoadAgent(flags *pflag.FlagSet) (*AgentConfig, error) {
	v := viper.New()
	v.SetDefault("log-level", "info")
	v.SetDefault("port", 8745)

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile, _ := flags.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &AgentConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api-key is required (set --api-key or AGENT_API_KEY)")
	}
	return cfg, nil
}

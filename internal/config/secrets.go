package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
)

// secretsFile matches secrets.toml's shape: a map of server name to API
// key, kept out of the main config tree and out of version control.
// Grounded on original_source/manager/src/config/secrets.rs.
type secretsFile struct {
	Servers map[string]string `toml:"servers"`
}

// Secrets resolves a server name to the bearer token the manager presents
// to that server's agent.
type Secrets struct {
	servers map[string]string
}

// LoadSecrets reads path, returning an empty Secrets (not an error) if the
// file does not exist — API keys will need to be configured before the
// agent client can authenticate, but that's a runtime concern, not a
// load-time one.
func LoadSecrets(path string) (*Secrets, error) {
	if !fileExists(path) {
		log.Logger.Warn().Str("path", path).Msg("secrets file not found, API keys will need to be configured")
		return &Secrets{servers: map[string]string{}}, nil
	}

	var file secretsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parsing secrets file %s: %w", path, err)
	}
	if file.Servers == nil {
		file.Servers = map[string]string{}
	}
	return &Secrets{servers: file.Servers}, nil
}

// ServerAPIKey returns the API key registered for serverName, and whether
// one was found.
func (s *Secrets) ServerAPIKey(serverName string) (string, bool) {
	key, ok := s.servers[serverName]
	return key, ok
}

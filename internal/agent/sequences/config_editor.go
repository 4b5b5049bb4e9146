package sequences

import (
	"bytes"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// statesyncSection is the shape of the daemon config's [statesync]
// table this system cares about; editStatesync carries every other key
// of the decoded table over unchanged instead of dropping it.
type statesyncSection struct {
	Enable       bool   `toml:"enable"`
	RPCServers   string `toml:"rpc_servers"`
	TrustHeight  uint64 `toml:"trust_height"`
	TrustHash    string `toml:"trust_hash"`
	TrustPeriod  string `toml:"trust_period"`
}

// editStatesync performs a proper TOML round-trip on the daemon config
// at path: decode the whole file into a generic map, mutate only the
// [statesync] table, then re-encode. This replaces the brittle
// substring-search-and-line-prefix-classification approach
// original_source/agent/src/services/config_editor.rs used, per
// spec.md §9's "A proper TOML round-trip is the preferred design".
func editStatesync(path string, mutate func(*statesyncSection)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Missing(path)
	}

	var doc map[string]any
	if _, decErr := toml.Decode(string(raw), &doc); decErr != nil {
		return &apperrors.Error{Kind: apperrors.ConfigInvalid, Message: "could not parse daemon config", Wrapped: decErr}
	}

	section := &statesyncSection{TrustPeriod: "168h0m0s"}
	if existing, ok := doc["statesync"].(map[string]any); ok {
		if v, ok := existing["enable"].(bool); ok {
			section.Enable = v
		}
		if v, ok := existing["rpc_servers"].(string); ok {
			section.RPCServers = v
		}
		if v, ok := existing["trust_hash"].(string); ok {
			section.TrustHash = v
		}
		if v, ok := existing["trust_period"].(string); ok {
			section.TrustPeriod = v
		}
		if v, ok := existing["trust_height"].(int64); ok {
			section.TrustHeight = uint64(v)
		}
	}

	mutate(section)

	updated := make(map[string]any)
	if existing, ok := doc["statesync"].(map[string]any); ok {
		for k, v := range existing {
			updated[k] = v
		}
	}
	updated["enable"] = section.Enable
	updated["rpc_servers"] = section.RPCServers
	updated["trust_height"] = section.TrustHeight
	updated["trust_hash"] = section.TrustHash
	updated["trust_period"] = section.TrustPeriod
	doc["statesync"] = updated

	var buf bytes.Buffer
	if encErr := toml.NewEncoder(&buf).Encode(doc); encErr != nil {
		return &apperrors.Error{Kind: apperrors.ConfigInvalid, Message: "could not re-encode daemon config", Wrapped: encErr}
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func enableStatesync(path string, rpcServers []string, trustHeight uint64, trustHash string) error {
	quoted := make([]string, len(rpcServers))
	for i, s := range rpcServers {
		quoted[i] = `"` + s + `"`
	}
	joined := strings.Join(quoted, ",")

	return editStatesync(path, func(s *statesyncSection) {
		s.Enable = true
		s.RPCServers = joined
		s.TrustHeight = trustHeight
		s.TrustHash = trustHash
		s.TrustPeriod = "168h0m0s"
	})
}

func disableStatesync(path string) error {
	return editStatesync(path, func(s *statesyncSection) {
		s.Enable = false
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.toml")
	content := `
[servers]
enterprise = "secret-key-1"
discovery = "secret-key-2"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	secrets, err := LoadSecrets(path)
	require.NoError(t, err)

	key, ok := secrets.ServerAPIKey("enterprise")
	assert.True(t, ok)
	assert.Equal(t, "secret-key-1", key)

	key, ok = secrets.ServerAPIKey("discovery")
	assert.True(t, ok)
	assert.Equal(t, "secret-key-2", key)

	_, ok = secrets.ServerAPIKey("unknown")
	assert.False(t, ok)
}

func TestLoadSecretsMissingFile(t *testing.T) {
	secrets, err := LoadSecrets("/nonexistent/path/secrets.toml")
	require.NoError(t, err)

	_, ok := secrets.ServerAPIKey("any")
	assert.False(t, ok)
}

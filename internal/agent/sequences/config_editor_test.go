package sequences

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableDisableStatesyncRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("moniker = \"node-1\"\n\n[statesync]\nenable = false\n"), 0o644))

	require.NoError(t, enableStatesync(path, []string{"http://a:26657", "http://b:26657"}, 12345, "deadbeef"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "enable = true")
	assert.Contains(t, content, "deadbeef")
	assert.Contains(t, content, "12345")
	// the pre-existing, unrelated key must survive the round trip
	assert.Contains(t, content, "moniker")

	require.NoError(t, disableStatesync(path))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "enable = false")
}

func TestEnableStatesyncAppendsSectionWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("moniker = \"node-1\"\n"), 0o644))

	require.NoError(t, enableStatesync(path, []string{"http://a:26657"}, 1, "abc"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[statesync]")
}

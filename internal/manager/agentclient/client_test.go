package agentclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTriggersReturnsAgentVerdict(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/snapshot/check-triggers", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": true})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	found, err := c.CheckTriggers(context.Background(), "/var/log/osmosis.log", []string{"panic", "consensus failure"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "/var/log/osmosis.log", gotBody["log_path"])
}

func TestCheckTriggersReturnsFalseWhenNoneMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": false})
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	found, err := c.CheckTriggers(context.Background(), "/var/log/osmosis.log", []string{"panic"})
	require.NoError(t, err)
	assert.False(t, found)
}
